package ldap

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// ContextTagNewSuperior wraps the optional newSuperior field of a
// ModifyDNRequest.
const ContextTagNewSuperior = 0

// ModifyDNRequest is the [APPLICATION 12] modify-DN operation: rename
// an entry within its parent (NewRDN), optionally removing the old RDN
// attribute values, and optionally reparenting it under NewSuperior.
type ModifyDNRequest struct {
	Entry        string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}

// Encode produces the modify-DN request's content octets. An empty
// NewSuperior omits the optional [0] field entirely.
func (r *ModifyDNRequest) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(256)

	if err := e.WriteOctetString([]byte(r.Entry)); err != nil {
		return nil, err
	}
	if err := e.WriteOctetString([]byte(r.NewRDN)); err != nil {
		return nil, err
	}
	if err := e.WriteBoolean(r.DeleteOldRDN); err != nil {
		return nil, err
	}
	if r.NewSuperior != "" {
		pos := e.WriteContextTag(ContextTagNewSuperior, false)
		e.WriteRaw([]byte(r.NewSuperior))
		if err := e.EndContextTag(pos); err != nil {
			return nil, err
		}
	}

	return e.Bytes(), nil
}

// ParseModifyDNRequest decodes modify-DN request content octets; the
// decode mirror of Encode.
func ParseModifyDNRequest(data []byte) (*ModifyDNRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty modifydn request data", nil)
	}

	d := ber.NewBERDecoder(data)
	req := &ModifyDNRequest{}

	entry, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read entry DN", err)
	}
	req.Entry = string(entry)

	newRDN, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read new RDN", err)
	}
	req.NewRDN = string(newRDN)

	deleteOld, err := d.ReadBoolean()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read deleteoldrdn", err)
	}
	req.DeleteOldRDN = deleteOld

	if d.Remaining() > 0 && d.IsContextTag(ContextTagNewSuperior) {
		tag, _, value, err := d.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read newSuperior", err)
		}
		if tag == ContextTagNewSuperior {
			req.NewSuperior = string(value)
		}
	}

	return req, nil
}
