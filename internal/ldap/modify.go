package ldap

import (
	"errors"

	"github.com/oba-ldap/oba/internal/ber"
)

// ModifyOperation is the ENUMERATED discriminator of one change
// element: add(0), delete(1), replace(2).
type ModifyOperation int

const (
	ModifyOperationAdd     ModifyOperation = 0
	ModifyOperationDelete  ModifyOperation = 1
	ModifyOperationReplace ModifyOperation = 2
)

func (m ModifyOperation) String() string {
	switch m {
	case ModifyOperationAdd:
		return "Add"
	case ModifyOperationDelete:
		return "Delete"
	case ModifyOperationReplace:
		return "Replace"
	}
	return "Unknown"
}

// Modification is one atomic change element: an operation and the
// attribute (with values) it applies to. A delete with no values
// removes the whole attribute; a replace with no values does the same.
type Modification struct {
	Operation ModifyOperation
	Attribute Attribute
}

// ModifyRequest is the [APPLICATION 6] modify operation: the target DN
// and an ordered change list the server applies atomically.
type ModifyRequest struct {
	Object  string
	Changes []Modification
}

// ErrInvalidModifyOperation is returned when a change element's
// operation is outside add/delete/replace.
var ErrInvalidModifyOperation = errors.New("ldap: invalid modify operation")

// Encode produces the modify request's content octets.
func (r *ModifyRequest) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(256)

	if err := e.WriteOctetString([]byte(r.Object)); err != nil {
		return nil, err
	}

	list := e.BeginSequence()
	for _, change := range r.Changes {
		if err := encodeModification(e, change); err != nil {
			return nil, err
		}
	}
	if err := e.EndSequence(list); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

// encodeModification writes one change SEQUENCE { ENUMERATED op,
// PartialAttribute }.
func encodeModification(e *ber.BEREncoder, mod Modification) error {
	seq := e.BeginSequence()
	if err := e.WriteEnumerated(int64(mod.Operation)); err != nil {
		return err
	}
	if err := encodeAttribute(e, mod.Attribute); err != nil {
		return err
	}
	return e.EndSequence(seq)
}

// ParseModifyRequest decodes modify-request content octets; the decode
// mirror of Encode.
func ParseModifyRequest(data []byte) (*ModifyRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty modify request data", nil)
	}

	d := ber.NewBERDecoder(data)
	req := &ModifyRequest{}

	object, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read object DN", err)
	}
	req.Object = string(object)

	listLen, err := d.ExpectSequence()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read changes sequence", err)
	}
	listEnd := d.Offset() + listLen
	for d.Offset() < listEnd && d.Remaining() > 0 {
		change, err := parseModification(d)
		if err != nil {
			return nil, err
		}
		req.Changes = append(req.Changes, change)
	}

	return req, nil
}

func parseModification(d *ber.BERDecoder) (Modification, error) {
	var mod Modification

	body, err := d.ReadSequenceContents()
	if err != nil {
		return mod, NewParseError(d.Offset(), "failed to read change sequence", err)
	}

	op, err := body.ReadEnumerated()
	if err != nil {
		return mod, NewParseError(d.Offset(), "failed to read operation", err)
	}
	if op < 0 || op > 2 {
		return mod, ErrInvalidModifyOperation
	}
	mod.Operation = ModifyOperation(op)

	// The change's PartialAttribute has the same wire shape as an add
	// request's Attribute (values may be an empty SET here).
	attr, err := parseAttribute(body)
	if err != nil {
		return mod, err
	}
	mod.Attribute = attr

	return mod, nil
}
