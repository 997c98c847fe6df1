package ldap

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// CompareRequest is the [APPLICATION 14] compare operation: an entry DN
// and a single AttributeValueAssertion to test against it.
type CompareRequest struct {
	DN        string
	Attribute string
	Value     []byte
}

// Encode produces the compare request's content octets.
func (r *CompareRequest) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(128)

	if err := e.WriteOctetString([]byte(r.DN)); err != nil {
		return nil, err
	}

	ava := e.BeginSequence()
	if err := e.WriteOctetString([]byte(r.Attribute)); err != nil {
		return nil, err
	}
	if err := e.WriteOctetString(r.Value); err != nil {
		return nil, err
	}
	if err := e.EndSequence(ava); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

// ParseCompareRequest decodes compare-request content octets; the
// decode mirror of Encode.
func ParseCompareRequest(data []byte) (*CompareRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty compare request data", nil)
	}

	d := ber.NewBERDecoder(data)
	req := &CompareRequest{}

	dn, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read entry DN", err)
	}
	req.DN = string(dn)

	ava, err := d.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read AttributeValueAssertion", err)
	}
	attr, err := ava.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read attribute description", err)
	}
	req.Attribute = string(attr)

	value, err := ava.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read assertion value", err)
	}
	req.Value = value

	return req, nil
}
