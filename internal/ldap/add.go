package ldap

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// Attribute is one attribute of an AddRequest entry: a description and
// its value set. RFC 4511 requires at least one value here, unlike the
// PartialAttribute used in search results.
type Attribute struct {
	Type   string
	Values [][]byte
}

// AddRequest is the [APPLICATION 8] add operation: the new entry's DN
// and its full attribute list.
type AddRequest struct {
	Entry      string
	Attributes []Attribute
}

// Encode produces the add request's content octets.
func (r *AddRequest) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(256)

	if err := e.WriteOctetString([]byte(r.Entry)); err != nil {
		return nil, err
	}

	list := e.BeginSequence()
	for _, attr := range r.Attributes {
		if err := encodeAttribute(e, attr); err != nil {
			return nil, err
		}
	}
	if err := e.EndSequence(list); err != nil {
		return nil, err
	}

	return e.Bytes(), nil
}

// encodeAttribute writes one Attribute SEQUENCE { type, SET OF value };
// shared with the modify operation, whose change elements carry the same
// shape.
func encodeAttribute(e *ber.BEREncoder, attr Attribute) error {
	seq := e.BeginSequence()
	if err := e.WriteOctetString([]byte(attr.Type)); err != nil {
		return err
	}
	set := e.BeginSet()
	for _, value := range attr.Values {
		if err := e.WriteOctetString(value); err != nil {
			return err
		}
	}
	if err := e.EndSet(set); err != nil {
		return err
	}
	return e.EndSequence(seq)
}

// ParseAddRequest decodes add-request content octets; the decode mirror
// of Encode.
func ParseAddRequest(data []byte) (*AddRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty add request data", nil)
	}

	d := ber.NewBERDecoder(data)
	req := &AddRequest{}

	entry, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read entry DN", err)
	}
	req.Entry = string(entry)

	listLen, err := d.ExpectSequence()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read attributes sequence", err)
	}
	listEnd := d.Offset() + listLen
	for d.Offset() < listEnd && d.Remaining() > 0 {
		attr, err := parseAttribute(d)
		if err != nil {
			return nil, err
		}
		req.Attributes = append(req.Attributes, attr)
	}

	return req, nil
}

// parseAttribute is the decode mirror of encodeAttribute.
func parseAttribute(d *ber.BERDecoder) (Attribute, error) {
	var attr Attribute

	body, err := d.ReadSequenceContents()
	if err != nil {
		return attr, NewParseError(d.Offset(), "failed to read attribute sequence", err)
	}

	name, err := body.ReadOctetString()
	if err != nil {
		return attr, NewParseError(d.Offset(), "failed to read attribute type", err)
	}
	attr.Type = string(name)

	setLen, err := body.ExpectSet()
	if err != nil {
		return attr, NewParseError(d.Offset(), "failed to read attribute values set", err)
	}
	setEnd := body.Offset() + setLen
	for body.Offset() < setEnd && body.Remaining() > 0 {
		value, err := body.ReadOctetString()
		if err != nil {
			return attr, NewParseError(d.Offset(), "failed to read attribute value", err)
		}
		attr.Values = append(attr.Values, value)
	}

	return attr, nil
}
