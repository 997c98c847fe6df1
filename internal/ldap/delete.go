package ldap

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// The three wire-primitive operations live together here: delete is a
// bare LDAPDN, unbind a NULL, and abandon a bare MessageID INTEGER.
// None of them has a SEQUENCE wrapper, so their content octets are the
// value bytes directly.

// DeleteRequest is the [APPLICATION 10] delete operation.
type DeleteRequest struct {
	DN string
}

// Encode returns the DN bytes; DelRequest ::= LDAPDN with no wrapper.
func (r *DeleteRequest) Encode() ([]byte, error) {
	return []byte(r.DN), nil
}

// ParseDeleteRequest is the decode mirror of DeleteRequest.Encode.
func ParseDeleteRequest(data []byte) (*DeleteRequest, error) {
	return &DeleteRequest{DN: string(data)}, nil
}

// UnbindRequest is the [APPLICATION 2] unbind notification. It carries
// no content and receives no response.
type UnbindRequest struct{}

func (r *UnbindRequest) Encode() ([]byte, error) {
	return []byte{}, nil
}

// ParseUnbindRequest accepts any content (including none) since the
// operation is a NULL.
func ParseUnbindRequest(data []byte) (*UnbindRequest, error) {
	return &UnbindRequest{}, nil
}

// AbandonRequest is the [APPLICATION 16] abandon notification, naming
// the message ID of the operation to stop. Like unbind, it receives no
// response.
type AbandonRequest struct {
	MessageID int
}

// Encode returns the message ID as minimal two's-complement integer
// bytes, the value portion the APPLICATION 16 tag carries directly.
func (r *AbandonRequest) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(8)
	if err := e.WriteInteger(int64(r.MessageID)); err != nil {
		return nil, err
	}
	// Strip the INTEGER tag and length the encoder produced; the
	// primitive application tag replaces them on the wire.
	tlv := e.Bytes()
	if len(tlv) >= 2 {
		return tlv[2:], nil
	}
	return []byte{0}, nil
}

// ParseAbandonRequest is the decode mirror of AbandonRequest.Encode:
// raw two's-complement integer bytes.
func ParseAbandonRequest(data []byte) (*AbandonRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty abandon request data", nil)
	}

	var id int64
	if data[0]&0x80 != 0 {
		id = -1
	}
	for _, b := range data {
		id = id<<8 | int64(b)
	}
	return &AbandonRequest{MessageID: int(id)}, nil
}
