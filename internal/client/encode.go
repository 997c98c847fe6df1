package client

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// stripOuterTag removes a TLV's tag and length octets, returning only its
// content. ExtendedRequest.Encode and SearchRequest.Encode (unlike the
// rest of internal/ldap's request types) return the full APPLICATION-tagged
// TLV rather than bare content; this normalizes either shape into the bare
// content internal/ldap.LDAPMessage.Operation.Data expects.
func stripOuterTag(full []byte) ([]byte, error) {
	d := ber.NewBERDecoder(full)
	if _, _, _, err := d.ReadTag(); err != nil {
		return nil, err
	}
	length, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	start := d.Offset()
	if start+length > len(full) {
		return nil, ber.NewDecodeError(start, "truncated operation TLV", ber.ErrUnexpectedEOF)
	}
	return full[start : start+length], nil
}
