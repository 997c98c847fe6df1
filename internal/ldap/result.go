package ldap

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// Context-specific tags inside response bodies.
const (
	// ContextTagReferral wraps the optional referral URI list of an
	// LDAPResult [3].
	ContextTagReferral = 3
	// ContextTagServerSASLCreds wraps a BindResponse's optional server
	// SASL credentials [7].
	ContextTagServerSASLCreds = 7
)

// LDAPResult is the common result body of RFC 4511 §4.1.9: a result
// code, the matched DN prefix, a diagnostic message, and an optional
// referral URI list. Every *Response type embeds one.
type LDAPResult struct {
	ResultCode        ResultCode
	MatchedDN         string
	DiagnosticMessage string
	Referral          []string
}

// Encode writes the result fields into an encoder already positioned
// inside the response's application tag.
func (r *LDAPResult) Encode(e *ber.BEREncoder) error {
	if err := e.WriteEnumerated(int64(r.ResultCode)); err != nil {
		return err
	}
	if err := e.WriteOctetString([]byte(r.MatchedDN)); err != nil {
		return err
	}
	if err := e.WriteOctetString([]byte(r.DiagnosticMessage)); err != nil {
		return err
	}
	if len(r.Referral) > 0 {
		pos := e.WriteContextTag(ContextTagReferral, true)
		for _, uri := range r.Referral {
			if err := e.WriteOctetString([]byte(uri)); err != nil {
				return err
			}
		}
		return e.EndContextTag(pos)
	}
	return nil
}

// decodeLDAPResult is the mirror of (*LDAPResult).Encode, shared by
// every response parser in this package.
func decodeLDAPResult(d *ber.BERDecoder) (LDAPResult, error) {
	var result LDAPResult

	code, err := d.ReadEnumerated()
	if err != nil {
		return result, NewParseError(d.Offset(), "failed to read resultCode", err)
	}
	result.ResultCode = ResultCode(code)

	matchedDN, err := d.ReadOctetString()
	if err != nil {
		return result, NewParseError(d.Offset(), "failed to read matchedDN", err)
	}
	result.MatchedDN = string(matchedDN)

	diag, err := d.ReadOctetString()
	if err != nil {
		return result, NewParseError(d.Offset(), "failed to read diagnosticMessage", err)
	}
	result.DiagnosticMessage = string(diag)

	if d.Remaining() > 0 && d.IsContextTag(ContextTagReferral) {
		sub, err := d.ReadContextTagContents(ContextTagReferral)
		if err != nil {
			return result, NewParseError(d.Offset(), "failed to read referral", err)
		}
		for sub.Remaining() > 0 {
			uri, err := sub.ReadOctetString()
			if err != nil {
				return result, NewParseError(sub.Offset(), "failed to read referral URI", err)
			}
			result.Referral = append(result.Referral, string(uri))
		}
	}

	return result, nil
}

// encodeResultOnly builds the full application TLV for the six
// response types whose entire body is a bare LDAPResult.
func encodeResultOnly(tag int, r *LDAPResult) ([]byte, error) {
	e := ber.NewBEREncoder(64)
	pos := e.WriteApplicationTag(tag, true)
	if err := r.Encode(e); err != nil {
		return nil, err
	}
	if err := e.EndApplicationTag(pos); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// BindResponse is the [APPLICATION 1] bind result, with the optional
// serverSaslCreds [7] a SASL round delivers its challenge in.
type BindResponse struct {
	LDAPResult
	ServerSASLCreds []byte
}

func (r *BindResponse) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(128)
	pos := e.WriteApplicationTag(ApplicationBindResponse, true)
	if err := r.LDAPResult.Encode(e); err != nil {
		return nil, err
	}
	if len(r.ServerSASLCreds) > 0 {
		if err := e.WriteTaggedValue(ContextTagServerSASLCreds, false, r.ServerSASLCreds); err != nil {
			return nil, err
		}
	}
	if err := e.EndApplicationTag(pos); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// ParseBindResponse decodes bind-response content octets (the inside of
// the APPLICATION 1 tag).
func ParseBindResponse(data []byte) (*BindResponse, error) {
	d := ber.NewBERDecoder(data)
	result, err := decodeLDAPResult(d)
	if err != nil {
		return nil, err
	}
	resp := &BindResponse{LDAPResult: result}
	if d.Remaining() > 0 && d.IsContextTag(ContextTagServerSASLCreds) {
		_, _, creds, err := d.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read serverSaslCreds", err)
		}
		resp.ServerSASLCreds = creds
	}
	return resp, nil
}

// PartialAttribute is one attribute of a search result entry: a
// description and zero or more values (zero when the request asked for
// types only).
type PartialAttribute struct {
	Type   string
	Values [][]byte
}

// SearchResultEntry is one [APPLICATION 4] entry of a search stream.
type SearchResultEntry struct {
	ObjectName string
	Attributes []PartialAttribute
}

func (r *SearchResultEntry) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(256)
	pos := e.WriteApplicationTag(ApplicationSearchResultEntry, true)

	if err := e.WriteOctetString([]byte(r.ObjectName)); err != nil {
		return nil, err
	}

	list := e.BeginSequence()
	for _, attr := range r.Attributes {
		seq := e.BeginSequence()
		if err := e.WriteOctetString([]byte(attr.Type)); err != nil {
			return nil, err
		}
		set := e.BeginSet()
		for _, v := range attr.Values {
			if err := e.WriteOctetString(v); err != nil {
				return nil, err
			}
		}
		if err := e.EndSet(set); err != nil {
			return nil, err
		}
		if err := e.EndSequence(seq); err != nil {
			return nil, err
		}
	}
	if err := e.EndSequence(list); err != nil {
		return nil, err
	}

	if err := e.EndApplicationTag(pos); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// ParseSearchResultEntry decodes entry content octets (the inside of
// the APPLICATION 4 tag).
func ParseSearchResultEntry(data []byte) (*SearchResultEntry, error) {
	d := ber.NewBERDecoder(data)

	objectName, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read objectName", err)
	}

	listLen, err := d.ExpectSequence()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read attributes sequence", err)
	}
	listEnd := d.Offset() + listLen

	var attrs []PartialAttribute
	for d.Offset() < listEnd {
		if _, err := d.ExpectSequence(); err != nil {
			return nil, NewParseError(d.Offset(), "failed to read partial attribute", err)
		}
		name, err := d.ReadOctetString()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read attribute type", err)
		}
		setLen, err := d.ExpectSet()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read attribute values set", err)
		}
		setEnd := d.Offset() + setLen
		var values [][]byte
		for d.Offset() < setEnd {
			v, err := d.ReadOctetString()
			if err != nil {
				return nil, NewParseError(d.Offset(), "failed to read attribute value", err)
			}
			values = append(values, v)
		}
		attrs = append(attrs, PartialAttribute{Type: string(name), Values: values})
	}

	return &SearchResultEntry{ObjectName: string(objectName), Attributes: attrs}, nil
}

// SearchResultReference is an [APPLICATION 19] continuation reference:
// one or more URIs where the search continues.
type SearchResultReference struct {
	URIs []string
}

func (r *SearchResultReference) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(128)
	pos := e.WriteApplicationTag(ApplicationSearchResultReference, true)
	for _, uri := range r.URIs {
		if err := e.WriteOctetString([]byte(uri)); err != nil {
			return nil, err
		}
	}
	if err := e.EndApplicationTag(pos); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// ParseSearchResultReference decodes reference content octets; RFC 4511
// requires at least one URI.
func ParseSearchResultReference(data []byte) (*SearchResultReference, error) {
	d := ber.NewBERDecoder(data)
	var uris []string
	for d.Remaining() > 0 {
		uri, err := d.ReadOctetString()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read reference URI", err)
		}
		uris = append(uris, string(uri))
	}
	if len(uris) == 0 {
		return nil, NewParseError(0, "search result reference must contain at least one URI", nil)
	}
	return &SearchResultReference{URIs: uris}, nil
}

// The remaining responses are a bare LDAPResult under their respective
// application tags.

// SearchResultDone is the [APPLICATION 5] terminal item of a search.
type SearchResultDone struct{ LDAPResult }

// ModifyResponse is the [APPLICATION 7] modify result.
type ModifyResponse struct{ LDAPResult }

// AddResponse is the [APPLICATION 9] add result.
type AddResponse struct{ LDAPResult }

// DeleteResponse is the [APPLICATION 11] delete result.
type DeleteResponse struct{ LDAPResult }

// ModifyDNResponse is the [APPLICATION 13] modify-DN result.
type ModifyDNResponse struct{ LDAPResult }

// CompareResponse is the [APPLICATION 15] compare result; compareTrue
// and compareFalse arrive as result codes.
type CompareResponse struct{ LDAPResult }

func (r *SearchResultDone) Encode() ([]byte, error) {
	return encodeResultOnly(ApplicationSearchResultDone, &r.LDAPResult)
}

func (r *ModifyResponse) Encode() ([]byte, error) {
	return encodeResultOnly(ApplicationModifyResponse, &r.LDAPResult)
}

func (r *AddResponse) Encode() ([]byte, error) {
	return encodeResultOnly(ApplicationAddResponse, &r.LDAPResult)
}

func (r *DeleteResponse) Encode() ([]byte, error) {
	return encodeResultOnly(ApplicationDelResponse, &r.LDAPResult)
}

func (r *ModifyDNResponse) Encode() ([]byte, error) {
	return encodeResultOnly(ApplicationModifyDNResponse, &r.LDAPResult)
}

func (r *CompareResponse) Encode() ([]byte, error) {
	return encodeResultOnly(ApplicationCompareResponse, &r.LDAPResult)
}

func ParseSearchResultDone(data []byte) (*SearchResultDone, error) {
	result, err := decodeLDAPResult(ber.NewBERDecoder(data))
	if err != nil {
		return nil, err
	}
	return &SearchResultDone{LDAPResult: result}, nil
}

func ParseModifyResponse(data []byte) (*ModifyResponse, error) {
	result, err := decodeLDAPResult(ber.NewBERDecoder(data))
	if err != nil {
		return nil, err
	}
	return &ModifyResponse{LDAPResult: result}, nil
}

func ParseAddResponse(data []byte) (*AddResponse, error) {
	result, err := decodeLDAPResult(ber.NewBERDecoder(data))
	if err != nil {
		return nil, err
	}
	return &AddResponse{LDAPResult: result}, nil
}

func ParseDeleteResponse(data []byte) (*DeleteResponse, error) {
	result, err := decodeLDAPResult(ber.NewBERDecoder(data))
	if err != nil {
		return nil, err
	}
	return &DeleteResponse{LDAPResult: result}, nil
}

func ParseModifyDNResponse(data []byte) (*ModifyDNResponse, error) {
	result, err := decodeLDAPResult(ber.NewBERDecoder(data))
	if err != nil {
		return nil, err
	}
	return &ModifyDNResponse{LDAPResult: result}, nil
}

func ParseCompareResponse(data []byte) (*CompareResponse, error) {
	result, err := decodeLDAPResult(ber.NewBERDecoder(data))
	if err != nil {
		return nil, err
	}
	return &CompareResponse{LDAPResult: result}, nil
}
