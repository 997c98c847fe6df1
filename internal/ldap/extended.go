package ldap

import (
	"errors"

	"github.com/oba-ldap/oba/internal/ber"
)

// Context-specific tags used by ExtendedRequest/ExtendedResponse/
// IntermediateResponse. Note that ExtendedResponse reuses [10]/[11] rather
// than [0]/[1] because it also carries the LDAPResult COMPONENTS OF fields,
// which already occupy the low tag numbers implicitly via their universal
// encoding.
const (
	ContextTagRequestName   = 0  // [0] requestName
	ContextTagRequestValue  = 1  // [1] requestValue
	ContextTagResponseName  = 10 // [10] responseName
	ContextTagResponseValue = 11 // [11] responseValue

	// IntermediateResponse reuses [0]/[1] for its own responseName/responseValue.
	ContextTagIntermediateName  = 0
	ContextTagIntermediateValue = 1
)

// ErrMissingRequestName is returned when an ExtendedRequest has no OID.
var ErrMissingRequestName = errors.New("ldap: extended request requires a requestName OID")

// ExtendedRequest represents an LDAP Extended Request.
// Per RFC 4511 Section 4.12:
// ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
//
//	requestName      [0] LDAPOID,
//	requestValue     [1] OCTET STRING OPTIONAL
//
// }
type ExtendedRequest struct {
	// RequestName is the OID identifying the extended operation.
	RequestName string
	// RequestValue is the operation-specific payload (optional).
	RequestValue []byte
}

// Encode encodes the ExtendedRequest to BER format.
func (r *ExtendedRequest) Encode() ([]byte, error) {
	if r.RequestName == "" {
		return nil, ErrMissingRequestName
	}

	encoder := ber.NewBEREncoder(128)
	appPos := encoder.WriteApplicationTag(ApplicationExtendedRequest, true)

	if err := encoder.WriteTaggedValue(ContextTagRequestName, false, []byte(r.RequestName)); err != nil {
		return nil, err
	}
	if r.RequestValue != nil {
		if err := encoder.WriteTaggedValue(ContextTagRequestValue, false, r.RequestValue); err != nil {
			return nil, err
		}
	}

	if err := encoder.EndApplicationTag(appPos); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// ParseExtendedRequest parses an ExtendedRequest from raw operation data
// (the contents of the APPLICATION 23 tag).
func ParseExtendedRequest(data []byte) (*ExtendedRequest, error) {
	decoder := ber.NewBERDecoder(data)
	req := &ExtendedRequest{}

	tagNum, _, value, err := decoder.ReadTaggedValue()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read requestName", err)
	}
	if tagNum != ContextTagRequestName {
		return nil, NewParseError(decoder.Offset(), "expected requestName [0]", ErrMissingRequestName)
	}
	req.RequestName = string(value)

	if decoder.Remaining() > 0 {
		tagNum, _, value, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read requestValue", err)
		}
		if tagNum == ContextTagRequestValue {
			req.RequestValue = value
		}
	}

	return req, nil
}

// ExtendedResponse represents an LDAP Extended Response.
// Per RFC 4511 Section 4.12:
// ExtendedResponse ::= [APPLICATION 24] SEQUENCE {
//
//	COMPONENTS OF LDAPResult,
//	responseName     [10] LDAPOID OPTIONAL,
//	responseValue    [11] OCTET STRING OPTIONAL
//
// }
type ExtendedResponse struct {
	LDAPResult
	// ResponseName is the OID identifying the extended operation (optional).
	ResponseName string
	// ResponseValue is the operation-specific payload (optional).
	ResponseValue []byte
}

// Encode encodes the ExtendedResponse to BER format.
func (r *ExtendedResponse) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(128)
	appPos := encoder.WriteApplicationTag(ApplicationExtendedResponse, true)

	if err := r.LDAPResult.Encode(encoder); err != nil {
		return nil, err
	}

	if r.ResponseName != "" {
		if err := encoder.WriteTaggedValue(ContextTagResponseName, false, []byte(r.ResponseName)); err != nil {
			return nil, err
		}
	}
	if r.ResponseValue != nil {
		if err := encoder.WriteTaggedValue(ContextTagResponseValue, false, r.ResponseValue); err != nil {
			return nil, err
		}
	}

	if err := encoder.EndApplicationTag(appPos); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// ParseExtendedResponse parses an ExtendedResponse from raw operation data
// (the contents of the APPLICATION 24 tag).
func ParseExtendedResponse(data []byte) (*ExtendedResponse, error) {
	decoder := ber.NewBERDecoder(data)

	result, err := decodeLDAPResult(decoder)
	if err != nil {
		return nil, err
	}
	resp := &ExtendedResponse{LDAPResult: result}

	for decoder.Remaining() > 0 {
		tagNum, _, value, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read extended response field", err)
		}
		switch tagNum {
		case ContextTagResponseName:
			resp.ResponseName = string(value)
		case ContextTagResponseValue:
			resp.ResponseValue = value
		}
	}

	return resp, nil
}

// IntermediateResponse represents an LDAP Intermediate Response, used by
// extended operations that stream back more than one response before
// completing (e.g. a paged search-like extension).
// Per RFC 4511 Section 4.13:
// IntermediateResponse ::= [APPLICATION 25] SEQUENCE {
//
//	responseName     [0] LDAPOID OPTIONAL,
//	responseValue    [1] OCTET STRING OPTIONAL
//
// }
type IntermediateResponse struct {
	// ResponseName is the OID identifying the intermediate response type (optional).
	ResponseName string
	// ResponseValue is the response-specific payload (optional).
	ResponseValue []byte
}

// Encode encodes the IntermediateResponse to BER format.
func (r *IntermediateResponse) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(128)
	appPos := encoder.WriteApplicationTag(ApplicationIntermediateResponse, true)

	if r.ResponseName != "" {
		if err := encoder.WriteTaggedValue(ContextTagIntermediateName, false, []byte(r.ResponseName)); err != nil {
			return nil, err
		}
	}
	if r.ResponseValue != nil {
		if err := encoder.WriteTaggedValue(ContextTagIntermediateValue, false, r.ResponseValue); err != nil {
			return nil, err
		}
	}

	if err := encoder.EndApplicationTag(appPos); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// ParseIntermediateResponse parses an IntermediateResponse from raw
// operation data (the contents of the APPLICATION 25 tag).
func ParseIntermediateResponse(data []byte) (*IntermediateResponse, error) {
	decoder := ber.NewBERDecoder(data)
	resp := &IntermediateResponse{}

	for decoder.Remaining() > 0 {
		tagNum, _, value, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read intermediate response field", err)
		}
		switch tagNum {
		case ContextTagIntermediateName:
			resp.ResponseName = string(value)
		case ContextTagIntermediateValue:
			resp.ResponseValue = value
		}
	}

	return resp, nil
}
