package client

import (
	"context"

	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/ldap"
)

// Bind performs a simple bind and, on success, transitions the
// connection's state to Bound.
func (c *Connection) Bind(ctx context.Context, dn, password string) error {
	if err := c.beginBind(); err != nil {
		return err
	}
	defer c.endBind()
	req := &ldap.BindRequest{
		Version:        3,
		Name:           dn,
		AuthMethod:     ldap.AuthMethodSimple,
		SimplePassword: []byte(password),
	}
	body, err := req.Encode()
	if err != nil {
		return &oerrors.ProtocolError{Detail: "encode bind request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationBindRequest, body, nil)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseBindResponse(msg.Operation.Data)
	if err != nil {
		return &oerrors.ProtocolError{Detail: "parse bind response", Err: err}
	}
	if resp.ResultCode != ldap.ResultSuccess {
		return resultError(resp.LDAPResult)
	}
	c.markBound()
	return nil
}

// BindSASL performs a SASL bind with pre-computed mechanism and
// credentials (the external SASL negotiation loop, if any, lives above
// this package; this method sends exactly one bindRequest/bindResponse
// round trip per RFC 4511 §4.2, repeated by the caller for multi-step
// mechanisms using the returned ServerSASLCreds as the next challenge).
func (c *Connection) BindSASL(ctx context.Context, mechanism string, credentials []byte) ([]byte, error) {
	if err := c.beginBind(); err != nil {
		return nil, err
	}
	defer c.endBind()
	resp, err := c.saslRound(ctx, mechanism, credentials)
	if err != nil {
		return nil, err
	}
	if resp.ResultCode == ldap.ResultSASLBindInProgress {
		return resp.ServerSASLCreds, nil
	}
	if resp.ResultCode != ldap.ResultSuccess {
		return nil, &oerrors.SaslNegotiationFailed{Mechanism: mechanism, Err: resultError(resp.LDAPResult)}
	}
	c.markBound()
	return resp.ServerSASLCreds, nil
}

// Add issues an AddRequest.
func (c *Connection) Add(ctx context.Context, dn string, attrs []ldap.Attribute, controls []ldap.Control) error {
	if err := c.gate(); err != nil {
		return err
	}
	req := &ldap.AddRequest{Entry: dn, Attributes: attrs}
	body, err := req.Encode()
	if err != nil {
		return &oerrors.ProtocolError{Detail: "encode add request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationAddRequest, body, controls)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseAddResponse(msg.Operation.Data)
	if err != nil {
		return &oerrors.ProtocolError{Detail: "parse add response", Err: err}
	}
	return resultError(resp.LDAPResult)
}

// Delete issues a DeleteRequest.
func (c *Connection) Delete(ctx context.Context, dn string, controls []ldap.Control) error {
	if err := c.gate(); err != nil {
		return err
	}
	req := &ldap.DeleteRequest{DN: dn}
	body, err := req.Encode()
	if err != nil {
		return &oerrors.ProtocolError{Detail: "encode delete request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationDelRequest, body, controls)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseDeleteResponse(msg.Operation.Data)
	if err != nil {
		return &oerrors.ProtocolError{Detail: "parse delete response", Err: err}
	}
	return resultError(resp.LDAPResult)
}

// Modify issues a raw ModifyRequest. internal/modify builds the change
// list and calls this method; it does not duplicate the wire encoding.
func (c *Connection) Modify(ctx context.Context, dn string, changes []ldap.Modification, controls []ldap.Control) error {
	if err := c.gate(); err != nil {
		return err
	}
	req := &ldap.ModifyRequest{Object: dn, Changes: changes}
	body, err := req.Encode()
	if err != nil {
		return &oerrors.ProtocolError{Detail: "encode modify request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationModifyRequest, body, controls)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseModifyResponse(msg.Operation.Data)
	if err != nil {
		return &oerrors.ProtocolError{Detail: "parse modify response", Err: err}
	}
	return resultError(resp.LDAPResult)
}

// ModifyDN issues a ModifyDNRequest (rename and/or reparent).
func (c *Connection) ModifyDN(ctx context.Context, dn, newRDN string, deleteOldRDN bool, newSuperior string, controls []ldap.Control) error {
	if err := c.gate(); err != nil {
		return err
	}
	req := &ldap.ModifyDNRequest{
		Entry:        dn,
		NewRDN:       newRDN,
		DeleteOldRDN: deleteOldRDN,
		NewSuperior:  newSuperior,
	}
	body, err := req.Encode()
	if err != nil {
		return &oerrors.ProtocolError{Detail: "encode modifyDN request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationModifyDNRequest, body, controls)
	if err != nil {
		return err
	}
	resp, err := ldap.ParseModifyDNResponse(msg.Operation.Data)
	if err != nil {
		return &oerrors.ProtocolError{Detail: "parse modifyDN response", Err: err}
	}
	return resultError(resp.LDAPResult)
}

// Compare issues a CompareRequest, returning the compareTrue/compareFalse
// outcome as a bool rather than as an OperationFailed error, since both
// are expected, successful outcomes of the operation (RFC 4511 §4.10).
func (c *Connection) Compare(ctx context.Context, dn, attribute string, value []byte, controls []ldap.Control) (bool, error) {
	if err := c.gate(); err != nil {
		return false, err
	}
	req := &ldap.CompareRequest{DN: dn, Attribute: attribute, Value: value}
	body, err := req.Encode()
	if err != nil {
		return false, &oerrors.ProtocolError{Detail: "encode compare request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationCompareRequest, body, controls)
	if err != nil {
		return false, err
	}
	resp, err := ldap.ParseCompareResponse(msg.Operation.Data)
	if err != nil {
		return false, &oerrors.ProtocolError{Detail: "parse compare response", Err: err}
	}
	switch resp.ResultCode {
	case ldap.ResultCompareTrue:
		return true, nil
	case ldap.ResultCompareFalse:
		return false, nil
	default:
		return false, resultError(resp.LDAPResult)
	}
}

// Extended issues an ExtendedRequest and returns the raw response, letting
// callers (internal/ext namespaces, WhoAmI, StartTLS) decode
// responseValue themselves.
func (c *Connection) Extended(ctx context.Context, requestName string, requestValue []byte, controls []ldap.Control) (*ldap.ExtendedResponse, error) {
	// StartTLS is the one request allowed while a bind is in flight;
	// everything else waits for the bind to settle.
	if requestName != StartTLSOID {
		if err := c.gate(); err != nil {
			return nil, err
		}
	}
	req := &ldap.ExtendedRequest{RequestName: requestName, RequestValue: requestValue}
	full, err := req.Encode()
	if err != nil {
		return nil, &oerrors.ProtocolError{Detail: "encode extended request", Err: err}
	}
	body, err := stripOuterTag(full)
	if err != nil {
		return nil, &oerrors.ProtocolError{Detail: "normalize extended request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationExtendedRequest, body, controls)
	if err != nil {
		return nil, err
	}
	resp, err := ldap.ParseExtendedResponse(msg.Operation.Data)
	if err != nil {
		return nil, &oerrors.ProtocolError{Detail: "parse extended response", Err: err}
	}
	if resp.ResultCode != ldap.ResultSuccess {
		return resp, resultError(resp.LDAPResult)
	}
	return resp, nil
}
