package oba

import oerrors "github.com/oba-ldap/oba/internal/errors"

// The client's error taxonomy. Every error the public API
// returns is one of these types (dispatch with errors.As), aliased
// directly from internal/errors so callers never import an internal
// package to match on error kind.
type (
	ConnectionError       = oerrors.ConnectionError
	ProtocolError         = oerrors.ProtocolError
	OperationFailed       = oerrors.OperationFailed
	ReferralError         = oerrors.Referral
	TimeoutError          = oerrors.Timeout
	AbandonedError        = oerrors.Abandoned
	TooManyOutstanding    = oerrors.TooManyOutstanding
	ConnectionClosed      = oerrors.ConnectionClosed
	FilterSyntaxError     = oerrors.FilterSyntaxError
	InvalidDN             = oerrors.InvalidDN
	InvalidValue          = oerrors.InvalidValue
	SchemaConflict        = oerrors.SchemaConflict
	InvalidSyntaxError    = oerrors.InvalidSyntaxError
	SaslNegotiationFailed = oerrors.SaslNegotiationFailed
	UnsupportedControl    = oerrors.UnsupportedControl
)
