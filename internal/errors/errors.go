// Package errors defines the typed error taxonomy used across the oba
// client. Every error a caller can observe from the public API is one of
// the kinds declared here, so callers can dispatch on type with errors.As
// instead of matching on message text.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Wrap attaches a stack trace to err at an I/O or server-result boundary,
// the way trevex-terraform-provider-ldap wraps its go-ldap calls. A nil err
// returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, message)
}

// ConnectionError indicates a transport failure: a dial error, unexpected
// EOF, or TLS failure reported by the underlying net.Conn.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("oba: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError indicates malformed BER, a message that does not conform
// to RFC 4511, or a server-reported protocolError result code.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oba: protocol error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("oba: protocol error: %s", e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// OperationFailed is returned when a well-formed operation reaches the
// server but the server reports a non-success result code.
type OperationFailed struct {
	ResultCode        int
	ResultName        string
	DiagnosticMessage string
	MatchedDN         string
}

func (e *OperationFailed) Error() string {
	if e.DiagnosticMessage != "" {
		return fmt.Sprintf("oba: operation failed: %s (%d): %s", e.ResultName, e.ResultCode, e.DiagnosticMessage)
	}
	return fmt.Sprintf("oba: operation failed: %s (%d)", e.ResultName, e.ResultCode)
}

// Referral is returned in place of OperationFailed when the server result
// code is "referral". Referrals are not followed automatically.
type Referral struct {
	URLs []string
}

func (e *Referral) Error() string {
	return fmt.Sprintf("oba: referral to %v", e.URLs)
}

// Timeout is returned when a per-operation deadline expires locally before
// a response arrives. The connection sends an abandon for the operation
// but does not wait for server acknowledgement.
type Timeout struct {
	MessageID int
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("oba: operation %d timed out", e.MessageID)
}

// Abandoned is returned to a waiter whose operation was cancelled, either
// by an explicit Abandon call or by context cancellation.
type Abandoned struct {
	MessageID int
}

func (e *Abandoned) Error() string {
	return fmt.Sprintf("oba: operation %d was abandoned", e.MessageID)
}

// TooManyOutstanding is returned when the message-ID space is exhausted:
// every ID in 1..MaxMessageID is already assigned to a pending operation.
type TooManyOutstanding struct{}

func (e *TooManyOutstanding) Error() string {
	return "oba: too many outstanding requests, no message ID available"
}

// ConnectionClosed is returned to every pending waiter when the caller
// closes the connection or the server sends a disconnection notice, and
// to any new call attempted once the connection is closing or closed. A
// read failure on the socket fails pending waiters with ConnectionError
// instead.
type ConnectionClosed struct {
	Reason string
}

func (e *ConnectionClosed) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("oba: connection closed: %s", e.Reason)
	}
	return "oba: connection closed"
}

// FilterSyntaxError is returned by a search whose filter string fails to
// parse. The filter parser's own errors carry no offset, so Position is
// left at zero.
type FilterSyntaxError struct {
	Position int
	Expected string
	Input    string
}

func (e *FilterSyntaxError) Error() string {
	return fmt.Sprintf("oba: filter syntax error at position %d: expected %s in %q", e.Position, e.Expected, e.Input)
}

// InvalidDN is returned when a string fails RFC 4514 DN parsing.
type InvalidDN struct {
	Input  string
	Reason string
}

func (e *InvalidDN) Error() string {
	return fmt.Sprintf("oba: invalid DN %q: %s", e.Input, e.Reason)
}

// InvalidValue is returned for locally-rejected attribute values, such as
// inserting the DELETE_ALL sentinel into a concrete value list.
type InvalidValue struct {
	Attribute string
	Reason    string
}

func (e *InvalidValue) Error() string {
	return fmt.Sprintf("oba: invalid value for attribute %q: %s", e.Attribute, e.Reason)
}

// SchemaConflict is returned when registering a schema element whose OID
// matches an existing element but whose definition differs.
type SchemaConflict struct {
	OID    string
	Reason string
}

func (e *SchemaConflict) Error() string {
	return fmt.Sprintf("oba: schema conflict for OID %s: %s", e.OID, e.Reason)
}

// InvalidSyntaxError is returned when a value fails client-side syntax
// validation against its attribute type's declared syntax rule.
type InvalidSyntaxError struct {
	Syntax string
	Value  string
}

func (e *InvalidSyntaxError) Error() string {
	return fmt.Sprintf("oba: value %q does not satisfy syntax %s", e.Value, e.Syntax)
}

// SaslNegotiationFailed wraps an error returned by the external SASL
// provider during the RFC 4513 bind/challenge loop.
type SaslNegotiationFailed struct {
	Mechanism string
	Err       error
}

func (e *SaslNegotiationFailed) Error() string {
	return fmt.Sprintf("oba: SASL negotiation failed for mechanism %s: %v", e.Mechanism, e.Err)
}

func (e *SaslNegotiationFailed) Unwrap() error { return e.Err }

// UnsupportedControl is returned when a critical control is not present in
// the root DSE's supportedControl list (client-side pre-flight). A server
// that rejects a control answers with a result code, which surfaces as
// OperationFailed.
type UnsupportedControl struct {
	OID string
}

func (e *UnsupportedControl) Error() string {
	return fmt.Sprintf("oba: unsupported critical control %s", e.OID)
}
