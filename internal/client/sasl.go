package client

import (
	"context"
	"errors"
	"net"

	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/ldap"
)

// SASLProvider is the external SASL mechanism contract: the
// connection drives the RFC 4513 bind/challenge loop, the provider
// computes each response. Implementations live outside this module; the
// one exception is ExternalProvider, whose mechanism carries no
// challenge computation at all.
type SASLProvider interface {
	// Start begins a negotiation for mechanism against host, returning
	// the initial client response (nil when the mechanism sends none).
	Start(mechanism, host string) ([]byte, error)
	// Step computes the response to a server challenge.
	Step(challenge []byte) ([]byte, error)
	// Complete reports whether the negotiation has reached a state the
	// provider considers finished.
	Complete() bool
}

// ExternalProvider implements the EXTERNAL mechanism (RFC 4422 appendix
// A): the client is identified by lower-layer credentials (the TLS client
// certificate, or the Unix socket peer for ldapi://), so the only payload
// is an optional authorization identity. It is the default mechanism for
// ldapi:// connections.
type ExternalProvider struct {
	AuthzID string
}

func (p *ExternalProvider) Start(mechanism, host string) ([]byte, error) {
	return []byte(p.AuthzID), nil
}

func (p *ExternalProvider) Step(challenge []byte) ([]byte, error) {
	return nil, errors.New("EXTERNAL mechanism expects no server challenge")
}

func (p *ExternalProvider) Complete() bool { return true }

// saslRound sends one SASL bindRequest and parses the bindResponse,
// without interpreting the result code. Bind and BindSASL state
// transitions stay with the callers.
func (c *Connection) saslRound(ctx context.Context, mechanism string, credentials []byte) (*ldap.BindResponse, error) {
	req := &ldap.BindRequest{
		Version:    3,
		AuthMethod: ldap.AuthMethodSASL,
		SASLCredentials: &ldap.SASLCredentials{
			Mechanism:   mechanism,
			Credentials: credentials,
		},
	}
	body, err := req.Encode()
	if err != nil {
		return nil, &oerrors.ProtocolError{Detail: "encode sasl bind request", Err: err}
	}
	msg, err := c.roundTrip(ctx, ldap.ApplicationBindRequest, body, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ldap.ParseBindResponse(msg.Operation.Data)
	if err != nil {
		return nil, &oerrors.ProtocolError{Detail: "parse sasl bind response", Err: err}
	}
	return resp, nil
}

// BindSASLProvider performs a full SASL bind, driving the RFC 4513
// challenge loop against provider until the server reports success or
// failure. Provider errors surface as SaslNegotiationFailed.
func (c *Connection) BindSASLProvider(ctx context.Context, mechanism string, provider SASLProvider) error {
	if err := c.beginBind(); err != nil {
		return err
	}
	defer c.endBind()

	initial, err := provider.Start(mechanism, c.remoteHost())
	if err != nil {
		return &oerrors.SaslNegotiationFailed{Mechanism: mechanism, Err: err}
	}

	credentials := initial
	for {
		resp, err := c.saslRound(ctx, mechanism, credentials)
		if err != nil {
			return err
		}
		switch resp.ResultCode {
		case ldap.ResultSASLBindInProgress:
			next, serr := provider.Step(resp.ServerSASLCreds)
			if serr != nil {
				return &oerrors.SaslNegotiationFailed{Mechanism: mechanism, Err: serr}
			}
			credentials = next

		case ldap.ResultSuccess:
			// Some mechanisms deliver a final server confirmation
			// alongside the success result; it still must be fed to the
			// provider before completion is judged (RFC 4513 §5.2).
			if len(resp.ServerSASLCreds) > 0 {
				if _, serr := provider.Step(resp.ServerSASLCreds); serr != nil {
					return &oerrors.SaslNegotiationFailed{Mechanism: mechanism, Err: serr}
				}
			}
			if !provider.Complete() {
				return &oerrors.SaslNegotiationFailed{
					Mechanism: mechanism,
					Err:       errors.New("server reported success before the mechanism completed"),
				}
			}
			c.markBound()
			return nil

		default:
			return &oerrors.SaslNegotiationFailed{Mechanism: mechanism, Err: resultError(resp.LDAPResult)}
		}
	}
}

// remoteHost returns the host portion of the peer address, handed to
// SASLProvider.Start so mechanisms that bind the negotiation to the
// server name (DIGEST-MD5, GSSAPI) can do so.
func (c *Connection) remoteHost() string {
	addr := c.rawConn().RemoteAddr()
	if addr == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}
