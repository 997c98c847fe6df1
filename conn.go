package oba

import (
	"crypto/tls"

	"github.com/oba-ldap/oba/internal/client"
)

// Conn is a single multiplexed LDAP connection: one
// net.Conn, one reader goroutine routing responses to per-message-ID
// waiters, and a request method for every RFC 4511 operation. Conn embeds
// *internal/client.Connection directly so its full method set (Bind,
// BindSASL, Add, Delete, Modify, ModifyDN, Compare, Extended, Search,
// Abandon, Close, State, RootDSE, SupportsControl, Extension,...) is
// promoted without restating it here; this file adds only what the
// internal type cannot express on its own (constructing a Conn, and the
// DefaultsConfig-driven dial entry points).
type Conn struct {
	*client.Connection
}

// Dial opens a plain TCP connection to address ("host:port") and performs
// the client connection setup: start the reader loop, then
// probe the root DSE before returning the connection to the caller.
// Transport dialing is otherwise an external collaborator; this
// is the one case the core performs it directly, since a bare
// "ldap://host:port" TCP dial carries no negotiation of its own (TLS and
// StartTLS are handled by DialTLS and Conn.StartTLS respectively).
func Dial(address string, defaults DefaultsConfig) (*Conn, error) {
	c, err := client.Dial(address, defaults.cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{Connection: c}, nil
}

// DialTLS opens a TLS connection to address using tlsConfig.
func DialTLS(address string, tlsConfig *tls.Config, defaults DefaultsConfig) (*Conn, error) {
	c, err := client.DialTLS(address, tlsConfig, defaults.cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{Connection: c}, nil
}

// DialURL opens a connection to an LDAP URI: ldap://host[:port],
// ldaps://host[:port], or ldapi://percent-encoded-path.
// tlsConfig applies only to ldaps://. For ldapi:// connections the
// conventional next step is BindSASLProvider with an ExternalSASL
// provider, the default mechanism over Unix sockets.
func DialURL(rawURL string, tlsConfig *tls.Config, defaults DefaultsConfig) (*Conn, error) {
	c, err := client.DialURL(rawURL, tlsConfig, defaults.cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{Connection: c}, nil
}

// Object binds a directory object to this connection at dn,
// with relativeScope as its default scope for Find/relative searches.
func (c *Conn) Object(dn string, relativeScope RelativeScope) (*Object, error) {
	return newObject(c, dn, relativeScope)
}
