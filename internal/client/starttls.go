package client

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/ext"
)

// StartTLSOID is the StartTLS extended operation OID (RFC 4511 §4.14).
const StartTLSOID = "1.3.6.1.4.1.1466.20037"

// StartTLS promotes the connection to TLS in place (RFC 4513 §3): it
// issues the StartTLS extended request, and on success pauses the reader
// loop, runs the TLS handshake over the raw conn, swaps the upgraded conn
// in, and resumes the reader. The request itself is permitted while a
// bind is in flight. The handshake is not reversible: on handshake
// failure the connection is closed, since the peer's stream position can
// no longer be trusted.
func (c *Connection) StartTLS(ctx context.Context, tlsConfig *tls.Config) error {
	resp, err := c.Extended(ctx, StartTLSOID, nil, nil)
	if err != nil {
		return err
	}
	if resp.ResponseName != "" && resp.ResponseName != StartTLSOID {
		return &oerrors.ProtocolError{Detail: "unexpected responseName in StartTLS response: " + resp.ResponseName}
	}

	raw, err := c.pauseReader()
	if err != nil {
		return err
	}

	tlsConn := tls.Client(raw, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		c.resumeReader(raw)
		c.Close()
		return &oerrors.ConnectionError{Op: "starttls handshake", Err: err}
	}

	c.resumeReader(tlsConn)
	return nil
}

// pauseReader stops the reader loop's consumption of the raw conn so the
// TLS handshake can take it over: it flags the pause, forces the blocked
// Read to return via an immediate read deadline, and waits for the
// reader's acknowledgement.
func (c *Connection) pauseReader() (net.Conn, error) {
	raw := c.rawConn()
	c.pausing.Store(true)
	if err := raw.SetReadDeadline(time.Now()); err != nil {
		c.pausing.Store(false)
		return nil, &oerrors.ConnectionError{Op: "starttls pause", Err: err}
	}
	select {
	case <-c.pauseAckCh:
	case <-c.readerDone:
		c.pausing.Store(false)
		return nil, &oerrors.ConnectionClosed{Reason: "reader exited before StartTLS handshake"}
	}
	if err := raw.SetReadDeadline(time.Time{}); err != nil {
		return nil, &oerrors.ConnectionError{Op: "starttls pause", Err: err}
	}
	return raw, nil
}

// resumeReader installs conn as the connection's transport and restarts
// the paused reader loop against it.
func (c *Connection) resumeReader(conn net.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.pausing.Store(false)
	c.resumeCh <- struct{}{}
}

// TLSExt is the namespace registered under the "starttls" extension name:
// conn.Extension("starttls") returns one of these, bound to the
// connection that constructed it.
type TLSExt struct {
	conn *Connection
}

func init() {
	ext.Register("starttls", func(host any) any {
		return &TLSExt{conn: host.(*Connection)}
	})
}

// Upgrade runs the StartTLS exchange on the namespace's connection.
func (e *TLSExt) Upgrade(ctx context.Context, tlsConfig *tls.Config) error {
	return e.conn.StartTLS(ctx, tlsConfig)
}
