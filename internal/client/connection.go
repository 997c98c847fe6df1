// Package client implements the LDAP v3 connection core: message-ID
// multiplexing over a single net.Conn, one reader goroutine routing
// responses back to per-call waiters, and a request method for every
// protocol operation.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oba-ldap/oba/internal/ber"
	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/ext"
	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/logging"
	"github.com/oba-ldap/oba/internal/schema"
)

// disconnectionNoticeOID is the unsolicited notification a server sends
// immediately before closing a connection it is tearing down itself
// (RFC 4511 §4.4.1).
const disconnectionNoticeOID = "1.3.6.1.4.1.1466.20036"

// StreamItem is one element delivered on a search stream: either an
// entry, a continuation reference, an intermediate response, or the
// final SearchResultDone (Done != nil marks the terminal item).
type StreamItem struct {
	Entry        *ldap.SearchResultEntry
	Reference    *ldap.SearchResultReference
	Intermediate *ldap.IntermediateResponse
	Done         *ldap.SearchResultDone
	Controls     []ldap.Control
	Err          error
}

type waiter struct {
	respCh   chan *ldap.LDAPMessage
	streamCh chan *StreamItem
	errCh    chan error
}

// Connection is a single multiplexed LDAP connection: one net.Conn, one
// reader goroutine, and a table of outstanding requests keyed by message
// ID.
type Connection struct {
	connMu sync.RWMutex
	conn   net.Conn
	cfg    Config
	logger logging.Logger

	state stateBox

	// pausing/pauseAckCh/resumeCh implement StartTLS's conn-swap protocol
	// (see starttls.go): the reader loop can be asked to stop consuming
	// from the raw conn so the TLS handshake can take it over, then
	// resumed against the upgraded conn.
	pausing    atomic.Bool
	pauseAckCh chan struct{}
	resumeCh   chan struct{}

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int32]*waiter
	nextID    int32

	bindInFlight atomic.Bool

	unsolicitedMu sync.Mutex
	unsolicited   func(*ldap.LDAPMessage)

	ext *ext.Registry

	rootDSEMu sync.RWMutex
	rootDSE   *RootDSE

	schemaMu sync.RWMutex
	schm     *schema.Schema

	readerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// Dial opens a plain TCP connection to address, starts the reader loop,
// then probes the root DSE before returning the connection to the
// caller.
func Dial(address string, cfg Config) (*Connection, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.Dial("tcp", address)
	if err != nil {
		return nil, &oerrors.ConnectionError{Op: "dial", Err: oerrors.Wrap(err, "dial "+address)}
	}
	return newConnection(conn, cfg)
}

// DialTLS opens a TLS connection to address.
func DialTLS(address string, tlsConfig *tls.Config, cfg Config) (*Connection, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := tls.DialWithDialer(&d, "tcp", address, tlsConfig)
	if err != nil {
		return nil, &oerrors.ConnectionError{Op: "dial-tls", Err: oerrors.Wrap(err, "dial "+address)}
	}
	return newConnection(conn, cfg)
}

func newConnection(conn net.Conn, cfg Config) (*Connection, error) {
	c := &Connection{
		conn:       conn,
		cfg:        cfg,
		logger:     cfg.logger(),
		pending:    make(map[int32]*waiter),
		readerDone: make(chan struct{}),
		pauseAckCh: make(chan struct{}),
		resumeCh:   make(chan struct{}),
	}
	c.ext = ext.NewRegistry(c)
	c.state.store(StateOpening)
	go c.readLoop()
	c.state.store(StateOpen)

	if dse, err := c.probeRootDSE(); err != nil {
		c.logger.Warn("root DSE probe failed, continuing without it", "err", err)
	} else {
		c.rootDSEMu.Lock()
		c.rootDSE = dse
		c.rootDSEMu.Unlock()
	}

	return c, nil
}

// rawConn returns the current underlying net.Conn, which StartTLS may
// have swapped for a *tls.Conn since the connection was dialed.
func (c *Connection) rawConn() net.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	return c.state.load()
}

// Config returns the Config the connection was built with, for use by
// internal/modify's planner (Strict, EmptyValuePolicy) and by object.go's
// default search attributes.
func (c *Connection) Config() Config {
	return c.cfg
}

// BindSchema attaches a schema used for attribute equality comparisons by
// internal/modify and internal/attrmap when planning modifications
// against entries read from this connection.
func (c *Connection) BindSchema(s *schema.Schema) {
	c.schemaMu.Lock()
	c.schm = s
	c.schemaMu.Unlock()
	schema.Logger = c.logger
}

// Schema returns the connection's bound schema, or nil if none is set.
func (c *Connection) Schema() *schema.Schema {
	c.schemaMu.RLock()
	defer c.schemaMu.RUnlock()
	return c.schm
}

// OnUnsolicited registers a callback invoked for every message ID 0
// notification this connection receives that is not the disconnection
// notice (which the connection handles itself).
func (c *Connection) OnUnsolicited(fn func(*ldap.LDAPMessage)) {
	c.unsolicitedMu.Lock()
	c.unsolicited = fn
	c.unsolicitedMu.Unlock()
}

// Extension looks up a registered extension namespace by name.
func (c *Connection) Extension(name string) (any, bool) {
	return c.ext.Lookup(name)
}

// Close transitions the connection to Closing then Closed, sends a
// best-effort UnbindRequest, closes the underlying net.Conn, and fails
// every outstanding waiter with ConnectionClosed.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		for {
			cur := c.state.load()
			if cur == StateClosed {
				break
			}
			if c.state.compareAndSwap(cur, StateClosing) {
				break
			}
		}
		_ = c.sendUnbindBestEffort()
		c.closeErr = c.conn.Close()
		c.state.store(StateClosed)
		c.failAll(&oerrors.ConnectionClosed{Reason: "closed by caller"})
	})
	return c.closeErr
}

func (c *Connection) sendUnbindBestEffort() error {
	body, err := (&ldap.UnbindRequest{}).Encode()
	if err != nil {
		return err
	}
	id, w, err := c.nextIDAndRegister(nil)
	if err != nil {
		return err
	}
	defer c.removeWaiter(id)
	_ = w
	return c.write(id, ldap.ApplicationUnbindRequest, body, nil)
}

// nextIDAndRegister allocates a message ID and registers w for it (if w
// is non-nil) in a single critical section, so no other caller can be
// handed the same ID before it is claimed in the pending table.
func (c *Connection) nextIDAndRegister(w *waiter) (int32, *waiter, error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for i := 0; i < ldap.MaxMessageID; i++ {
		c.nextID++
		if c.nextID <= 0 || c.nextID > ldap.MaxMessageID {
			c.nextID = 1
		}
		if _, taken := c.pending[c.nextID]; !taken {
			if w != nil {
				c.pending[c.nextID] = w
			}
			return c.nextID, w, nil
		}
	}
	return 0, nil, &oerrors.TooManyOutstanding{}
}

func (c *Connection) removeWaiter(id int32) *waiter {
	c.pendingMu.Lock()
	w := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()
	return w
}

// write serializes and writes a single LDAPMessage. Writes are ordered by
// writeMu; no dedicated writer goroutine is needed since every call path
// already holds the message fully formed before writing.
func (c *Connection) write(id int32, tag int, body []byte, controls []ldap.Control) error {
	msg := &ldap.LDAPMessage{
		MessageID: int(id),
		Operation: &ldap.RawOperation{Tag: tag, Data: body},
		Controls:  controls,
	}
	data, err := msg.Encode()
	if err != nil {
		return &oerrors.ProtocolError{Detail: "encode request", Err: err}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.rawConn().Write(data); err != nil {
		return &oerrors.ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// beginBind claims the connection's single bind-in-flight slot; exactly
// one bind may be in flight at a time (RFC 4511 §4.2.1).
func (c *Connection) beginBind() error {
	if !c.bindInFlight.CompareAndSwap(false, true) {
		return &oerrors.ProtocolError{Detail: "a bind is already in flight on this connection"}
	}
	return nil
}

func (c *Connection) endBind() {
	c.bindInFlight.Store(false)
}

// markBound transitions the connection to Bound after a successful bind.
func (c *Connection) markBound() {
	for {
		cur := c.state.load()
		if cur == StateBound || cur >= StateClosing || c.state.compareAndSwap(cur, StateBound) {
			return
		}
	}
}

// gate rejects a request locally before any bytes are sent when the
// connection's lifecycle does not permit it: a bind is in flight (only
// unbind, abandon, and StartTLS may proceed, per RFC 4511 §4.2.1), or
// the connection is closing or closed.
func (c *Connection) gate() error {
	if s := c.state.load(); s >= StateClosing {
		return &oerrors.ConnectionClosed{Reason: "connection is " + s.String()}
	}
	if c.bindInFlight.Load() {
		return &oerrors.ProtocolError{Detail: "request rejected while a bind is in flight"}
	}
	return nil
}

// roundTrip sends a single-response request and blocks until the
// matching response arrives, the per-operation timeout fires, ctx is
// cancelled, or the connection closes. Critical controls are checked
// against the probed root DSE before any bytes are sent.
func (c *Connection) roundTrip(ctx context.Context, tag int, body []byte, controls []ldap.Control) (*ldap.LDAPMessage, error) {
	if err := c.checkControls(controls); err != nil {
		return nil, err
	}
	w := &waiter{respCh: make(chan *ldap.LDAPMessage, 1), errCh: make(chan error, 1)}
	id, _, err := c.nextIDAndRegister(w)
	if err != nil {
		return nil, err
	}
	if err := c.write(id, tag, body, controls); err != nil {
		c.removeWaiter(id)
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if c.cfg.OperationTimeout > 0 {
		timer := time.NewTimer(c.cfg.OperationTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case msg := <-w.respCh:
		return msg, nil
	case err := <-w.errCh:
		return nil, err
	case <-timeoutCh:
		c.abandonLocally(id)
		return nil, &oerrors.Timeout{MessageID: int(id)}
	case <-ctx.Done():
		c.abandonLocally(id)
		return nil, &oerrors.Abandoned{MessageID: int(id)}
	}
}

// abandonLocally removes id's waiter and best-effort sends an
// AbandonRequest; the server's eventual (non-)response is discarded
// since the pending entry is already gone.
func (c *Connection) abandonLocally(id int32) {
	c.removeWaiter(id)
	body, err := (&ldap.AbandonRequest{MessageID: int(id)}).Encode()
	if err != nil {
		return
	}
	abandonID, _, err := c.nextIDAndRegister(nil)
	if err != nil {
		return
	}
	defer c.removeWaiter(abandonID)
	_ = c.write(abandonID, ldap.ApplicationAbandonRequest, body, nil)
}

// Abandon cancels an outstanding operation by message ID.
func (c *Connection) Abandon(messageID int) error {
	w := c.removeWaiter(int32(messageID))
	if w == nil {
		return nil
	}
	failWaiter(w, &oerrors.Abandoned{MessageID: messageID})

	body, err := (&ldap.AbandonRequest{MessageID: messageID}).Encode()
	if err != nil {
		return err
	}
	id, _, err := c.nextIDAndRegister(nil)
	if err != nil {
		return err
	}
	defer c.removeWaiter(id)
	return c.write(id, ldap.ApplicationAbandonRequest, body, nil)
}

// failWaiter delivers err to w through whichever channel it uses. A
// stream waiter gets a final StreamItem carrying the error so a caller
// ranging over it observes why the stream ended rather than a bare
// channel close.
func failWaiter(w *waiter, err error) {
	if w.streamCh != nil {
		select {
		case w.streamCh <- &StreamItem{Err: err}:
		default:
		}
		close(w.streamCh)
		return
	}
	if w.errCh != nil {
		select {
		case w.errCh <- err:
		default:
		}
	}
}

func (c *Connection) failAll(err error) {
	c.pendingMu.Lock()
	waiters := c.pending
	c.pending = make(map[int32]*waiter)
	c.pendingMu.Unlock()
	for _, w := range waiters {
		if w == nil {
			continue
		}
		failWaiter(w, err)
	}
}

// readLoop is the connection's single reader goroutine: it grows a byte
// buffer off the net.Conn, uses internal/ber.ScanMessageLength to detect
// when a complete LDAPMessage frame is available, and routes each parsed
// message to its waiter by message ID.
func (c *Connection) readLoop() {
	defer close(c.readerDone)

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		total, err := ber.ScanMessageLength(buf)
		if err != nil {
			var need *ber.NeedMoreBytesError
			if errors.As(err, &need) {
				n, rerr := c.rawConn().Read(chunk)
				if n > 0 {
					buf = append(buf, chunk[:n]...)
				}
				if rerr != nil {
					if c.pausing.Load() {
						c.pauseAckCh <- struct{}{}
						<-c.resumeCh
						continue
					}
					c.onReadFailure(rerr)
					return
				}
				continue
			}
			c.onReadFailure(&oerrors.ProtocolError{Detail: "frame scan", Err: err})
			return
		}

		frame := make([]byte, total)
		copy(frame, buf[:total])
		buf = buf[total:]

		msg, perr := ldap.ParseLDAPMessage(frame)
		if perr != nil {
			c.logger.Warn("discarding malformed LDAP message", "err", perr)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Connection) onReadFailure(err error) {
	if c.state.load() == StateClosed {
		return
	}
	c.state.store(StateClosed)
	c.failAll(&oerrors.ConnectionError{Op: "read", Err: err})
}

func (c *Connection) dispatch(msg *ldap.LDAPMessage) {
	if msg.MessageID == 0 {
		c.handleUnsolicited(msg)
		return
	}

	c.pendingMu.Lock()
	w, ok := c.pending[int32(msg.MessageID)]
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Debug("response for unknown or already-completed message ID", "id", msg.MessageID)
		return
	}

	switch msg.OperationType() {
	case ldap.ApplicationSearchResultEntry, ldap.ApplicationSearchResultReference, ldap.ApplicationIntermediateResponse:
		if w.streamCh == nil {
			return
		}
		item := decodeStreamItem(msg)
		select {
		case w.streamCh <- item:
		case <-c.readerDone:
		}
	case ldap.ApplicationSearchResultDone:
		item := decodeStreamItem(msg)
		c.removeWaiter(int32(msg.MessageID))
		if w.streamCh != nil {
			select {
			case w.streamCh <- item:
			case <-c.readerDone:
			}
			close(w.streamCh)
		}
	default:
		c.removeWaiter(int32(msg.MessageID))
		if w.respCh != nil {
			select {
			case w.respCh <- msg:
			case <-c.readerDone:
			}
		}
	}
}

func (c *Connection) handleUnsolicited(msg *ldap.LDAPMessage) {
	if msg.OperationType() == ldap.ApplicationExtendedResponse {
		if resp, err := ldap.ParseExtendedResponse(msg.Operation.Data); err == nil {
			if resp.ResponseName == disconnectionNoticeOID {
				c.logger.Info("server sent disconnection notice", "diagnostic", resp.DiagnosticMessage)
				c.state.store(StateClosing)
				c.conn.Close()
				c.state.store(StateClosed)
				c.failAll(&oerrors.ConnectionClosed{Reason: "server disconnection notice"})
				return
			}
		}
	}
	c.unsolicitedMu.Lock()
	fn := c.unsolicited
	c.unsolicitedMu.Unlock()
	if fn != nil {
		fn(msg)
	} else {
		c.logger.Debug("unsolicited notification with no registered handler", "op", msg.OperationType().String())
	}
}
