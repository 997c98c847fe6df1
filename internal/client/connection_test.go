package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/oba-ldap/oba/internal/ber"
	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/ldap"
)

// fakeServer drives the server side of a net.Pipe: it parses incoming
// LDAPMessages onto a channel and lets tests write hand-built responses.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	msgs chan *ldap.LDAPMessage
}

func (s *fakeServer) readLoop() {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		total, err := ber.ScanMessageLength(buf)
		if err != nil {
			var need *ber.NeedMoreBytesError
			if errors.As(err, &need) {
				n, rerr := s.conn.Read(chunk)
				if n > 0 {
					buf = append(buf, chunk[:n]...)
				}
				if rerr != nil {
					close(s.msgs)
					return
				}
				continue
			}
			close(s.msgs)
			return
		}
		frame := make([]byte, total)
		copy(frame, buf[:total])
		buf = buf[total:]
		msg, perr := ldap.ParseLDAPMessage(frame)
		if perr != nil {
			close(s.msgs)
			return
		}
		s.msgs <- msg
	}
}

// next returns the next request the client sent, failing the test after
// a timeout so a lost frame doesn't hang the suite.
func (s *fakeServer) next() *ldap.LDAPMessage {
	s.t.Helper()
	select {
	case msg, ok := <-s.msgs:
		if !ok {
			s.t.Fatal("fake server connection closed before expected request")
		}
		return msg
	case <-time.After(5 * time.Second):
		s.t.Fatal("timed out waiting for a client request")
		return nil
	}
}

// send frames fullTLV (a response type's Encode output, which includes
// the APPLICATION tag) into an LDAPMessage for id and writes it.
func (s *fakeServer) send(id int, tag int, fullTLV []byte, controls []ldap.Control) {
	s.t.Helper()
	body, err := stripOuterTag(fullTLV)
	if err != nil {
		s.t.Fatalf("stripOuterTag: %v", err)
	}
	msg := &ldap.LDAPMessage{
		MessageID: id,
		Operation: &ldap.RawOperation{Tag: tag, Data: body},
		Controls:  controls,
	}
	data, err := msg.Encode()
	if err != nil {
		s.t.Fatalf("encode response message: %v", err)
	}
	if _, err := s.conn.Write(data); err != nil {
		s.t.Errorf("write response: %v", err)
	}
}

func (s *fakeServer) sendSearchEntry(id int, dn string, attrs []ldap.PartialAttribute) {
	s.t.Helper()
	full, err := (&ldap.SearchResultEntry{ObjectName: dn, Attributes: attrs}).Encode()
	if err != nil {
		s.t.Fatalf("encode search entry: %v", err)
	}
	s.send(id, ldap.ApplicationSearchResultEntry, full, nil)
}

func (s *fakeServer) sendSearchDone(id int, code ldap.ResultCode) {
	s.t.Helper()
	full, err := (&ldap.SearchResultDone{LDAPResult: ldap.LDAPResult{ResultCode: code}}).Encode()
	if err != nil {
		s.t.Fatalf("encode search done: %v", err)
	}
	s.send(id, ldap.ApplicationSearchResultDone, full, nil)
}

func (s *fakeServer) sendBindSuccess(id int) {
	s.t.Helper()
	full, err := (&ldap.BindResponse{LDAPResult: ldap.LDAPResult{ResultCode: ldap.ResultSuccess}}).Encode()
	if err != nil {
		s.t.Fatalf("encode bind response: %v", err)
	}
	s.send(id, ldap.ApplicationBindResponse, full, nil)
}

// answerRootDSE services the probe newConnection issues at dial time.
func (s *fakeServer) answerRootDSE(supportedControls []string) {
	s.t.Helper()
	msg := s.next()
	if msg.OperationType() != ldap.ApplicationSearchRequest {
		s.t.Fatalf("expected root DSE search, got %v", msg.OperationType())
	}
	vals := make([][]byte, len(supportedControls))
	for i, oid := range supportedControls {
		vals[i] = []byte(oid)
	}
	attrs := []ldap.PartialAttribute{
		{Type: "supportedControl", Values: vals},
		{Type: "vendorName", Values: [][]byte{[]byte("oba test server")}},
	}
	s.sendSearchEntry(msg.MessageID, "", attrs)
	s.sendSearchDone(msg.MessageID, ldap.ResultSuccess)
}

// dialFake builds a Connection over a net.Pipe, servicing the root DSE
// probe with supportedControls before handing both ends back.
func dialFake(t *testing.T, supportedControls []string) (*Connection, *fakeServer) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()
	srv := &fakeServer{t: t, conn: serverEnd, msgs: make(chan *ldap.LDAPMessage, 16)}
	go srv.readLoop()

	cfg := DefaultConfig()
	cfg.OperationTimeout = 5 * time.Second

	type dialResult struct {
		conn *Connection
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		c, err := newConnection(clientEnd, cfg)
		done <- dialResult{c, err}
	}()

	srv.answerRootDSE(supportedControls)

	res := <-done
	if res.err != nil {
		t.Fatalf("newConnection: %v", res.err)
	}
	t.Cleanup(func() {
		res.conn.Close()
		serverEnd.Close()
	})
	return res.conn, srv
}

func TestBindAndSearchStream(t *testing.T) {
	c, srv := dialFake(t, nil)
	ctx := context.Background()

	go func() {
		msg := srv.next()
		if msg.OperationType() != ldap.ApplicationBindRequest {
			srv.t.Errorf("expected bind request, got %v", msg.OperationType())
		}
		req, err := ldap.ParseBindRequest(msg.Operation.Data)
		if err != nil {
			srv.t.Errorf("parse bind request: %v", err)
		} else if req.Name != "cn=admin,dc=example,dc=org" || string(req.SimplePassword) != "secret" {
			srv.t.Errorf("unexpected bind credentials: %q / %q", req.Name, req.SimplePassword)
		}
		srv.sendBindSuccess(msg.MessageID)
	}()

	if err := c.Bind(ctx, "cn=admin,dc=example,dc=org", "secret"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if got := c.State(); got != StateBound {
		t.Fatalf("state after bind = %v, want Bound", got)
	}

	go func() {
		msg := srv.next()
		req, err := ldap.ParseSearchRequest(msg.Operation.Data)
		if err != nil {
			srv.t.Errorf("parse search request: %v", err)
			return
		}
		if req.BaseObject != "dc=example,dc=org" || req.Scope != ldap.ScopeWholeSubtree {
			srv.t.Errorf("unexpected search request: base=%q scope=%v", req.BaseObject, req.Scope)
		}
		for _, uid := range []string{"alice", "bob"} {
			srv.sendSearchEntry(msg.MessageID, "uid="+uid+",dc=example,dc=org", []ldap.PartialAttribute{
				{Type: "uid", Values: [][]byte{[]byte(uid)}},
			})
		}
		srv.sendSearchDone(msg.MessageID, ldap.ResultSuccess)
	}()

	handle, err := c.Search(ctx, SearchOptions{
		BaseDN:     "dc=example,dc=org",
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     "(objectClass=posixAccount)",
		Attributes: []string{"uid"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	var entries []*ldap.SearchResultEntry
	var done *ldap.SearchResultDone
	for item := range handle.Items {
		if item.Err != nil {
			t.Fatalf("stream error: %v", item.Err)
		}
		if item.Entry != nil {
			entries = append(entries, item.Entry)
		}
		if item.Done != nil {
			done = item.Done
		}
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for i, want := range []string{"alice", "bob"} {
		attrs := entries[i].Attributes
		if len(attrs) != 1 || attrs[0].Type != "uid" || string(attrs[0].Values[0]) != want {
			t.Errorf("entry %d attributes = %+v, want single uid=%s", i, attrs, want)
		}
	}
	if done == nil || done.ResultCode != ldap.ResultSuccess {
		t.Fatalf("terminal done = %+v, want success", done)
	}
}

func TestAbandonMidSearch(t *testing.T) {
	c, srv := dialFake(t, nil)
	ctx := context.Background()

	searchID := make(chan int, 1)
	go func() {
		msg := srv.next()
		searchID <- msg.MessageID
		for _, uid := range []string{"alice", "bob"} {
			srv.sendSearchEntry(msg.MessageID, "uid="+uid+",dc=example,dc=org", nil)
		}
		// No done: the client abandons instead.
	}()

	handle, err := c.Search(ctx, SearchOptions{
		BaseDN: "dc=example,dc=org",
		Scope:  ldap.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	for i := 0; i < 2; i++ {
		item := <-handle.Items
		if item.Entry == nil {
			t.Fatalf("item %d: expected entry, got %+v", i, item)
		}
	}
	if err := handle.Abandon(); err != nil {
		t.Fatalf("Abandon: %v", err)
	}

	// The next frame on the socket must be the abandonRequest for the
	// search's message ID.
	msg := srv.next()
	if msg.OperationType() != ldap.ApplicationAbandonRequest {
		t.Fatalf("expected abandonRequest, got %v", msg.OperationType())
	}
	ab, err := ldap.ParseAbandonRequest(msg.Operation.Data)
	if err != nil {
		t.Fatalf("parse abandon request: %v", err)
	}
	if want := <-searchID; ab.MessageID != want {
		t.Fatalf("abandonRequest names message ID %d, want the search's ID %d", ab.MessageID, want)
	}

	// The stream terminates with Abandoned.
	var sawAbandoned bool
	for item := range handle.Items {
		var abandoned *oerrors.Abandoned
		if item.Err != nil && errors.As(item.Err, &abandoned) {
			sawAbandoned = true
		}
	}
	if !sawAbandoned {
		t.Fatal("stream did not surface Abandoned")
	}

	// The connection stays usable: a whoami extended request succeeds.
	go func() {
		msg := srv.next()
		full, err := (&ldap.ExtendedResponse{
			LDAPResult:    ldap.LDAPResult{ResultCode: ldap.ResultSuccess},
			ResponseValue: []byte("dn:cn=admin,dc=example,dc=org"),
		}).Encode()
		if err != nil {
			srv.t.Errorf("encode extended response: %v", err)
			return
		}
		srv.send(msg.MessageID, ldap.ApplicationExtendedResponse, full, nil)
	}()

	ns, ok := c.Extension("whoami")
	if !ok {
		t.Fatal("whoami extension not registered")
	}
	authzid, err := ns.(*WhoAmI).Authzid(ctx)
	if err != nil {
		t.Fatalf("Authzid: %v", err)
	}
	if authzid != "dn:cn=admin,dc=example,dc=org" {
		t.Fatalf("authzid = %q", authzid)
	}
}

func TestUnsolicitedDisconnectNotice(t *testing.T) {
	c, srv := dialFake(t, nil)
	ctx := context.Background()

	// Park a search so there is an in-flight waiter to fail.
	go srv.next()
	handle, err := c.Search(ctx, SearchOptions{
		BaseDN: "dc=example,dc=org",
		Scope:  ldap.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	full, err := (&ldap.ExtendedResponse{
		LDAPResult:   ldap.LDAPResult{ResultCode: ldap.ResultUnavailable, DiagnosticMessage: "shutting down"},
		ResponseName: disconnectionNoticeOID,
	}).Encode()
	if err != nil {
		t.Fatalf("encode disconnection notice: %v", err)
	}
	srv.send(0, ldap.ApplicationExtendedResponse, full, nil)

	var sawClosed bool
	for item := range handle.Items {
		var closed *oerrors.ConnectionClosed
		if item.Err != nil && errors.As(item.Err, &closed) {
			sawClosed = true
		}
	}
	if !sawClosed {
		t.Fatal("in-flight search did not fail with ConnectionClosed")
	}

	deadline := time.Now().Add(5 * time.Second)
	for c.State() != StateClosed {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want Closed", c.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownCriticalControlRejectedLocally(t *testing.T) {
	c, srv := dialFake(t, []string{"1.2.840.113556.1.4.319"})

	_, err := c.Search(context.Background(), SearchOptions{
		BaseDN: "dc=example,dc=org",
		Scope:  ldap.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
		Controls: []ldap.Control{
			{OID: "1.3.6.1.4.1.42.2.27.8.5.1", Criticality: true},
		},
	})
	var unsupported *oerrors.UnsupportedControl
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedControl", err)
	}

	// No bytes reached the wire.
	select {
	case msg := <-srv.msgs:
		t.Fatalf("unexpected request on the wire: %v", msg.OperationType())
	case <-time.After(100 * time.Millisecond):
	}

	// The same control on the supported list goes through.
	go func() {
		msg := srv.next()
		srv.sendSearchDone(msg.MessageID, ldap.ResultSuccess)
	}()
	handle, err := c.Search(context.Background(), SearchOptions{
		BaseDN: "dc=example,dc=org",
		Scope:  ldap.ScopeWholeSubtree,
		Filter: "(objectClass=*)",
		Controls: []ldap.Control{
			{OID: "1.2.840.113556.1.4.319", Criticality: true},
		},
	})
	if err != nil {
		t.Fatalf("Search with supported control: %v", err)
	}
	for range handle.Items {
	}
}

func TestCompareOutcomes(t *testing.T) {
	c, srv := dialFake(t, nil)
	ctx := context.Background()

	respond := func(code ldap.ResultCode) {
		msg := srv.next()
		full, err := (&ldap.CompareResponse{LDAPResult: ldap.LDAPResult{ResultCode: code}}).Encode()
		if err != nil {
			srv.t.Errorf("encode compare response: %v", err)
			return
		}
		srv.send(msg.MessageID, ldap.ApplicationCompareResponse, full, nil)
	}

	go respond(ldap.ResultCompareTrue)
	ok, err := c.Compare(ctx, "cn=foo,dc=example,dc=org", "cn", []byte("foo"), nil)
	if err != nil || !ok {
		t.Fatalf("compareTrue: ok=%v err=%v", ok, err)
	}

	go respond(ldap.ResultCompareFalse)
	ok, err = c.Compare(ctx, "cn=foo,dc=example,dc=org", "cn", []byte("bar"), nil)
	if err != nil || ok {
		t.Fatalf("compareFalse: ok=%v err=%v", ok, err)
	}

	go respond(ldap.ResultNoSuchObject)
	_, err = c.Compare(ctx, "cn=missing,dc=example,dc=org", "cn", []byte("x"), nil)
	var failed *oerrors.OperationFailed
	if !errors.As(err, &failed) {
		t.Fatalf("err = %v, want OperationFailed", err)
	}
	if failed.ResultCode != int(ldap.ResultNoSuchObject) {
		t.Fatalf("result code = %d, want noSuchObject", failed.ResultCode)
	}
}

func TestOperationFailedCarriesDiagnostics(t *testing.T) {
	c, srv := dialFake(t, nil)

	go func() {
		msg := srv.next()
		full, err := (&ldap.ModifyResponse{LDAPResult: ldap.LDAPResult{
			ResultCode:        ldap.ResultInsufficientAccessRights,
			MatchedDN:         "dc=example,dc=org",
			DiagnosticMessage: "not allowed",
		}}).Encode()
		if err != nil {
			srv.t.Errorf("encode modify response: %v", err)
			return
		}
		srv.send(msg.MessageID, ldap.ApplicationModifyResponse, full, nil)
	}()

	err := c.Modify(context.Background(), "cn=foo,dc=example,dc=org", []ldap.Modification{
		{Operation: ldap.ModifyOperationReplace, Attribute: ldap.Attribute{Type: "description", Values: [][]byte{[]byte("x")}}},
	}, nil)
	var failed *oerrors.OperationFailed
	if !errors.As(err, &failed) {
		t.Fatalf("err = %v, want OperationFailed", err)
	}
	if failed.MatchedDN != "dc=example,dc=org" || failed.DiagnosticMessage != "not allowed" {
		t.Fatalf("diagnostics not carried: %+v", failed)
	}
}

func TestMessageIDWrapSkipsZeroAndOutstanding(t *testing.T) {
	c := &Connection{pending: make(map[int32]*waiter)}

	c.nextID = ldap.MaxMessageID - 1
	id, _, err := c.nextIDAndRegister(&waiter{})
	if err != nil || id != ldap.MaxMessageID {
		t.Fatalf("id = %d err = %v, want MaxMessageID", id, err)
	}

	// Wrap: next allocation lands on 1, not 0.
	id, _, err = c.nextIDAndRegister(&waiter{})
	if err != nil || id != 1 {
		t.Fatalf("id after wrap = %d err = %v, want 1", id, err)
	}

	// An outstanding ID is skipped on the next pass.
	c.nextID = 0
	id, _, err = c.nextIDAndRegister(&waiter{})
	if err != nil || id != 2 {
		t.Fatalf("id = %d err = %v, want 2 (1 is outstanding)", id, err)
	}
}

func TestRequestsGatedWhileBindInFlight(t *testing.T) {
	c := &Connection{pending: make(map[int32]*waiter)}
	c.state.store(StateOpen)
	if err := c.beginBind(); err != nil {
		t.Fatalf("beginBind: %v", err)
	}

	if err := c.beginBind(); err == nil {
		t.Fatal("second concurrent bind was not rejected")
	}
	err := c.Delete(context.Background(), "cn=foo", nil)
	var perr *oerrors.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Delete during bind: err = %v, want ProtocolError", err)
	}

	c.endBind()
	c.state.store(StateClosed)
	err = c.Delete(context.Background(), "cn=foo", nil)
	var closed *oerrors.ConnectionClosed
	if !errors.As(err, &closed) {
		t.Fatalf("Delete on closed conn: err = %v, want ConnectionClosed", err)
	}
}

func TestBindSASLProviderLoop(t *testing.T) {
	c, srv := dialFake(t, nil)

	go func() {
		// Round 1: challenge the client.
		msg := srv.next()
		req, err := ldap.ParseBindRequest(msg.Operation.Data)
		if err != nil || req.SASLCredentials == nil || req.SASLCredentials.Mechanism != "CRAM-MD5" {
			srv.t.Errorf("unexpected first sasl round: %+v err=%v", req, err)
			return
		}
		full, _ := (&ldap.BindResponse{
			LDAPResult:      ldap.LDAPResult{ResultCode: ldap.ResultSASLBindInProgress},
			ServerSASLCreds: []byte("challenge-1"),
		}).Encode()
		srv.send(msg.MessageID, ldap.ApplicationBindResponse, full, nil)

		// Round 2: accept the response.
		msg = srv.next()
		req, err = ldap.ParseBindRequest(msg.Operation.Data)
		if err != nil || req.SASLCredentials == nil || string(req.SASLCredentials.Credentials) != "response-to-challenge-1" {
			srv.t.Errorf("unexpected second sasl round: %+v err=%v", req, err)
			return
		}
		full, _ = (&ldap.BindResponse{LDAPResult: ldap.LDAPResult{ResultCode: ldap.ResultSuccess}}).Encode()
		srv.send(msg.MessageID, ldap.ApplicationBindResponse, full, nil)
	}()

	p := &scriptedProvider{responses: map[string]string{"challenge-1": "response-to-challenge-1"}}
	if err := c.BindSASLProvider(context.Background(), "CRAM-MD5", p); err != nil {
		t.Fatalf("BindSASLProvider: %v", err)
	}
	if c.State() != StateBound {
		t.Fatalf("state = %v, want Bound", c.State())
	}
}

type scriptedProvider struct {
	responses map[string]string
	steps     int
}

func (p *scriptedProvider) Start(mechanism, host string) ([]byte, error) {
	return nil, nil
}

func (p *scriptedProvider) Step(challenge []byte) ([]byte, error) {
	resp, ok := p.responses[string(challenge)]
	if !ok {
		return nil, errors.New("unexpected challenge")
	}
	p.steps++
	return []byte(resp), nil
}

func (p *scriptedProvider) Complete() bool { return p.steps > 0 }
