package ldap

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/oba-ldap/oba/internal/ber"
)

// appContent strips the APPLICATION tag and length from a full TLV,
// returning the content octets the envelope would carry.
func appContent(t *testing.T, full []byte) []byte {
	t.Helper()
	d := ber.NewBERDecoder(full)
	if _, _, _, err := d.ReadTag(); err != nil {
		t.Fatalf("read tag: %v", err)
	}
	length, err := d.ReadLength()
	if err != nil {
		t.Fatalf("read length: %v", err)
	}
	return full[d.Offset() : d.Offset()+length]
}

func TestEnvelopeRoundTrip(t *testing.T) {
	body, err := (&BindRequest{Version: 3, Name: "cn=admin", AuthMethod: AuthMethodSimple, SimplePassword: []byte("secret")}).Encode()
	if err != nil {
		t.Fatalf("encode bind body: %v", err)
	}
	msg := &LDAPMessage{
		MessageID: 7,
		Operation: &RawOperation{Tag: ApplicationBindRequest, Data: body},
		Controls: []Control{
			{OID: "1.2.840.113556.1.4.319", Criticality: true, Value: []byte{0x30, 0x00}},
			{OID: "2.16.840.1.113730.3.4.2"},
		},
	}

	wire, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	got, err := ParseLDAPMessage(wire)
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	if got.MessageID != 7 || got.OperationType() != ApplicationBindRequest {
		t.Fatalf("envelope fields: id=%d op=%v", got.MessageID, got.OperationType())
	}
	if !bytes.Equal(got.Operation.Data, body) {
		t.Error("operation content changed across the envelope round trip")
	}
	if !reflect.DeepEqual(got.Controls, msg.Controls) {
		t.Errorf("controls: got %+v want %+v", got.Controls, msg.Controls)
	}
}

func TestEnvelopeRejectsBadInput(t *testing.T) {
	if _, err := ParseLDAPMessage(nil); err == nil {
		t.Error("empty input accepted")
	}
	if _, err := (&LDAPMessage{MessageID: -1, Operation: &RawOperation{}}).Encode(); err == nil {
		t.Error("negative message ID accepted")
	}
	if _, err := (&LDAPMessage{MessageID: 1}).Encode(); err == nil {
		t.Error("missing operation accepted")
	}
}

func TestBindRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  *BindRequest
	}{
		{"simple", &BindRequest{Version: 3, Name: "cn=admin,dc=example,dc=org", AuthMethod: AuthMethodSimple, SimplePassword: []byte("secret")}},
		{"anonymous", &BindRequest{Version: 3, AuthMethod: AuthMethodSimple, SimplePassword: []byte{}}},
		{"sasl with credentials", &BindRequest{Version: 3, AuthMethod: AuthMethodSASL,
			SASLCredentials: &SASLCredentials{Mechanism: "CRAM-MD5", Credentials: []byte("resp")}}},
		{"sasl without credentials", &BindRequest{Version: 3, AuthMethod: AuthMethodSASL,
			SASLCredentials: &SASLCredentials{Mechanism: "EXTERNAL"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := tt.req.Encode()
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := ParseBindRequest(body)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !reflect.DeepEqual(got, tt.req) {
				t.Errorf("round trip: got %+v want %+v", got, tt.req)
			}
		})
	}

	if tests[1].req.IsAnonymous() != true {
		t.Error("anonymous bind not detected")
	}
}

func TestAddAndModifyRoundTrip(t *testing.T) {
	add := &AddRequest{
		Entry: "uid=alice,ou=people,dc=example,dc=org",
		Attributes: []Attribute{
			{Type: "objectClass", Values: [][]byte{[]byte("posixAccount"), []byte("inetOrgPerson")}},
			{Type: "uid", Values: [][]byte{[]byte("alice")}},
		},
	}
	body, err := add.Encode()
	if err != nil {
		t.Fatalf("encode add: %v", err)
	}
	gotAdd, err := ParseAddRequest(body)
	if err != nil {
		t.Fatalf("parse add: %v", err)
	}
	if !reflect.DeepEqual(gotAdd, add) {
		t.Errorf("add round trip: got %+v", gotAdd)
	}

	mod := &ModifyRequest{
		Object: "uid=alice,ou=people,dc=example,dc=org",
		Changes: []Modification{
			{Operation: ModifyOperationAdd, Attribute: Attribute{Type: "description", Values: [][]byte{[]byte("b")}}},
			{Operation: ModifyOperationDelete, Attribute: Attribute{Type: "seeAlso"}},
			{Operation: ModifyOperationReplace, Attribute: Attribute{Type: "mail", Values: [][]byte{[]byte("a@x"), []byte("b@x")}}},
		},
	}
	body, err = mod.Encode()
	if err != nil {
		t.Fatalf("encode modify: %v", err)
	}
	gotMod, err := ParseModifyRequest(body)
	if err != nil {
		t.Fatalf("parse modify: %v", err)
	}
	if !reflect.DeepEqual(gotMod, mod) {
		t.Errorf("modify round trip: got %+v", gotMod)
	}
}

func TestPrimitiveOperationsRoundTrip(t *testing.T) {
	del := &DeleteRequest{DN: "uid=alice,dc=example,dc=org"}
	body, _ := del.Encode()
	gotDel, err := ParseDeleteRequest(body)
	if err != nil || gotDel.DN != del.DN {
		t.Errorf("delete round trip: %+v err=%v", gotDel, err)
	}

	ab := &AbandonRequest{MessageID: 42}
	body, err = ab.Encode()
	if err != nil {
		t.Fatalf("encode abandon: %v", err)
	}
	gotAb, err := ParseAbandonRequest(body)
	if err != nil || gotAb.MessageID != 42 {
		t.Errorf("abandon round trip: %+v err=%v", gotAb, err)
	}

	// Message IDs above one byte survive.
	ab = &AbandonRequest{MessageID: 0x123456}
	body, _ = ab.Encode()
	gotAb, err = ParseAbandonRequest(body)
	if err != nil || gotAb.MessageID != 0x123456 {
		t.Errorf("wide abandon round trip: %+v err=%v", gotAb, err)
	}

	body, err = (&UnbindRequest{}).Encode()
	if err != nil || len(body) != 0 {
		t.Errorf("unbind content should be empty, got %x err=%v", body, err)
	}
}

func TestCompareAndModifyDNRoundTrip(t *testing.T) {
	cmp := &CompareRequest{DN: "cn=foo,dc=org", Attribute: "cn", Value: []byte("foo")}
	body, err := cmp.Encode()
	if err != nil {
		t.Fatalf("encode compare: %v", err)
	}
	gotCmp, err := ParseCompareRequest(body)
	if err != nil || !reflect.DeepEqual(gotCmp, cmp) {
		t.Errorf("compare round trip: %+v err=%v", gotCmp, err)
	}

	for _, mdn := range []*ModifyDNRequest{
		{Entry: "cn=foo,dc=org", NewRDN: "cn=bar", DeleteOldRDN: true},
		{Entry: "cn=foo,dc=org", NewRDN: "cn=foo", NewSuperior: "ou=moved,dc=org"},
	} {
		body, err := mdn.Encode()
		if err != nil {
			t.Fatalf("encode modifyDN: %v", err)
		}
		got, err := ParseModifyDNRequest(body)
		if err != nil || !reflect.DeepEqual(got, mdn) {
			t.Errorf("modifyDN round trip: %+v err=%v", got, err)
		}
	}
}

func TestSearchRequestRoundTrip(t *testing.T) {
	req := &SearchRequest{
		BaseObject:   "dc=example,dc=org",
		Scope:        ScopeWholeSubtree,
		DerefAliases: DerefNever,
		SizeLimit:    100,
		TimeLimit:    30,
		Filter: &SearchFilter{
			Type: FilterTagAnd,
			Children: []*SearchFilter{
				{Type: FilterTagEquality, Attribute: "objectClass", Value: []byte("posixAccount")},
				{Type: FilterTagSubstrings, Attribute: "uid", Substrings: &SubstringComponents{
					Initial: []byte("al"), Any: [][]byte{[]byte("i")}, Final: []byte("e"),
				}},
				{Type: FilterTagNot, Child: &SearchFilter{Type: FilterTagPresent, Attribute: "locked"}},
				{Type: FilterTagExtensibleMatch, ExtensibleMatch: &ExtensibleMatchComponents{
					MatchingRule: "caseExactMatch", Type: "cn", MatchValue: []byte("Fred"), DNAttributes: true,
				}},
			},
		},
		Attributes: []string{"uid", "cn"},
	}

	full, err := req.Encode()
	if err != nil {
		t.Fatalf("encode search: %v", err)
	}
	got, err := ParseSearchRequest(appContent(t, full))
	if err != nil {
		t.Fatalf("parse search: %v", err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Errorf("search round trip:\n got %+v\nwant %+v", got, req)
	}
}

func TestResponsesRoundTrip(t *testing.T) {
	bind := &BindResponse{
		LDAPResult:      LDAPResult{ResultCode: ResultSASLBindInProgress},
		ServerSASLCreds: []byte("challenge"),
	}
	full, err := bind.Encode()
	if err != nil {
		t.Fatalf("encode bind response: %v", err)
	}
	gotBind, err := ParseBindResponse(appContent(t, full))
	if err != nil || !reflect.DeepEqual(gotBind, bind) {
		t.Errorf("bind response round trip: %+v err=%v", gotBind, err)
	}

	entry := &SearchResultEntry{
		ObjectName: "uid=alice,dc=example,dc=org",
		Attributes: []PartialAttribute{
			{Type: "uid", Values: [][]byte{[]byte("alice")}},
			{Type: "mail", Values: [][]byte{[]byte("a@x"), []byte("b@x")}},
		},
	}
	full, err = entry.Encode()
	if err != nil {
		t.Fatalf("encode entry: %v", err)
	}
	gotEntry, err := ParseSearchResultEntry(appContent(t, full))
	if err != nil || !reflect.DeepEqual(gotEntry, entry) {
		t.Errorf("entry round trip: %+v err=%v", gotEntry, err)
	}

	ref := &SearchResultReference{URIs: []string{"ldap://other.example.org/dc=example,dc=org"}}
	full, err = ref.Encode()
	if err != nil {
		t.Fatalf("encode reference: %v", err)
	}
	gotRef, err := ParseSearchResultReference(appContent(t, full))
	if err != nil || !reflect.DeepEqual(gotRef, ref) {
		t.Errorf("reference round trip: %+v err=%v", gotRef, err)
	}
	if _, err := ParseSearchResultReference(nil); err == nil {
		t.Error("reference with no URIs accepted")
	}

	done := &SearchResultDone{LDAPResult: LDAPResult{
		ResultCode: ResultReferral,
		Referral:   []string{"ldap://a.example.org/", "ldap://b.example.org/"},
	}}
	full, err = done.Encode()
	if err != nil {
		t.Fatalf("encode done: %v", err)
	}
	gotDone, err := ParseSearchResultDone(appContent(t, full))
	if err != nil || !reflect.DeepEqual(gotDone, done) {
		t.Errorf("done round trip: %+v err=%v", gotDone, err)
	}

	failed := LDAPResult{
		ResultCode:        ResultNoSuchObject,
		MatchedDN:         "dc=example,dc=org",
		DiagnosticMessage: "no such entry",
	}
	full, err = (&ModifyResponse{LDAPResult: failed}).Encode()
	if err != nil {
		t.Fatalf("encode modify response: %v", err)
	}
	gotMod, err := ParseModifyResponse(appContent(t, full))
	if err != nil || !reflect.DeepEqual(gotMod.LDAPResult, failed) {
		t.Errorf("modify response round trip: %+v err=%v", gotMod, err)
	}
}

func TestExtendedRoundTrip(t *testing.T) {
	req := &ExtendedRequest{RequestName: "1.3.6.1.4.1.4203.1.11.3", RequestValue: []byte("payload")}
	full, err := req.Encode()
	if err != nil {
		t.Fatalf("encode extended request: %v", err)
	}
	gotReq, err := ParseExtendedRequest(appContent(t, full))
	if err != nil || !reflect.DeepEqual(gotReq, req) {
		t.Errorf("extended request round trip: %+v err=%v", gotReq, err)
	}

	resp := &ExtendedResponse{
		LDAPResult:    LDAPResult{ResultCode: ResultSuccess},
		ResponseName:  "1.3.6.1.4.1.1466.20037",
		ResponseValue: []byte("ok"),
	}
	full, err = resp.Encode()
	if err != nil {
		t.Fatalf("encode extended response: %v", err)
	}
	gotResp, err := ParseExtendedResponse(appContent(t, full))
	if err != nil || !reflect.DeepEqual(gotResp, resp) {
		t.Errorf("extended response round trip: %+v err=%v", gotResp, err)
	}
}

func TestResultCodeStrings(t *testing.T) {
	if ResultSuccess.String() != "success" || ResultNoSuchObject.String() != "noSuchObject" {
		t.Error("named codes render wrong")
	}
	if got := ResultCode(123).String(); got != "other(123)" {
		t.Errorf("unknown code renders %q", got)
	}
	if ResultCompareFalse.IsError() || ResultReferral.IsError() || ResultSASLBindInProgress.IsError() {
		t.Error("expected-outcome codes flagged as errors")
	}
	if !ResultBusy.IsError() || ResultSuccess.IsError() {
		t.Error("IsError misclassifies")
	}
}
