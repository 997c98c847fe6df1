package attrmap

import (
	"errors"
	"reflect"
	"testing"

	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/schema"
)

func values(ss ...string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = Value(s)
	}
	return out
}

func strs(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func TestCaseInsensitiveKeys(t *testing.T) {
	m := New()
	if err := m.Set("objectClass", values("person")...); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := m.Get("OBJECTCLASS"); len(got) != 1 || string(got[0]) != "person" {
		t.Fatalf("Get with different case = %v", strs(got))
	}
	if !m.Has("objectclass") {
		t.Fatal("Has with different case = false")
	}
	// The originally-inserted case is preserved in Names.
	if names := m.Names(); !reflect.DeepEqual(names, []string{"objectClass"}) {
		t.Fatalf("Names = %v", names)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	m := New()
	for _, name := range []string{"cn", "sn", "mail", "uid"} {
		if err := m.Set(name, values("x")...); err != nil {
			t.Fatalf("Set(%s): %v", name, err)
		}
	}
	want := []string{"cn", "sn", "mail", "uid"}
	if got := m.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}

	// Deleting and re-adding moves the attribute to the end.
	m.Delete("sn")
	if err := m.Add("sn", values("y")...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	want = []string{"cn", "mail", "uid", "sn"}
	if got := m.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names after delete/re-add = %v, want %v", got, want)
	}
}

func TestAddSkipsEqualValues(t *testing.T) {
	m := New()
	if err := m.Add("description", values("a", "b")...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Octet-equal duplicates are a no-op without a schema.
	if err := m.Add("description", values("a", "c")...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := strs(m.Get("description")); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("values = %v", got)
	}
}

func TestAddSkipsEqualValuesUnderMatchingRule(t *testing.T) {
	m := New()
	m.BindSchema(schema.LoadDefaultSchema())
	if err := m.Add("cn", values("Foo Bar")...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// cn uses caseIgnoreMatch: differing case and insignificant spaces
	// still compare equal, so this is a no-op.
	if err := m.Add("cn", values("foo  BAR")...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := strs(m.Get("cn")); !reflect.DeepEqual(got, []string{"Foo Bar"}) {
		t.Fatalf("values = %v, want the original only", got)
	}
}

func TestDeleteNonPresentIsNoOp(t *testing.T) {
	m := New()
	if err := m.Set("description", values("a", "b")...); err != nil {
		t.Fatalf("Set: %v", err)
	}
	m.Delete("description", values("z")...)
	if got := strs(m.Get("description")); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("values = %v", got)
	}
	m.Delete("nosuchattr", values("a")...)

	// Deleting the last value removes the attribute entirely.
	m.Delete("description", values("a", "b")...)
	if m.Has("description") {
		t.Fatal("attribute survived deletion of all values")
	}
}

func TestDeleteAllSentinelRejectedAsValue(t *testing.T) {
	m := New()
	var invalid *oerrors.InvalidValue

	if err := m.Set("cn", DeleteAllValue); !errors.As(err, &invalid) {
		t.Fatalf("Set(DeleteAllValue) err = %v, want InvalidValue", err)
	}
	if err := m.Add("cn", Value("ok"), DeleteAllValue); !errors.As(err, &invalid) {
		t.Fatalf("Add(DeleteAllValue) err = %v, want InvalidValue", err)
	}
	if m.Has("cn") {
		t.Fatal("rejected insert left state behind")
	}
}

func TestAttrValuesSum(t *testing.T) {
	if !All.IsAll() {
		t.Fatal("All.IsAll() = false")
	}
	if All.Values() != nil {
		t.Fatal("All.Values() != nil")
	}
	c := ConcreteStrings("a", "b")
	if c.IsAll() {
		t.Fatal("Concrete.IsAll() = true")
	}
	if got := strs(c.Values()); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Concrete.Values() = %v", got)
	}
}

func TestSetDedupesAndReplaces(t *testing.T) {
	m := New()
	m.BindSchema(schema.LoadDefaultSchema())
	if err := m.Set("cn", values("Foo", "FOO", "bar")...); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := strs(m.Get("cn")); !reflect.DeepEqual(got, []string{"Foo", "bar"}) {
		t.Fatalf("deduped values = %v", got)
	}
	if err := m.Set("cn", values("baz")...); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := strs(m.Get("cn")); !reflect.DeepEqual(got, []string{"baz"}) {
		t.Fatalf("replaced values = %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := New()
	if err := m.Set("cn", values("foo")...); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clone := m.Clone()
	if err := clone.Add("cn", values("bar")...); err != nil {
		t.Fatalf("Add on clone: %v", err)
	}
	clone.Delete("cn", values("foo")...)
	if got := strs(m.Get("cn")); !reflect.DeepEqual(got, []string{"foo"}) {
		t.Fatalf("original mutated through clone: %v", got)
	}
}
