package oba

import "testing"

func TestParseFilterRenderFilterRoundTrip(t *testing.T) {
	tree, err := ParseFilter("(&(objectClass=person)(uid=alice))", FilterModeUnified)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	rendered := RenderFilter(tree, true)

	reparsed, err := ParseFilter(rendered, FilterModeUnified)
	if err != nil {
		t.Fatalf("ParseFilter(rendered): %v", err)
	}
	if RenderFilter(reparsed, true) != rendered {
		t.Fatalf("canonical rendering is not stable across a second round trip: %q vs %q", rendered, RenderFilter(reparsed, true))
	}
}

func TestParseFilterSimpleGrammar(t *testing.T) {
	tree, err := ParseFilter("cn = Smith AND mail = *@example.com", FilterModeSimple)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if tree == nil {
		t.Fatal("expected a non-nil filter tree")
	}
}

func TestAttributeMapConcreteAndDeleteAll(t *testing.T) {
	m := NewAttributeMap()
	if err := m.Add("mail", Value("alice@example.com")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !m.Has("mail") {
		t.Fatal("expected mail to be present after Add")
	}

	av := ConcreteStrings("alice@example.com", "alice@newdomain.com")
	if av.IsAll() {
		t.Fatal("ConcreteStrings should not be the DELETE_ALL sentinel")
	}
	if len(av.Values()) != 2 {
		t.Fatalf("expected two values, got %d", len(av.Values()))
	}

	if !DeleteAll.IsAll() {
		t.Fatal("DeleteAll should report IsAll")
	}
}
