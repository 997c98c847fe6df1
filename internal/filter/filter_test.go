package filter

import (
	"reflect"
	"testing"
)

func mustParse(t *testing.T, s string, mode Mode) *Filter {
	t.Helper()
	f, err := ParseMode(s, mode)
	if err != nil {
		t.Fatalf("ParseMode(%q, %v): %v", s, mode, err)
	}
	return f
}

func TestParseStandardAtoms(t *testing.T) {
	tests := []struct {
		input string
		want  *Filter
	}{
		{"(uid=alice)", NewEqualityFilter("uid", []byte("alice"))},
		{"(mail=*)", NewPresentFilter("mail")},
		{"(gidNumber>=1000)", NewGreaterOrEqualFilter("gidNumber", []byte("1000"))},
		{"(gidNumber<=2000)", NewLessOrEqualFilter("gidNumber", []byte("2000"))},
		{"(cn~=smith)", NewApproxMatchFilter("cn", []byte("smith"))},
		{"(cn=ab*cd)", NewSubstringFilter(&SubstringFilter{
			Attribute: "cn", Initial: []byte("ab"), Final: []byte("cd"),
		})},
		{"(cn=*mid*)", NewSubstringFilter(&SubstringFilter{
			Attribute: "cn", Any: [][]byte{[]byte("mid")},
		})},
		{"(cn=a*b*c)", NewSubstringFilter(&SubstringFilter{
			Attribute: "cn", Initial: []byte("a"), Any: [][]byte{[]byte("b")}, Final: []byte("c"),
		})},
		{"(cn:caseExactMatch:=Fred)", NewExtensibleMatchFilter("cn", "caseExactMatch", []byte("Fred"), false)},
		{"(ou:dn:=People)", NewExtensibleMatchFilter("ou", "", []byte("People"), true)},
		{"(:1.2.3:=wildcard)", NewExtensibleMatchFilter("", "1.2.3", []byte("wildcard"), false)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := mustParse(t, tt.input, ModeStandard)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parsed %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseStandardComposites(t *testing.T) {
	f := mustParse(t, "(&(objectClass=person)(|(uid=alice)(uid=bob))(!(locked=true)))", ModeStandard)
	if f.Type != FilterAnd || len(f.Children) != 3 {
		t.Fatalf("top level: %+v", f)
	}
	if f.Children[0].Type != FilterEquality || f.Children[0].Attribute != "objectClass" {
		t.Errorf("first child: %+v", f.Children[0])
	}
	or := f.Children[1]
	if or.Type != FilterOr || len(or.Children) != 2 || string(or.Children[1].Value) != "bob" {
		t.Errorf("or branch: %+v", or)
	}
	not := f.Children[2]
	if not.Type != FilterNot || not.Child == nil || not.Child.Attribute != "locked" {
		t.Errorf("not branch: %+v", not)
	}
}

func TestParseStandardErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"()",
		"(&)",
		"(uid=alice",
		"(=value)",
		"(:=noattrnorule)",
	} {
		if _, err := ParseMode(input, ModeStandard); err == nil {
			t.Errorf("ParseMode(%q) accepted invalid input", input)
		}
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		"star*paren(close)back\\slash",
		"nul\x00byte",
		"utf8 käse",
	}
	for _, v := range values {
		escaped := EscapeFilterValue([]byte(v), true)
		got, err := UnescapeFilterValue(escaped)
		if err != nil {
			t.Fatalf("unescape(%q): %v", escaped, err)
		}
		if string(got) != v {
			t.Errorf("round trip of %q: escaped %q, unescaped %q", v, escaped, got)
		}
	}

	// RFC 4515 hex escapes decode to their byte values.
	got, err := UnescapeFilterValue(`a\2ab\28c\29d\5ce`)
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}
	if string(got) != `a*b(c)d\e` {
		t.Errorf("hex escapes decoded to %q", got)
	}
}

func TestRenderCanonicalRoundTrip(t *testing.T) {
	inputs := []string{
		"(uid=alice)",
		"(mail=*)",
		"(cn=ab*cd*ef)",
		"(gidNumber<=1000)",
		"(&(objectClass=person)(uid=alice))",
		"(|(uid=alice)(uid=bob)(uid=carol))",
		"(!(memberUid=*))",
		"(&(a=1)(|(b=2)(!(c=3))))",
		"(cn:caseExactMatch:=Fred)",
		"(ou:dn:2.4.6:=Oak)",
		`(cn=star\2avalue)`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			f := mustParse(t, input, ModeStandard)
			rendered := Render(f, true)
			if rendered != input {
				t.Fatalf("Render = %q, want %q", rendered, input)
			}
			again := mustParse(t, rendered, ModeStandard)
			if !reflect.DeepEqual(f, again) {
				t.Errorf("re-parse of %q differs from original AST", rendered)
			}
		})
	}
}

func TestSimpleModePrecedence(t *testing.T) {
	// NOT binds tightest, then AND, then OR.
	f := mustParse(t, "(a=1) OR (b=2) AND NOT (c=3)", ModeSimple)
	want := NewOrFilter(
		NewEqualityFilter("a", []byte("1")),
		NewAndFilter(
			NewEqualityFilter("b", []byte("2")),
			NewNotFilter(NewEqualityFilter("c", []byte("3"))),
		),
	)
	if !reflect.DeepEqual(f, want) {
		t.Errorf("precedence tree:\n got %+v\nwant %+v", f, want)
	}

	// Grouping parentheses override precedence.
	g := mustParse(t, "((a=1) OR (b=2)) AND (c=3)", ModeSimple)
	if g.Type != FilterAnd || g.Children[0].Type != FilterOr {
		t.Errorf("grouped tree: %+v", g)
	}
}

func TestUnifiedModeMatchesBothGrammars(t *testing.T) {
	simple := "(gidNumber<=1000) AND NOT (memberUid=*)"
	u := mustParse(t, simple, ModeUnified)
	s := mustParse(t, simple, ModeSimple)
	if !reflect.DeepEqual(u, s) {
		t.Errorf("unified differs from simple for %q", simple)
	}
	if got := Render(u, true); got != "(&(gidNumber<=1000)(!(memberUid=*)))" {
		t.Errorf("canonical render = %q", got)
	}

	standard := "(&(objectClass=posixAccount)(uid=al*))"
	u2 := mustParse(t, standard, ModeUnified)
	s2 := mustParse(t, standard, ModeStandard)
	if !reflect.DeepEqual(u2, s2) {
		t.Errorf("unified differs from standard for %q", standard)
	}

	// Mixed input: standard subtrees under infix combinators.
	mixed := mustParse(t, "(|(uid=alice)(uid=bob)) OR (cn=carol)", ModeUnified)
	if mixed.Type != FilterOr || len(mixed.Children) != 2 || mixed.Children[0].Type != FilterOr {
		t.Errorf("mixed tree: %+v", mixed)
	}
}
