package dn

import (
	"errors"
	"testing"

	oerrors "github.com/oba-ldap/oba/internal/errors"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // "" means same as input
	}{
		{name: "simple", input: "uid=alice,ou=people,dc=example,dc=org"},
		{name: "empty is root DSE", input: ""},
		{name: "single RDN", input: "dc=org"},
		{name: "multi-valued RDN", input: "cn=web+ou=servers,dc=example,dc=org"},
		{name: "escaped comma", input: `cn=Smith\, John,ou=people,dc=example,dc=org`},
		{name: "escaped plus", input: `cn=a\+b,dc=example,dc=org`},
		{name: "leading hash escaped", input: `cn=\#fragment,dc=org`},
		{name: "leading space escaped", input: `cn=\ padded,dc=org`},
		{name: "trailing space escaped", input: `cn=padded\ ,dc=org`},
		{
			name:  "hex escape normalized to literal",
			input: `cn=foo\2cbar,dc=org`,
			want:  `cn=foo\,bar,dc=org`,
		},
		{
			name:  "semicolon separator normalized to comma",
			input: "uid=alice;dc=org",
			want:  "uid=alice,dc=org",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			want := tt.want
			if want == "" {
				want = tt.input
			}
			if got := d.String(); got != want {
				t.Fatalf("String() = %q, want %q", got, want)
			}
			// parse(render(d)) == d.
			again, err := Parse(d.String())
			if err != nil {
				t.Fatalf("re-Parse(%q): %v", d.String(), err)
			}
			if !d.Equal(again) {
				t.Fatalf("round trip not equal: %q vs %q", d.String(), again.String())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing equals", input: "uid"},
		{name: "empty attribute type", input: "=value,dc=org"},
		{name: "trailing escape", input: `cn=foo\`},
		{name: "unterminated quote", input: `cn="foo,dc=org`},
		{name: "trailing comma", input: "dc=org,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var invalid *oerrors.InvalidDN
			if !errors.As(err, &invalid) {
				t.Fatalf("Parse(%q) err = %v, want InvalidDN", tt.input, err)
			}
		})
	}
}

func TestEqualIsCaseInsensitiveOnTypes(t *testing.T) {
	a := MustParse("UID=alice,DC=example,DC=org")
	b := MustParse("uid=alice,dc=example,dc=org")
	if !a.Equal(b) {
		t.Fatal("attribute-type case should not affect equality")
	}
	c := MustParse("uid=ALICE,dc=example,dc=org")
	if a.Equal(c) {
		t.Fatal("value case differences are structural inequality at this layer")
	}
}

func TestParentAndChild(t *testing.T) {
	d := MustParse("uid=alice,ou=people,dc=org")

	parent, ok := d.Parent()
	if !ok || parent.String() != "ou=people,dc=org" {
		t.Fatalf("Parent = %q ok=%v", parent.String(), ok)
	}

	root := MustParse("")
	if _, ok := root.Parent(); ok {
		t.Fatal("empty DN has no parent")
	}
	if !root.Empty() {
		t.Fatal("Empty() = false for root DSE")
	}

	child := parent.Child(RDN{Attributes: []AttributeTypeAndValue{{Type: "uid", Value: "bob"}}})
	if child.String() != "uid=bob,ou=people,dc=org" {
		t.Fatalf("Child = %q", child.String())
	}
	// The original is unchanged (DNs are immutable).
	if parent.String() != "ou=people,dc=org" {
		t.Fatalf("Child mutated its receiver: %q", parent.String())
	}
}

func TestRDNsReturnsCopy(t *testing.T) {
	d := MustParse("uid=alice,dc=org")
	rdns := d.RDNs()
	rdns[0] = RDN{Attributes: []AttributeTypeAndValue{{Type: "uid", Value: "mallory"}}}
	if d.String() != "uid=alice,dc=org" {
		t.Fatalf("mutating RDNs() copy affected the DN: %q", d.String())
	}
}
