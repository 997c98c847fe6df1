// Package dn implements RFC 4514 string representation of distinguished
// names: parsing a textual DN into its RDN/AVA structure and rendering it
// back out in canonical form. The grammar is a small hand-written
// recursive-descent scanner in the same style as internal/filter and
// internal/ber: track a byte offset, report it on error.
package dn

import (
	"strings"

	oerrors "github.com/oba-ldap/oba/internal/errors"
)

// AttributeTypeAndValue is one "type=value" pair within an RDN.
type AttributeTypeAndValue struct {
	Type  string
	Value string
}

// RDN is a relative distinguished name: one or more attribute/value
// assertions joined by '+' (multi-valued RDN).
type RDN struct {
	Attributes []AttributeTypeAndValue
}

// String renders the RDN in RFC 4514 canonical form.
func (r RDN) String() string {
	parts := make([]string, len(r.Attributes))
	for i, ava := range r.Attributes {
		parts[i] = ava.Type + "=" + escapeValue(ava.Value)
	}
	return strings.Join(parts, "+")
}

// DN is an immutable sequence of RDNs, most-specific first, as it appears
// in the textual form ("uid=foo,ou=people,dc=example,dc=org"). The zero
// value DN{} is the empty DN (the root DSE address).
type DN struct {
	rdns []RDN
}

// RDNs returns the component RDNs, most-specific first. The returned
// slice is a copy; mutating it does not affect the DN.
func (d DN) RDNs() []RDN {
	out := make([]RDN, len(d.rdns))
	copy(out, d.rdns)
	return out
}

// Empty reports whether d is the root DSE address (zero RDNs).
func (d DN) Empty() bool {
	return len(d.rdns) == 0
}

// String renders d in RFC 4514 canonical form.
func (d DN) String() string {
	parts := make([]string, len(d.rdns))
	for i, r := range d.rdns {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// Equal compares two DNs structurally: same RDN count, same attribute
// type (case-insensitive) and value (RFC 4514 value-equal) at each
// position. This is a textual/structural equality, not a schema-aware
// distinguishedNameMatch; internal/schema's distinguishedNameMatch
// compares RFC 4518-prepared strings and does not call it.
func (d DN) Equal(other DN) bool {
	if len(d.rdns) != len(other.rdns) {
		return false
	}
	for i := range d.rdns {
		a, b := d.rdns[i], other.rdns[i]
		if len(a.Attributes) != len(b.Attributes) {
			return false
		}
		for j := range a.Attributes {
			if !strings.EqualFold(a.Attributes[j].Type, b.Attributes[j].Type) {
				return false
			}
			if a.Attributes[j].Value != b.Attributes[j].Value {
				return false
			}
		}
	}
	return true
}

// Parent returns the DN with its first (most-specific) RDN removed, and
// true if d had at least one RDN. Parsing the empty DN's Parent returns
// (DN{}, false).
func (d DN) Parent() (DN, bool) {
	if len(d.rdns) == 0 {
		return DN{}, false
	}
	return DN{rdns: append([]RDN(nil), d.rdns[1:]...)}, true
}

// Child joins rdn as the new most-specific component of d, returning a new
// DN; d itself is never mutated (DNs are immutable).
func (d DN) Child(rdn RDN) DN {
	out := make([]RDN, 0, len(d.rdns)+1)
	out = append(out, rdn)
	out = append(out, d.rdns...)
	return DN{rdns: out}
}

// Parse parses s as an RFC 4514 distinguished name string. The empty
// string parses to the empty DN.
func Parse(s string) (DN, error) {
	if s == "" {
		return DN{}, nil
	}
	p := &parser{s: s}
	rdns, err := p.parseRDNs()
	if err != nil {
		return DN{}, err
	}
	return DN{rdns: rdns}, nil
}

// MustParse parses s and panics on error; reserved for constructing
// compile-time-known DNs (tests, examples), never for caller input.
func MustParse(s string) DN {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

type parser struct {
	s   string
	pos int
}

func (p *parser) errorf(reason string) error {
	return &oerrors.InvalidDN{Input: p.s, Reason: reason}
}

func (p *parser) parseRDNs() ([]RDN, error) {
	var rdns []RDN
	for {
		rdn, err := p.parseRDN()
		if err != nil {
			return nil, err
		}
		rdns = append(rdns, rdn)
		if p.pos >= len(p.s) {
			break
		}
		if p.s[p.pos] != ',' && p.s[p.pos] != ';' {
			return nil, p.errorf("expected ',' between RDNs")
		}
		p.pos++
	}
	return rdns, nil
}

func (p *parser) parseRDN() (RDN, error) {
	var rdn RDN
	for {
		ava, err := p.parseAVA()
		if err != nil {
			return rdn, err
		}
		rdn.Attributes = append(rdn.Attributes, ava)
		if p.pos < len(p.s) && p.s[p.pos] == '+' {
			p.pos++
			continue
		}
		break
	}
	return rdn, nil
}

func (p *parser) parseAVA() (AttributeTypeAndValue, error) {
	typ, err := p.parseAttributeType()
	if err != nil {
		return AttributeTypeAndValue{}, err
	}
	if p.pos >= len(p.s) || p.s[p.pos] != '=' {
		return AttributeTypeAndValue{}, p.errorf("expected '=' after attribute type")
	}
	p.pos++
	val, err := p.parseValue()
	if err != nil {
		return AttributeTypeAndValue{}, err
	}
	return AttributeTypeAndValue{Type: typ, Value: val}, nil
}

func (p *parser) parseAttributeType() (string, error) {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '=' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("empty attribute type")
	}
	return p.s[start:p.pos], nil
}

// parseValue reads an RFC 4514 string value: either a quoted string or an
// escaped bare string, terminated by ',', '+', ';', or end of input.
func (p *parser) parseValue() (string, error) {
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch c {
		case ',', '+', ';':
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.s) {
				return "", p.errorf("trailing escape")
			}
			if isHex(p.s[p.pos]) && p.pos+1 < len(p.s) && isHex(p.s[p.pos+1]) {
				hi, _ := hexVal(p.s[p.pos])
				lo, _ := hexVal(p.s[p.pos+1])
				b.WriteByte(hi<<4 | lo)
				p.pos += 2
			} else {
				b.WriteByte(p.s[p.pos])
				p.pos++
			}
		case '"':
			p.pos++
			for p.pos < len(p.s) && p.s[p.pos] != '"' {
				if p.s[p.pos] == '\\' && p.pos+1 < len(p.s) {
					p.pos++
				}
				b.WriteByte(p.s[p.pos])
				p.pos++
			}
			if p.pos >= len(p.s) {
				return "", p.errorf("unterminated quoted value")
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return b.String(), nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// escapeValue escapes an RDN value for RFC 4514 rendering: a leading '#'
// or space, a trailing space, and any of, + " \ < >; = are escaped with
// a backslash.
func escapeValue(v string) string {
	if v == "" {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case i == 0 && (c == ' ' || c == '#'):
			b.WriteByte('\\')
			b.WriteByte(c)
		case i == len(v)-1 && c == ' ':
			b.WriteByte('\\')
			b.WriteByte(c)
		case strings.IndexByte(`,+"\<>;=`, c) >= 0:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
