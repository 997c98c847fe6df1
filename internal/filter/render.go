package filter

import "strings"

// Render produces the RFC 4515 string form of f. AND/OR children are
// emitted in the order they appear on the Filter (no reordering, so
// Parse(Render(f)) round-trips to an equal tree), and NOT is only emitted
// where the tree explicitly carries FilterNot. When canonical is true,
// every byte of a value outside printable ASCII (control bytes as well
// as non-ASCII bytes) is hex-escaped; when false, those bytes are left
// as they are and only the four RFC 4515 special characters are
// escaped.
func Render(f *Filter, canonical bool) string {
	if f == nil {
		return ""
	}

	var b strings.Builder
	renderInto(&b, f, canonical)
	return b.String()
}

func renderInto(b *strings.Builder, f *Filter, canonical bool) {
	b.WriteByte('(')
	switch f.Type {
	case FilterAnd:
		b.WriteByte('&')
		for _, child := range f.Children {
			renderInto(b, child, canonical)
		}
	case FilterOr:
		b.WriteByte('|')
		for _, child := range f.Children {
			renderInto(b, child, canonical)
		}
	case FilterNot:
		b.WriteByte('!')
		renderInto(b, f.Child, canonical)
	case FilterEquality:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		b.WriteString(EscapeFilterValue(f.Value, canonical))
	case FilterGreaterOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString(">=")
		b.WriteString(EscapeFilterValue(f.Value, canonical))
	case FilterLessOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString("<=")
		b.WriteString(EscapeFilterValue(f.Value, canonical))
	case FilterApproxMatch:
		b.WriteString(f.Attribute)
		b.WriteString("~=")
		b.WriteString(EscapeFilterValue(f.Value, canonical))
	case FilterPresent:
		b.WriteString(f.Attribute)
		b.WriteString("=*")
	case FilterSubstring:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		if f.Substring != nil {
			if len(f.Substring.Initial) > 0 {
				b.WriteString(EscapeFilterValue(f.Substring.Initial, canonical))
			}
			b.WriteByte('*')
			for _, any := range f.Substring.Any {
				b.WriteString(EscapeFilterValue(any, canonical))
				b.WriteByte('*')
			}
			if len(f.Substring.Final) > 0 {
				b.WriteString(EscapeFilterValue(f.Substring.Final, canonical))
			}
		} else {
			b.WriteByte('*')
		}
	case FilterExtensibleMatch:
		b.WriteString(f.Attribute)
		if f.DNAttributes {
			b.WriteString(":dn")
		}
		if f.MatchingRule != "" {
			b.WriteByte(':')
			b.WriteString(f.MatchingRule)
		}
		b.WriteString(":=")
		b.WriteString(EscapeFilterValue(f.Value, canonical))
	}
	b.WriteByte(')')
}
