// Package filter parses LDAP search filters into an AST and renders the
// AST back to its canonical RFC 4515 textual form.
//
// Two concrete grammars feed the same AST. The standard grammar is the
// RFC 4515 prefix form:
//
//	(&(objectClass=person)(|(uid=alice)(uid=bob)))
//
// The simple grammar is an infix form with AND/OR/NOT keywords over the
// same atomic comparisons, NOT binding tightest, then AND, then OR:
//
//	(objectClass=person) AND ((uid=alice) OR (uid=bob))
//
// The unified mode, the package default, decides per subexpression: a
// leading '(' followed by '&', '|', or '!' is standard, anything else is
// simple, so the two forms mix freely in one input.
//
// Parsing and rendering round-trip: for any input the standard parser
// accepts, Render(Parse(s), true) equals s modulo whitespace and the
// spelling of escapes (the canonical form writes every escape as
// lowercase hex and hex-escapes every byte outside printable ASCII),
// with AND/OR children kept in source order and NOT applied only where
// written. Escape handling follows RFC 4515 §3 in both directions
// ('*', '(', ')', '\' and arbitrary bytes as two-digit hex escapes).
package filter
