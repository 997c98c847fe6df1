package schema

import (
	"bytes"

	"github.com/oba-ldap/oba/internal/logging"
)

// Logger receives a warning whenever Equal falls back to octet equality
// for an attribute whose equality matching rule is not registered. It
// defaults to a no-op; internal/client rewires it to the connection's
// configured logger at Dial time.
var Logger logging.Logger = logging.NewNop()

// knownEqualityRules maps matching rule names (names only, not OIDs) to
// comparison functions over prepared values. Unlisted rules fall back
// to octet equality.
var knownEqualityRules = map[string]func(a, b []byte) bool{
	"caseIgnoreMatch":       func(a, b []byte) bool { return bytes.Equal(Prepare(a), Prepare(b)) },
	"caseIgnoreIA5Match":    func(a, b []byte) bool { return bytes.Equal(Prepare(a), Prepare(b)) },
	"caseExactMatch":        func(a, b []byte) bool { return bytes.Equal(PrepareCaseExact(a), PrepareCaseExact(b)) },
	"caseExactIA5Match":     func(a, b []byte) bool { return bytes.Equal(PrepareCaseExact(a), PrepareCaseExact(b)) },
	"numericStringMatch":    func(a, b []byte) bool { return bytes.Equal(PrepareNumericString(a), PrepareNumericString(b)) },
	"distinguishedNameMatch": func(a, b []byte) bool {
		return bytes.Equal(Prepare(a), Prepare(b))
	},
	"octetStringMatch":  bytes.Equal,
	"booleanMatch":      bytes.Equal,
	"integerMatch":      bytes.Equal,
	"objectIdentifierMatch": bytes.Equal,
}

// Equal compares two attribute values using the named equality matching
// rule. An empty rule means plain octet equality. A rule this package
// does not know how to apply records a warning and degrades to plain
// octet equality rather than failing the comparison.
func Equal(rule string, a, b []byte) bool {
	if rule == "" {
		return bytes.Equal(a, b)
	}
	if fn, ok := knownEqualityRules[rule]; ok {
		return fn(a, b)
	}
	Logger.Warn("unrecognized matching rule, degrading to octet equality", "rule", rule)
	return bytes.Equal(a, b)
}

// EqualForAttribute resolves attr's equality matching rule in s (if s is
// non-nil and the attribute type is registered) and compares a and b. An
// unknown attribute is permitted, since the server is authoritative, so
// comparison degrades to octet equality.
func EqualForAttribute(s *Schema, attr string, a, b []byte) bool {
	if s == nil {
		return bytes.Equal(a, b)
	}
	at := s.GetAttributeType(attr)
	if at == nil {
		Logger.Warn("unknown attribute type, degrading to octet equality", "attribute", attr)
		return bytes.Equal(a, b)
	}
	return Equal(at.Equality, a, b)
}
