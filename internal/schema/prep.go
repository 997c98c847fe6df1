package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Prepare runs the RFC 4518 string preparation pipeline used by the
// case-insensitive matching rules: Transcode -> Map -> Normalize ->
// Prohibit -> Insignificant Character Handling. value is assumed to
// already be UTF-8 (Transcode is therefore a no-op, kept as a pipeline
// stage for completeness per RFC 4518 §2.1).
func Prepare(value []byte) []byte {
	s := string(value)

	// Map: fold compatibility-width variants ahead of case folding, per
	// RFC 4518 §2.2, then case-fold per §2.3.
	s = width.Fold.String(s)
	s = cases.Fold().String(s)

	// Normalize: NFKC, per RFC 4518 §2.4.
	s = norm.NFKC.String(s)

	// Prohibit: reject/strip RFC 4518 §2.5 control and other prohibited
	// code points. The client-side pipeline strips rather than rejects,
	// since prep feeds comparison, not wire validation.
	s = stripProhibited(s)

	// Insignificant Character Handling: collapse runs of whitespace to a
	// single space and leave exactly one space at each end, per RFC 4518
	// §2.6.1.
	s = collapseSpace(s)

	return []byte(s)
}

// PrepareCaseExact runs the same pipeline as Prepare but skips the case
// folding step, for matching rules such as caseExactMatch that are
// Unicode-normalizing but case-sensitive.
func PrepareCaseExact(value []byte) []byte {
	s := string(value)
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)
	s = stripProhibited(s)
	s = collapseSpace(s)
	return []byte(s)
}

func stripProhibited(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Cc, r) && r != ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return " " + strings.Join(fields, " ") + " "
}

// PrepareNumericString squashes insignificant spaces for numericString
// syntax values per RFC 4518 §2.6.2: all whitespace is removed, not just
// collapsed, since spaces are never significant in a numeric string.
func PrepareNumericString(value []byte) []byte {
	var b strings.Builder
	for _, r := range string(value) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return []byte(b.String())
}
