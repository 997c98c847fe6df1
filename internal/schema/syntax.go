package schema

import "unicode/utf8"

// Well-known syntax OIDs (RFC 4517 §3.3).
const (
	SyntaxBitString       = "1.3.6.1.4.1.1466.115.121.1.6"
	SyntaxBoolean         = "1.3.6.1.4.1.1466.115.121.1.7"
	SyntaxDN              = "1.3.6.1.4.1.1466.115.121.1.12"
	SyntaxDirectoryString = "1.3.6.1.4.1.1466.115.121.1.15"
	SyntaxGeneralizedTime = "1.3.6.1.4.1.1466.115.121.1.24"
	SyntaxIA5String       = "1.3.6.1.4.1.1466.115.121.1.26"
	SyntaxInteger         = "1.3.6.1.4.1.1466.115.121.1.27"
	SyntaxNumericString   = "1.3.6.1.4.1.1466.115.121.1.36"
	SyntaxOID             = "1.3.6.1.4.1.1466.115.121.1.38"
	SyntaxOctetString     = "1.3.6.1.4.1.1466.115.121.1.40"
	SyntaxPrintableString = "1.3.6.1.4.1.1466.115.121.1.44"
	SyntaxTelephoneNumber = "1.3.6.1.4.1.1466.115.121.1.50"
	SyntaxUUID            = "1.3.6.1.1.16.1"
)

// syntaxValidators maps syntax OIDs to client-side value checks,
// attached to the built-in schema's Syntax entries by LoadDefaultSchema.
// Syntaxes without an entry accept every value; the server remains
// authoritative either way, these only catch locally-detectable
// mistakes before any bytes are sent.
var syntaxValidators = map[string]func([]byte) bool{
	SyntaxDirectoryString: validDirectoryString,
	SyntaxInteger:         validIntegerString,
	SyntaxBoolean:         validBooleanString,
	SyntaxIA5String:       validIA5String,
	SyntaxPrintableString: validPrintableString,
	SyntaxNumericString:   validNumericString,
	SyntaxTelephoneNumber: validTelephoneNumber,
	SyntaxOctetString:     func([]byte) bool { return true },
}

// validDirectoryString: non-empty, valid UTF-8 (RFC 4517 §3.3.6).
func validDirectoryString(v []byte) bool {
	return len(v) > 0 && utf8.Valid(v)
}

// validIntegerString: optional sign, then digits (RFC 4517 §3.3.16).
func validIntegerString(v []byte) bool {
	if len(v) == 0 {
		return false
	}
	i := 0
	if v[0] == '-' || v[0] == '+' {
		if len(v) == 1 {
			return false
		}
		i = 1
	}
	for ; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

// validBooleanString: exactly "TRUE" or "FALSE" (RFC 4517 §3.3.3).
func validBooleanString(v []byte) bool {
	s := string(v)
	return s == "TRUE" || s == "FALSE"
}

func validIA5String(v []byte) bool {
	for _, b := range v {
		if b > 127 {
			return false
		}
	}
	return true
}

func validPrintableString(v []byte) bool {
	for _, b := range v {
		if !printableChar(b) {
			return false
		}
	}
	return true
}

func printableChar(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case ' ', '\'', '(', ')', '+', ',', '-', '.', '/', ':', '=', '?':
		return true
	}
	return false
}

func validNumericString(v []byte) bool {
	for _, b := range v {
		if b != ' ' && (b < '0' || b > '9') {
			return false
		}
	}
	return true
}

func validTelephoneNumber(v []byte) bool {
	if len(v) == 0 {
		return false
	}
	for _, b := range v {
		switch {
		case b >= '0' && b <= '9':
		default:
			switch b {
			case ' ', '-', '(', ')', '+', '.':
			default:
				return false
			}
		}
	}
	return true
}
