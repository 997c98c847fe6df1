package schema

import (
	"errors"
	"strings"
)

var (
	ErrInvalidObjectClass   = errors.New("invalid object class definition")
	ErrInvalidAttributeType = errors.New("invalid attribute type definition")
	ErrInvalidMatchingRule  = errors.New("invalid matching rule definition")
	ErrInvalidSyntaxDef     = errors.New("invalid syntax definition")
	ErrMissingOID           = errors.New("missing OID in definition")
	ErrUnterminatedString   = errors.New("unterminated quoted string")
	ErrUnterminatedParens   = errors.New("unterminated parentheses")
)

// defReader walks the tokens of one RFC 4512 definition. next returns
// the next keyword; arg consumes the token after the keyword the caller
// just matched.
type defReader struct {
	tokens []string
	pos    int
	broken error
}

// openDefinition strips the outer parentheses and tokenizes; every
// definition form shares this shape.
func openDefinition(s string, formErr error) (*defReader, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, formErr
	}
	tokens, err := tokenizeDefinition(strings.TrimSpace(s[1 : len(s)-1]))
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrMissingOID
	}
	return &defReader{tokens: tokens}, nil
}

func (r *defReader) oid() string { return r.tokens[0] }

// next returns the next keyword token, advancing; "" at the end.
func (r *defReader) next() string {
	r.pos++
	if r.pos >= len(r.tokens) {
		return ""
	}
	return r.tokens[r.pos]
}

// arg consumes the token following a keyword; a missing argument marks
// the reader broken with formErr, checked once at the end.
func (r *defReader) arg(formErr error) string {
	r.pos++
	if r.pos >= len(r.tokens) {
		if r.broken == nil {
			r.broken = formErr
		}
		return ""
	}
	return r.tokens[r.pos]
}

// tokenizeDefinition splits a definition body into tokens: bare words,
// quoted strings (quotes kept), and parenthesized groups collapsed into
// a single token with '$' separators dropped to spaces.
func tokenizeDefinition(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	depth := 0

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			cur.WriteByte(c)
			if c == '\'' {
				inQuote = false
			}
			continue
		}
		switch c {
		case '\'':
			inQuote = true
			cur.WriteByte(c)
		case '(':
			if depth > 0 {
				cur.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth > 0 {
				cur.WriteByte(c)
			} else if depth == 0 {
				flush()
			}
		case ' ', '\t', '\n', '\r':
			if depth > 0 {
				cur.WriteByte(c)
			} else {
				flush()
			}
		case '$':
			// Group separator; a space keeps the names splittable.
			if depth > 0 {
				cur.WriteByte(' ')
			}
		default:
			cur.WriteByte(c)
		}
	}

	if inQuote {
		return nil, ErrUnterminatedString
	}
	if depth != 0 {
		return nil, ErrUnterminatedParens
	}
	flush()
	return tokens, nil
}

// parseAttributeType parses one AttributeTypeDescription (RFC 4512
// §4.1.2).
func parseAttributeType(s string) (*AttributeType, error) {
	r, err := openDefinition(s, ErrInvalidAttributeType)
	if err != nil {
		return nil, err
	}

	at := &AttributeType{OID: r.oid(), Usage: UserApplications}
	for {
		keyword := r.next()
		if keyword == "" {
			break
		}
		switch strings.ToUpper(keyword) {
		case "NAME":
			at.Names = parseQuotedNames(r.arg(ErrInvalidAttributeType))
			if len(at.Names) > 0 {
				at.Name = at.Names[0]
			}
		case "DESC":
			at.Desc = unquote(r.arg(ErrInvalidAttributeType))
		case "OBSOLETE":
			at.Obsolete = true
		case "SUP":
			at.Superior = unquote(r.arg(ErrInvalidAttributeType))
		case "EQUALITY":
			at.Equality = unquote(r.arg(ErrInvalidAttributeType))
		case "ORDERING":
			at.Ordering = unquote(r.arg(ErrInvalidAttributeType))
		case "SUBSTR":
			at.Substring = unquote(r.arg(ErrInvalidAttributeType))
		case "SYNTAX":
			at.Syntax = stripSyntaxLength(r.arg(ErrInvalidAttributeType))
		case "SINGLE-VALUE":
			at.SingleValue = true
		case "COLLECTIVE":
			at.Collective = true
		case "NO-USER-MODIFICATION":
			at.NoUserMod = true
		case "USAGE":
			at.Usage = parseUsage(r.arg(ErrInvalidAttributeType))
		}
	}
	if r.broken != nil {
		return nil, r.broken
	}
	return at, nil
}

// parseObjectClass parses one ObjectClassDescription (RFC 4512 §4.1.1).
func parseObjectClass(s string) (*ObjectClass, error) {
	r, err := openDefinition(s, ErrInvalidObjectClass)
	if err != nil {
		return nil, err
	}

	oc := &ObjectClass{OID: r.oid(), Kind: ObjectClassStructural, Must: []string{}, May: []string{}}
	for {
		keyword := r.next()
		if keyword == "" {
			break
		}
		switch strings.ToUpper(keyword) {
		case "NAME":
			oc.Names = parseQuotedNames(r.arg(ErrInvalidObjectClass))
			if len(oc.Names) > 0 {
				oc.Name = oc.Names[0]
			}
		case "DESC":
			oc.Desc = unquote(r.arg(ErrInvalidObjectClass))
		case "OBSOLETE":
			oc.Obsolete = true
		case "SUP":
			oc.Superior = unquote(r.arg(ErrInvalidObjectClass))
		case "ABSTRACT":
			oc.Kind = ObjectClassAbstract
		case "STRUCTURAL":
			oc.Kind = ObjectClassStructural
		case "AUXILIARY":
			oc.Kind = ObjectClassAuxiliary
		case "MUST":
			oc.Must = splitAttributeList(r.arg(ErrInvalidObjectClass))
		case "MAY":
			oc.May = splitAttributeList(r.arg(ErrInvalidObjectClass))
		}
	}
	if r.broken != nil {
		return nil, r.broken
	}
	return oc, nil
}

// parseMatchingRule parses one MatchingRuleDescription (RFC 4512
// §4.1.3).
func parseMatchingRule(s string) (*MatchingRule, error) {
	r, err := openDefinition(s, ErrInvalidMatchingRule)
	if err != nil {
		return nil, err
	}

	mr := &MatchingRule{OID: r.oid()}
	for {
		keyword := r.next()
		if keyword == "" {
			break
		}
		switch strings.ToUpper(keyword) {
		case "NAME":
			mr.Names = parseQuotedNames(r.arg(ErrInvalidMatchingRule))
			if len(mr.Names) > 0 {
				mr.Name = mr.Names[0]
			}
		case "DESC":
			mr.Description = unquote(r.arg(ErrInvalidMatchingRule))
		case "OBSOLETE":
			mr.Obsolete = true
		case "SYNTAX":
			mr.Syntax = stripSyntaxLength(r.arg(ErrInvalidMatchingRule))
		}
	}
	if r.broken != nil {
		return nil, r.broken
	}
	return mr, nil
}

// parseSyntaxDef parses one SyntaxDescription (RFC 4512 §4.1.5).
func parseSyntaxDef(s string) (*Syntax, error) {
	r, err := openDefinition(s, ErrInvalidSyntaxDef)
	if err != nil {
		return nil, err
	}

	syn := &Syntax{OID: r.oid()}
	for {
		keyword := r.next()
		if keyword == "" {
			break
		}
		if strings.ToUpper(keyword) == "DESC" {
			syn.Description = unquote(r.arg(ErrInvalidSyntaxDef))
		}
	}
	if r.broken != nil {
		return nil, r.broken
	}
	return syn, nil
}

// parseQuotedNames reads a NAME value: either one quoted name or a
// parenthesized group of them (arriving here as one token).
func parseQuotedNames(s string) []string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "'") {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var names []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'' && inQuote:
			if cur.Len() > 0 {
				names = append(names, cur.String())
				cur.Reset()
			}
			inQuote = false
		case s[i] == '\'':
			inQuote = true
		case inQuote:
			cur.WriteByte(s[i])
		}
	}
	return names
}

// splitAttributeList reads a MUST/MAY value: one name or a group whose
// '$' separators the tokenizer turned into spaces.
func splitAttributeList(s string) []string {
	var attrs []string
	for _, part := range strings.Fields(s) {
		if part = unquote(part); part != "" {
			attrs = append(attrs, part)
		}
	}
	return attrs
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

// stripSyntaxLength drops a "{256}"-style length bound from a SYNTAX
// argument, keeping only the OID.
func stripSyntaxLength(s string) string {
	s = unquote(s)
	if idx := strings.IndexByte(s, '{'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func parseUsage(s string) AttributeUsage {
	switch strings.ToLower(unquote(s)) {
	case "directoryoperation":
		return DirectoryOperation
	case "distributedoperation":
		return DistributedOperation
	case "dsaoperation":
		return DSAOperation
	}
	return UserApplications
}
