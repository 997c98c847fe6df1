package ldap

import (
	"errors"

	"github.com/oba-ldap/oba/internal/ber"
)

// SearchScope is the ENUMERATED scope of a search: base object only,
// one level below it, or the whole subtree.
type SearchScope int

const (
	ScopeBaseObject   SearchScope = 0
	ScopeSingleLevel  SearchScope = 1
	ScopeWholeSubtree SearchScope = 2
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "BaseObject"
	case ScopeSingleLevel:
		return "SingleLevel"
	case ScopeWholeSubtree:
		return "WholeSubtree"
	}
	return "Unknown"
}

// DerefAliases is the ENUMERATED alias-dereferencing policy of a search
// (RFC 4511 §4.5.1.2).
type DerefAliases int

const (
	DerefNever          DerefAliases = 0
	DerefInSearching    DerefAliases = 1
	DerefFindingBaseObj DerefAliases = 2
	DerefAlways         DerefAliases = 3
)

func (d DerefAliases) String() string {
	switch d {
	case DerefNever:
		return "NeverDerefAliases"
	case DerefInSearching:
		return "DerefInSearching"
	case DerefFindingBaseObj:
		return "DerefFindingBaseObj"
	case DerefAlways:
		return "DerefAlways"
	}
	return "Unknown"
}

// Context-specific CHOICE tags of the Filter production (RFC 4511
// §4.5.1.7), and the component tags nested inside substring and
// extensible-match filters.
const (
	FilterTagAnd             = 0
	FilterTagOr              = 1
	FilterTagNot             = 2
	FilterTagEquality        = 3
	FilterTagSubstrings      = 4
	FilterTagGreaterOrEqual  = 5
	FilterTagLessOrEqual     = 6
	FilterTagPresent         = 7
	FilterTagApproxMatch     = 8
	FilterTagExtensibleMatch = 9

	SubstringInitial = 0
	SubstringAny     = 1
	SubstringFinal   = 2

	ExtMatchMatchingRule = 1
	ExtMatchType         = 2
	ExtMatchMatchValue   = 3
	ExtMatchDNAttributes = 4
)

// SearchFilter is the wire-level filter tree, tagged by the CHOICE tag
// rather than by a Go enum: internal/filter owns the text-level AST and
// converts into this shape just before encoding.
type SearchFilter struct {
	Type            int
	Attribute       string
	Value           []byte
	Children        []*SearchFilter
	Child           *SearchFilter
	Substrings      *SubstringComponents
	ExtensibleMatch *ExtensibleMatchComponents
}

// SubstringComponents carries the initial/any/final parts of a
// substring filter.
type SubstringComponents struct {
	Initial []byte
	Any     [][]byte
	Final   []byte
}

// ExtensibleMatchComponents carries the optional matching rule and
// attribute type, the assertion value, and the dnAttributes flag of an
// extensible match.
type ExtensibleMatchComponents struct {
	MatchingRule string
	Type         string
	MatchValue   []byte
	DNAttributes bool
}

// SearchRequest is the [APPLICATION 3] search operation.
type SearchRequest struct {
	BaseObject   string
	Scope        SearchScope
	DerefAliases DerefAliases
	SizeLimit    int
	TimeLimit    int
	TypesOnly    bool
	Filter       *SearchFilter
	Attributes   []string
}

var (
	ErrInvalidSearchScope     = errors.New("ldap: invalid search scope")
	ErrInvalidDerefAliases    = errors.New("ldap: invalid deref aliases value")
	ErrInvalidFilter          = errors.New("ldap: invalid search filter")
	ErrInvalidSubstringFilter = errors.New("ldap: invalid substring filter")
)

// Encode serializes the full APPLICATION 3 TLV. Like
// ExtendedRequest.Encode, and unlike the other request encoders, this
// one includes the application tag, since the
// filter CHOICE makes the content self-delimiting only inside it; the
// caller strips the outer tag when embedding into an envelope.
func (r *SearchRequest) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(256)
	app := e.WriteApplicationTag(ApplicationSearchRequest, true)

	if err := e.WriteOctetString([]byte(r.BaseObject)); err != nil {
		return nil, err
	}
	if err := e.WriteEnumerated(int64(r.Scope)); err != nil {
		return nil, err
	}
	if err := e.WriteEnumerated(int64(r.DerefAliases)); err != nil {
		return nil, err
	}
	if err := e.WriteInteger(int64(r.SizeLimit)); err != nil {
		return nil, err
	}
	if err := e.WriteInteger(int64(r.TimeLimit)); err != nil {
		return nil, err
	}
	if err := e.WriteBoolean(r.TypesOnly); err != nil {
		return nil, err
	}

	if r.Filter == nil {
		return nil, NewParseError(0, "search request requires a filter", ErrInvalidFilter)
	}
	if err := encodeSearchFilter(e, r.Filter); err != nil {
		return nil, err
	}

	attrs := e.BeginSequence()
	for _, attr := range r.Attributes {
		if err := e.WriteOctetString([]byte(attr)); err != nil {
			return nil, err
		}
	}
	if err := e.EndSequence(attrs); err != nil {
		return nil, err
	}

	if err := e.EndApplicationTag(app); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// encodeSearchFilter writes one filter node under its CHOICE tag,
// recursing for composites; the reverse of parseSearchFilter.
func encodeSearchFilter(e *ber.BEREncoder, f *SearchFilter) error {
	switch f.Type {
	case FilterTagAnd, FilterTagOr:
		pos := e.WriteContextTag(f.Type, true)
		for _, child := range f.Children {
			if err := encodeSearchFilter(e, child); err != nil {
				return err
			}
		}
		return e.EndContextTag(pos)

	case FilterTagNot:
		if f.Child == nil {
			return NewParseError(0, "NOT filter requires a child", ErrInvalidFilter)
		}
		pos := e.WriteContextTag(f.Type, true)
		if err := encodeSearchFilter(e, f.Child); err != nil {
			return err
		}
		return e.EndContextTag(pos)

	case FilterTagEquality, FilterTagGreaterOrEqual, FilterTagLessOrEqual, FilterTagApproxMatch:
		pos := e.WriteContextTag(f.Type, true)
		if err := e.WriteOctetString([]byte(f.Attribute)); err != nil {
			return err
		}
		if err := e.WriteOctetString(f.Value); err != nil {
			return err
		}
		return e.EndContextTag(pos)

	case FilterTagSubstrings:
		if f.Substrings == nil {
			return NewParseError(0, "substring filter requires components", ErrInvalidSubstringFilter)
		}
		pos := e.WriteContextTag(f.Type, true)
		if err := e.WriteOctetString([]byte(f.Attribute)); err != nil {
			return err
		}
		parts := e.BeginSequence()
		if len(f.Substrings.Initial) > 0 {
			if err := e.WriteTaggedValue(SubstringInitial, false, f.Substrings.Initial); err != nil {
				return err
			}
		}
		for _, any := range f.Substrings.Any {
			if err := e.WriteTaggedValue(SubstringAny, false, any); err != nil {
				return err
			}
		}
		if len(f.Substrings.Final) > 0 {
			if err := e.WriteTaggedValue(SubstringFinal, false, f.Substrings.Final); err != nil {
				return err
			}
		}
		if err := e.EndSequence(parts); err != nil {
			return err
		}
		return e.EndContextTag(pos)

	case FilterTagPresent:
		return e.WriteTaggedValue(f.Type, false, []byte(f.Attribute))

	case FilterTagExtensibleMatch:
		if f.ExtensibleMatch == nil {
			return NewParseError(0, "extensible match filter requires components", ErrInvalidFilter)
		}
		ext := f.ExtensibleMatch
		pos := e.WriteContextTag(f.Type, true)
		if ext.MatchingRule != "" {
			if err := e.WriteTaggedValue(ExtMatchMatchingRule, false, []byte(ext.MatchingRule)); err != nil {
				return err
			}
		}
		if ext.Type != "" {
			if err := e.WriteTaggedValue(ExtMatchType, false, []byte(ext.Type)); err != nil {
				return err
			}
		}
		if err := e.WriteTaggedValue(ExtMatchMatchValue, false, ext.MatchValue); err != nil {
			return err
		}
		if ext.DNAttributes {
			if err := e.WriteTaggedValue(ExtMatchDNAttributes, false, []byte{0xFF}); err != nil {
				return err
			}
		}
		return e.EndContextTag(pos)
	}

	return NewParseError(0, "unknown filter type", ErrInvalidFilter)
}

// ParseSearchRequest decodes search-request content octets (the inside
// of the APPLICATION 3 tag); the decode mirror of Encode.
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty search request data", nil)
	}

	d := ber.NewBERDecoder(data)
	req := &SearchRequest{}

	base, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read baseObject", err)
	}
	req.BaseObject = string(base)

	scope, err := d.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read scope", err)
	}
	if scope < 0 || scope > 2 {
		return nil, ErrInvalidSearchScope
	}
	req.Scope = SearchScope(scope)

	deref, err := d.ReadEnumerated()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read derefAliases", err)
	}
	if deref < 0 || deref > 3 {
		return nil, ErrInvalidDerefAliases
	}
	req.DerefAliases = DerefAliases(deref)

	if req.SizeLimit, err = readInt(d, "sizeLimit"); err != nil {
		return nil, err
	}
	if req.TimeLimit, err = readInt(d, "timeLimit"); err != nil {
		return nil, err
	}

	typesOnly, err := d.ReadBoolean()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read typesOnly", err)
	}
	req.TypesOnly = typesOnly

	f, err := parseSearchFilter(d)
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read filter", err)
	}
	req.Filter = f

	attrsLen, err := d.ExpectSequence()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read attributes sequence", err)
	}
	attrsEnd := d.Offset() + attrsLen
	for d.Offset() < attrsEnd && d.Remaining() > 0 {
		attr, err := d.ReadOctetString()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read attribute", err)
		}
		req.Attributes = append(req.Attributes, string(attr))
	}

	return req, nil
}

func readInt(d *ber.BERDecoder, field string) (int, error) {
	v, err := d.ReadInteger()
	if err != nil {
		return 0, NewParseError(d.Offset(), "failed to read "+field, err)
	}
	return int(v), nil
}

// parseSearchFilter decodes one filter CHOICE, recursing for
// composites.
func parseSearchFilter(d *ber.BERDecoder) (*SearchFilter, error) {
	tag, constructed, body, err := d.ReadTaggedValue()
	if err != nil {
		return nil, err
	}

	f := &SearchFilter{Type: tag}

	switch tag {
	case FilterTagAnd, FilterTagOr:
		if !constructed {
			return nil, NewParseError(d.Offset(), "AND/OR filter must be constructed", ErrInvalidFilter)
		}
		inner := ber.NewBERDecoder(body)
		for inner.Remaining() > 0 {
			child, err := parseSearchFilter(inner)
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, child)
		}

	case FilterTagNot:
		if !constructed {
			return nil, NewParseError(d.Offset(), "NOT filter must be constructed", ErrInvalidFilter)
		}
		child, err := parseSearchFilter(ber.NewBERDecoder(body))
		if err != nil {
			return nil, err
		}
		f.Child = child

	case FilterTagEquality, FilterTagGreaterOrEqual, FilterTagLessOrEqual, FilterTagApproxMatch:
		if !constructed {
			return nil, NewParseError(d.Offset(), "comparison filter must be constructed", ErrInvalidFilter)
		}
		inner := ber.NewBERDecoder(body)
		attr, err := inner.ReadOctetString()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read filter attribute", err)
		}
		value, err := inner.ReadOctetString()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read filter value", err)
		}
		f.Attribute = string(attr)
		f.Value = value

	case FilterTagSubstrings:
		if !constructed {
			return nil, NewParseError(d.Offset(), "substring filter must be constructed", ErrInvalidFilter)
		}
		attr, parts, err := parseSubstringComponents(ber.NewBERDecoder(body))
		if err != nil {
			return nil, err
		}
		f.Attribute = attr
		f.Substrings = parts

	case FilterTagPresent:
		if constructed {
			return nil, NewParseError(d.Offset(), "present filter must be primitive", ErrInvalidFilter)
		}
		f.Attribute = string(body)

	case FilterTagExtensibleMatch:
		if !constructed {
			return nil, NewParseError(d.Offset(), "extensible match filter must be constructed", ErrInvalidFilter)
		}
		ext, err := parseExtensibleComponents(ber.NewBERDecoder(body))
		if err != nil {
			return nil, err
		}
		f.ExtensibleMatch = ext

	default:
		return nil, NewParseError(d.Offset(), "unknown filter type", ErrInvalidFilter)
	}

	return f, nil
}

func parseSubstringComponents(d *ber.BERDecoder) (string, *SubstringComponents, error) {
	attr, err := d.ReadOctetString()
	if err != nil {
		return "", nil, NewParseError(d.Offset(), "failed to read substring attribute", err)
	}

	seqLen, err := d.ExpectSequence()
	if err != nil {
		return "", nil, NewParseError(d.Offset(), "failed to read substrings sequence", err)
	}
	seqEnd := d.Offset() + seqLen

	parts := &SubstringComponents{}
	for d.Offset() < seqEnd {
		tag, _, value, err := d.ReadTaggedValue()
		if err != nil {
			return "", nil, NewParseError(d.Offset(), "failed to read substring component", err)
		}
		switch tag {
		case SubstringInitial:
			parts.Initial = value
		case SubstringAny:
			parts.Any = append(parts.Any, value)
		case SubstringFinal:
			parts.Final = value
		default:
			return "", nil, NewParseError(d.Offset(), "unknown substring component tag", ErrInvalidSubstringFilter)
		}
	}

	return string(attr), parts, nil
}

func parseExtensibleComponents(d *ber.BERDecoder) (*ExtensibleMatchComponents, error) {
	ext := &ExtensibleMatchComponents{}
	for d.Remaining() > 0 {
		tag, _, value, err := d.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read extensible match component", err)
		}
		switch tag {
		case ExtMatchMatchingRule:
			ext.MatchingRule = string(value)
		case ExtMatchType:
			ext.Type = string(value)
		case ExtMatchMatchValue:
			ext.MatchValue = value
		case ExtMatchDNAttributes:
			ext.DNAttributes = len(value) > 0 && value[0] != 0
		}
	}
	return ext, nil
}
