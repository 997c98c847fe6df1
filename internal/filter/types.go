package filter

// FilterType discriminates the variants of the filter AST.
type FilterType int

const (
	FilterAnd FilterType = iota
	FilterOr
	FilterNot
	FilterEquality
	FilterSubstring
	FilterGreaterOrEqual
	FilterLessOrEqual
	FilterPresent
	FilterApproxMatch
	FilterExtensibleMatch
)

var filterTypeNames = map[FilterType]string{
	FilterAnd:             "AND",
	FilterOr:              "OR",
	FilterNot:             "NOT",
	FilterEquality:        "EQUALITY",
	FilterSubstring:       "SUBSTRING",
	FilterGreaterOrEqual:  "GREATER_OR_EQUAL",
	FilterLessOrEqual:     "LESS_OR_EQUAL",
	FilterPresent:         "PRESENT",
	FilterApproxMatch:     "APPROX_MATCH",
	FilterExtensibleMatch: "EXTENSIBLE_MATCH",
}

func (ft FilterType) String() string {
	if name, ok := filterTypeNames[ft]; ok {
		return name
	}
	return "UNKNOWN"
}

// Filter is one node of the search-filter AST. Which fields are
// meaningful depends on Type: Children for AND/OR, Child for NOT,
// Substring for substring filters, Attribute/Value for the atomic
// comparisons, and MatchingRule/DNAttributes for extensible match.
type Filter struct {
	Type      FilterType
	Attribute string
	Value     []byte
	Children  []*Filter
	Child     *Filter
	Substring *SubstringFilter

	// MatchingRule is the rule OID or name of an extensible-match
	// filter ("attr:rule:=value"); optional when Attribute is set.
	MatchingRule string
	// DNAttributes carries RFC 4515's ":dn" modifier, asking the server
	// to also match against DN components of each entry.
	DNAttributes bool
}

// SubstringFilter holds the initial/any/final components of
// "attr=initial*any1*any2*final". Absent components are nil.
type SubstringFilter struct {
	Attribute string
	Initial   []byte
	Any       [][]byte
	Final     []byte
}

// Constructors used by the parsers; exported so callers can also build
// trees programmatically and hand them to a search via FilterTree.

func NewAndFilter(children ...*Filter) *Filter {
	return &Filter{Type: FilterAnd, Children: children}
}

func NewOrFilter(children ...*Filter) *Filter {
	return &Filter{Type: FilterOr, Children: children}
}

func NewNotFilter(child *Filter) *Filter {
	return &Filter{Type: FilterNot, Child: child}
}

func NewEqualityFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterEquality, Attribute: attribute, Value: value}
}

func NewSubstringFilter(sf *SubstringFilter) *Filter {
	return &Filter{Type: FilterSubstring, Attribute: sf.Attribute, Substring: sf}
}

func NewPresentFilter(attribute string) *Filter {
	return &Filter{Type: FilterPresent, Attribute: attribute}
}

func NewGreaterOrEqualFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterGreaterOrEqual, Attribute: attribute, Value: value}
}

func NewLessOrEqualFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterLessOrEqual, Attribute: attribute, Value: value}
}

func NewApproxMatchFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterApproxMatch, Attribute: attribute, Value: value}
}

// NewExtensibleMatchFilter builds an extensible-match node. RFC 4515
// requires at least one of attribute or matchingRule to be present; the
// parser enforces that, this constructor does not.
func NewExtensibleMatchFilter(attribute, matchingRule string, value []byte, dnAttributes bool) *Filter {
	return &Filter{
		Type:         FilterExtensibleMatch,
		Attribute:    attribute,
		MatchingRule: matchingRule,
		Value:        value,
		DNAttributes: dnAttributes,
	}
}
