package schema

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	ErrInheritanceCycle = errors.New("inheritance cycle detected")
)

// LoadSchemaFromLDIF reads schema definitions from an LDIF-formatted
// subschema entry, the form a server returns when its cn=schema (or
// subschemaSubentry) is searched: attributeTypes, objectClasses,
// matchingRules, and ldapSyntaxes values, with RFC 2849 line
// continuations. Inheritance is resolved before the schema is
// returned.
func LoadSchemaFromLDIF(r io.Reader) (*Schema, error) {
	s := NewSchema()

	flush := func(attr, value string) error {
		value = strings.TrimSpace(value)
		if attr == "" || value == "" {
			return nil
		}
		switch strings.ToLower(attr) {
		case "attributetypes":
			at, err := parseAttributeType(value)
			if err != nil {
				return err
			}
			s.AddAttributeType(at)
		case "objectclasses":
			oc, err := parseObjectClass(value)
			if err != nil {
				return err
			}
			s.AddObjectClass(oc)
		case "matchingrules":
			mr, err := parseMatchingRule(value)
			if err != nil {
				return err
			}
			s.AddMatchingRule(mr)
		case "ldapsyntaxes":
			syn, err := parseSyntaxDef(value)
			if err != nil {
				return err
			}
			s.AddSyntax(syn)
		}
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var attr string
	var value strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			if err := flush(attr, value.String()); err != nil {
				return nil, err
			}
			attr = ""
			value.Reset()

		case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
			// RFC 2849 continuation line: drop the single leading fold
			// character and join the rest directly.
			value.WriteString(line[1:])

		default:
			if err := flush(attr, value.String()); err != nil {
				return nil, err
			}
			attr = ""
			value.Reset()

			colon := strings.IndexByte(line, ':')
			if colon < 0 {
				continue
			}
			attr = strings.TrimSpace(strings.TrimSuffix(line[:colon], ":"))
			value.WriteString(strings.TrimSpace(line[colon+1:]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(attr, value.String()); err != nil {
		return nil, err
	}

	if err := s.ResolveInheritance(); err != nil {
		return nil, err
	}
	return s, nil
}

// ResolveInheritance walks SUP chains: attribute types inherit syntax
// and matching rules from their superior where unset, and both element
// kinds are checked for cycles.
func (s *Schema) ResolveInheritance() error {
	if err := s.walkSuperiors(len(s.ObjectClasses), func(key string) (string, bool) {
		oc := s.ObjectClasses[key]
		if oc == nil || oc.Superior == "" {
			return "", false
		}
		if sup := s.GetObjectClass(oc.Superior); sup != nil {
			return sup.OID, true
		}
		return "", false
	}, objectClassKeys(s)); err != nil {
		return err
	}

	// Attribute types additionally pull unset fields down the chain.
	resolved := make(map[string]bool)
	var resolve func(at *AttributeType, trail map[string]bool) error
	resolve = func(at *AttributeType, trail map[string]bool) error {
		if at == nil {
			return nil
		}
		key := at.OID
		if key == "" {
			key = at.Name
		}
		if resolved[key] {
			return nil
		}
		if trail[key] {
			return ErrInheritanceCycle
		}
		trail[key] = true

		if at.Superior != "" {
			sup := s.GetAttributeType(at.Superior)
			if sup != nil {
				if err := resolve(sup, trail); err != nil {
					return err
				}
				if at.Syntax == "" {
					at.Syntax = sup.Syntax
				}
				if at.Equality == "" {
					at.Equality = sup.Equality
				}
				if at.Ordering == "" {
					at.Ordering = sup.Ordering
				}
				if at.Substring == "" {
					at.Substring = sup.Substring
				}
			}
		}
		resolved[key] = true
		return nil
	}

	for _, at := range s.AttributeTypes {
		if err := resolve(at, make(map[string]bool)); err != nil {
			return err
		}
	}
	return nil
}

// walkSuperiors detects cycles in a SUP graph given a successor
// function over element keys.
func (s *Schema) walkSuperiors(size int, next func(string) (string, bool), keys []string) error {
	done := make(map[string]bool, size)
	for _, start := range keys {
		trail := make(map[string]bool)
		key := start
		for {
			if done[key] {
				break
			}
			if trail[key] {
				return ErrInheritanceCycle
			}
			trail[key] = true
			sup, ok := next(key)
			if !ok {
				break
			}
			key = sup
		}
		for k := range trail {
			done[k] = true
		}
	}
	return nil
}

func objectClassKeys(s *Schema) []string {
	keys := make([]string, 0, len(s.ObjectClasses))
	for k := range s.ObjectClasses {
		keys = append(keys, k)
	}
	return keys
}

// GetAllMustAttributes returns an object class's required attributes,
// superiors' included, superior-first.
func (s *Schema) GetAllMustAttributes(ocName string) []string {
	return s.collectClassAttrs(ocName, func(oc *ObjectClass) []string { return oc.Must })
}

// GetAllMayAttributes returns an object class's optional attributes,
// superiors' included, superior-first.
func (s *Schema) GetAllMayAttributes(ocName string) []string {
	return s.collectClassAttrs(ocName, func(oc *ObjectClass) []string { return oc.May })
}

func (s *Schema) collectClassAttrs(ocName string, pick func(*ObjectClass) []string) []string {
	seen := make(map[string]bool)
	var out []string

	var collect func(oc *ObjectClass, depth int)
	collect = func(oc *ObjectClass, depth int) {
		if oc == nil || depth > len(s.ObjectClasses)+1 {
			return
		}
		if oc.Superior != "" {
			collect(s.GetObjectClass(oc.Superior), depth+1)
		}
		for _, attr := range pick(oc) {
			if !seen[attr] {
				seen[attr] = true
				out = append(out, attr)
			}
		}
	}
	collect(s.GetObjectClass(ocName), 0)
	return out
}

// GetEffectiveSyntax returns an attribute type's syntax OID, walking
// SUP where the type itself declares none.
func (s *Schema) GetEffectiveSyntax(atName string) string {
	return s.effectiveField(atName, func(at *AttributeType) string { return at.Syntax })
}

// GetEffectiveEqualityMatch returns an attribute type's equality rule,
// walking SUP where the type itself declares none.
func (s *Schema) GetEffectiveEqualityMatch(atName string) string {
	return s.effectiveField(atName, func(at *AttributeType) string { return at.Equality })
}

func (s *Schema) effectiveField(atName string, pick func(*AttributeType) string) string {
	at := s.GetAttributeType(atName)
	for hops := 0; at != nil && hops <= len(s.AttributeTypes); hops++ {
		if v := pick(at); v != "" {
			return v
		}
		if at.Superior == "" {
			return ""
		}
		at = s.GetAttributeType(at.Superior)
	}
	return ""
}
