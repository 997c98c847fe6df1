package schema

import (
	"fmt"
	"strings"

	oerrors "github.com/oba-ldap/oba/internal/errors"
)

// ValidateEntry checks an entry's attributes against the schema before
// they are sent to the server. The outcome has two tiers, since the
// server is always authoritative:
//
//   - Schema elements the client does not know (object classes,
//     attribute types) come back as warnings for the caller to log;
//     the request still goes out.
//   - Violations of constraints the client does know (a single-valued
//     attribute given several values, a value failing its syntax)
//     return an error, surfaced locally before any I/O.
//
// A required attribute that is missing, and an attribute the entry's
// known object classes do not allow, are reported as warnings, not
// errors.
//
// attrs maps attribute descriptions to value lists; a nil schema
// checks nothing.
func (s *Schema) ValidateEntry(attrs map[string][][]byte) (warnings []string, err error) {
	if s == nil {
		return nil, nil
	}

	classes := attrs["objectClass"]
	if classes == nil {
		for name, vals := range attrs {
			if strings.EqualFold(name, "objectClass") {
				classes = vals
				break
			}
		}
	}

	allowed := map[string]bool{"objectclass": true}
	required := map[string]bool{}
	knownClasses := true

	for _, class := range classes {
		oc := s.GetObjectClass(string(class))
		if oc == nil {
			warnings = append(warnings, fmt.Sprintf("unknown objectClass %q, allowed-attribute check skipped", class))
			knownClasses = false
			continue
		}
		for _, attr := range s.GetAllMustAttributes(oc.Name) {
			required[strings.ToLower(attr)] = true
			allowed[strings.ToLower(attr)] = true
		}
		for _, attr := range s.GetAllMayAttributes(oc.Name) {
			allowed[strings.ToLower(attr)] = true
		}
	}

	present := make(map[string]bool, len(attrs))
	for name := range attrs {
		present[strings.ToLower(name)] = true
	}
	for attr := range required {
		if !present[attr] {
			warnings = append(warnings, fmt.Sprintf("required attribute %q missing", attr))
		}
	}

	for name, values := range attrs {
		at := s.GetAttributeType(name)
		if at == nil {
			warnings = append(warnings, fmt.Sprintf("unknown attribute type %q, comparison degrades to octet equality", name))
			continue
		}

		if len(classes) > 0 && knownClasses && !allowed[strings.ToLower(name)] && !at.IsOperational() {
			warnings = append(warnings, fmt.Sprintf("attribute %q not allowed by the entry's object classes", name))
		}

		if at.SingleValue && len(values) > 1 {
			return warnings, &oerrors.InvalidValue{
				Attribute: name,
				Reason:    "single-valued attribute given multiple values",
			}
		}

		if syntaxOID := s.GetEffectiveSyntax(name); syntaxOID != "" {
			if syn := s.GetSyntax(syntaxOID); syn != nil {
				for _, v := range values {
					if !syn.Validate(v) {
						return warnings, &oerrors.InvalidSyntaxError{
							Syntax: syntaxOID,
							Value:  string(v),
						}
					}
				}
			}
		}
	}

	return warnings, nil
}
