package schema

import (
	"strings"

	oerrors "github.com/oba-ldap/oba/internal/errors"
)

// ParseAttributeTypeDefinition parses an RFC 4512 attribute type
// description. It is the exported entry point wrapping the package's
// internal tokenizer for callers that only want to parse, not register.
func ParseAttributeTypeDefinition(def string) (*AttributeType, error) {
	return parseAttributeType(def)
}

// ParseObjectClassDefinition parses an RFC 4512 object class description.
func ParseObjectClassDefinition(def string) (*ObjectClass, error) {
	return parseObjectClass(def)
}

// normalizeDef collapses whitespace runs so that two definition strings
// that differ only in spacing compare equal for idempotent registration.
func normalizeDef(def string) string {
	fields := strings.Fields(def)
	return strings.Join(fields, " ")
}

// RegisterAttributeType parses def and registers it. Registering an
// identical (OID + normalized definition) element a second time is a
// no-op; registering a different definition under an OID that is already
// registered fails SchemaConflict.
func (s *Schema) RegisterAttributeType(def string) error {
	at, err := parseAttributeType(def)
	if err != nil {
		return err
	}
	norm := normalizeDef(def)
	if existing, ok := s.attributeTypeDefs[at.OID]; ok {
		if existing == norm {
			return nil
		}
		return &oerrors.SchemaConflict{OID: at.OID, Reason: "attribute type redefined with different definition"}
	}
	if name := s.GetAttributeType(at.Name); name != nil && name.OID != at.OID {
		return &oerrors.SchemaConflict{OID: at.OID, Reason: "attribute type name " + at.Name + " already bound to OID " + name.OID}
	}
	s.ensureDefMaps()
	s.attributeTypeDefs[at.OID] = norm
	s.AddAttributeType(at)
	for _, n := range at.Names {
		s.AttributeTypes[n] = at
	}
	return nil
}

// RegisterObjectClass parses def and registers it with the same
// idempotent-or-conflict semantics as RegisterAttributeType.
func (s *Schema) RegisterObjectClass(def string) error {
	oc, err := parseObjectClass(def)
	if err != nil {
		return err
	}
	norm := normalizeDef(def)
	if existing, ok := s.objectClassDefs[oc.OID]; ok {
		if existing == norm {
			return nil
		}
		return &oerrors.SchemaConflict{OID: oc.OID, Reason: "object class redefined with different definition"}
	}
	if name := s.GetObjectClass(oc.Name); name != nil && name.OID != oc.OID {
		return &oerrors.SchemaConflict{OID: oc.OID, Reason: "object class name " + oc.Name + " already bound to OID " + name.OID}
	}
	s.ensureDefMaps()
	s.objectClassDefs[oc.OID] = norm
	s.AddObjectClass(oc)
	for _, n := range oc.Names {
		s.ObjectClasses[n] = oc
	}
	return nil
}

func (s *Schema) ensureDefMaps() {
	if s.attributeTypeDefs == nil {
		s.attributeTypeDefs = make(map[string]string)
	}
	if s.objectClassDefs == nil {
		s.objectClassDefs = make(map[string]string)
	}
}
