package oba

import "github.com/oba-ldap/oba/internal/schema"

// Schema is the schema registry: attribute types, object classes, syntax
// rules, and matching rules, indexed by OID and by name. A Conn may have
// one bound via BindSchema; an unbound connection falls back to octet
// equality everywhere a matching rule would apply.
type Schema = schema.Schema

// NewSchema returns an empty Schema with no registered elements.
func NewSchema() *Schema { return schema.NewSchema() }

// DefaultSchema returns the built-in schema preloaded with the standard
// syntaxes, matching rules, attribute types, and object classes common
// to general-purpose directory servers.
func DefaultSchema() *Schema { return schema.LoadDefaultSchema() }

// ParseAttributeTypeDefinition parses a single RFC 4512 AttributeTypeDescription.
func ParseAttributeTypeDefinition(def string) (*schema.AttributeType, error) {
	return schema.ParseAttributeTypeDefinition(def)
}

// ParseObjectClassDefinition parses a single RFC 4512 ObjectClassDescription.
func ParseObjectClassDefinition(def string) (*schema.ObjectClass, error) {
	return schema.ParseObjectClassDefinition(def)
}
