package oba

import (
	"github.com/oba-ldap/oba/internal/attrmap"
	"github.com/oba-ldap/oba/internal/client"
	"github.com/oba-ldap/oba/internal/filter"
	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/modify"
)

// Search scope, aliased from internal/ldap so callers
// never need an internal import to build a SearchOptions.
type SearchScope = ldap.SearchScope

const (
	ScopeBaseObject   = ldap.ScopeBaseObject
	ScopeSingleLevel  = ldap.ScopeSingleLevel
	ScopeWholeSubtree = ldap.ScopeWholeSubtree
)

// DerefAliases controls alias dereferencing during a search (RFC 4511 §4.5.1.2).
type DerefAliases = ldap.DerefAliases

const (
	DerefNever          = ldap.DerefNever
	DerefInSearching    = ldap.DerefInSearching
	DerefFindingBaseObj = ldap.DerefFindingBaseObj
	DerefAlways         = ldap.DerefAlways
)

// Control is an out-of-band operation/response modifier.
type Control = ldap.Control

// Attribute is a wire-level {type, values} pair, used when building a raw
// AddRequest's entry attributes.
type Attribute = ldap.Attribute

// Modification is one atomic element of a ModifyRequest's change list:
// the output of the modification planner and the input
// internal/client.Modify sends as-is.
type Modification = ldap.Modification
type ModifyOperationType = ldap.ModifyOperation

const (
	ModifyOpAdd     = ldap.ModifyOperationAdd
	ModifyOpDelete  = ldap.ModifyOperationDelete
	ModifyOpReplace = ldap.ModifyOperationReplace
)

// SearchOptions describes a search request.
type SearchOptions = client.SearchOptions

// SearchHandle streams a search's results: Items delivers entries/references/intermediate responses
// terminated by an item with Done or Err set.
type SearchHandle = client.SearchHandle

// StreamItem is one element of a SearchHandle's Items channel.
type StreamItem = client.StreamItem

// ConnState is the connection lifecycle state.
type ConnState = client.State

const (
	StateOpening = client.StateOpening
	StateOpen    = client.StateOpen
	StateBound   = client.StateBound
	StateClosing = client.StateClosing
	StateClosed  = client.StateClosed
)

// RootDSE is the subset of root DSE operational attributes the connection
// probes at Dial time.
type RootDSE = client.RootDSE

// SASLProvider is the external SASL mechanism contract the connection
// drives through the RFC 4513 bind/challenge loop.
type SASLProvider = client.SASLProvider

// ExternalSASL returns a SASLProvider for the EXTERNAL mechanism, the
// default for ldapi:// connections, with an optional authorization
// identity.
func ExternalSASL(authzID string) SASLProvider {
	return &client.ExternalProvider{AuthzID: authzID}
}

// FilterTree is a parsed filter AST, produced by ParseFilter
// and accepted directly by SearchOptions.FilterTree to skip re-parsing.
type FilterTree = filter.Filter

// ParseFilter parses a filter string under mode. The mode zero value
// (FilterModeStandard) matches RFC 4515 only; pass FilterModeUnified for
// the unified grammar.
func ParseFilter(s string, mode FilterMode) (*FilterTree, error) {
	return filter.ParseMode(s, mode)
}

// RenderFilter renders f back to its RFC 4515 textual form; canonical
// controls value escaping only: when true every byte outside printable
// ASCII is hex-escaped, otherwise only '*', '(', ')' and '\' are.
func RenderFilter(f *FilterTree, canonical bool) string {
	return filter.Render(f, canonical)
}

// AttrValues is the polymorphic modification-list value: a concrete value list, or DeleteAll.
type AttrValues = attrmap.AttrValues

// Value is a single attribute value octet string.
type Value = attrmap.Value

// Concrete builds an AttrValues holding an explicit value list.
func Concrete(values ...Value) AttrValues { return attrmap.Concrete(values...) }

// ConcreteStrings builds an AttrValues from string values.
func ConcreteStrings(values ...string) AttrValues { return attrmap.ConcreteStrings(values...) }

// DeleteAll is the DELETE_ALL sentinel: "all current values of
// this attribute", valid wherever a delete/replace target is accepted.
var DeleteAll = attrmap.All

// AttributeMap is the per-entry attribute map: case
// insensitive, insertion-order preserving, with value-list equality
// dispatched through a bound schema's matching rule.
type AttributeMap = attrmap.Map

// NewAttributeMap returns an empty AttributeMap.
func NewAttributeMap() *AttributeMap { return attrmap.New() }

// ModifyRequest is the modification planner's input: exactly
// one of the Add/Delete/Replace/Raw-producing constructors below should be
// used to build it.
type ModifyRequest = modify.Request

// AddAttrs builds a ModifyRequest for the add_attrs path.
func AddAttrs(attrs map[string]AttrValues) ModifyRequest { return modify.AddAttrs(attrs) }

// DeleteAttrs builds a ModifyRequest for the delete_attrs path.
func DeleteAttrs(attrs map[string]AttrValues) ModifyRequest { return modify.DeleteAttrs(attrs) }

// ReplaceAttrs builds a ModifyRequest for the replace_attrs path.
func ReplaceAttrs(attrs map[string]AttrValues) ModifyRequest { return modify.ReplaceAttrs(attrs) }

// RawModify builds a ModifyRequest for the raw path: passed straight
// through to the wire, no server query, no dedup.
func RawModify(mods ...RawMod) ModifyRequest { return modify.RawRequest(mods) }

// RawMod is one element of the raw modification path.
type RawMod = modify.RawMod

// ModOp is a modification planner operation (add/delete/replace).
type ModOp = modify.Op

const (
	ModAdd     = modify.OpAdd
	ModDelete  = modify.OpDelete
	ModReplace = modify.OpReplace
)
