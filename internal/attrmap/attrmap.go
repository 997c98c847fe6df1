// Package attrmap implements the per-entry attribute map: a
// case-insensitive, insertion-order-preserving mapping
// from attribute name to an ordered list of values, with value-list
// equality dispatched through a bound schema's matching rule when one is
// available. It pairs an ordered slice with a lookup index the way
// internal/schema's registry pairs a map with alias lookups.
package attrmap

import (
	"strings"

	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/schema"
)

// Value is a single attribute value: an octet string.
type Value []byte

// entry holds one attribute's name (original case, as first seen) and
// its ordered value list.
type entry struct {
	name   string
	values []Value
}

// Map is the per-entry attribute map. The zero value is
// an empty, unbound (schema-less) map ready to use.
type Map struct {
	order []string // lowercased keys, insertion order
	index map[string]*entry
	schm  *schema.Schema
}

// New returns an empty Map.
func New() *Map {
	return &Map{index: make(map[string]*entry)}
}

// BindSchema attaches a schema for equality dispatch; nil unbinds,
// reverting to octet equality.
func (m *Map) BindSchema(s *schema.Schema) {
	m.schm = s
}

func (m *Map) ensure() {
	if m.index == nil {
		m.index = make(map[string]*entry)
	}
}

func (m *Map) equal(name string, a, b Value) bool {
	return schema.EqualForAttribute(m.schm, name, a, b)
}

// Equal reports whether a and b are equal values of attribute name under
// this map's bound equality matching rule (octet equality if unbound).
// Exported for internal/modify's dedup/presence checks, which need the
// same equality the map itself uses for Add/Delete.
func (m *Map) Equal(name string, a, b Value) bool {
	return m.equal(name, a, b)
}

// Names returns the attribute names in insertion order, using each
// attribute's originally-inserted case.
func (m *Map) Names() []string {
	out := make([]string, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.index[k].name)
	}
	return out
}

// Get returns the values for name, or nil if absent. The returned slice
// is a copy.
func (m *Map) Get(name string) []Value {
	m.ensure()
	e, ok := m.index[strings.ToLower(name)]
	if !ok {
		return nil
	}
	out := make([]Value, len(e.values))
	copy(out, e.values)
	return out
}

// Has reports whether name is present with at least one value.
func (m *Map) Has(name string) bool {
	m.ensure()
	e, ok := m.index[strings.ToLower(name)]
	return ok && len(e.values) > 0
}

// Set replaces all values of name with values, dropping duplicates under
// the bound equality rule. Passing no values removes the attribute.
func (m *Map) Set(name string, values ...Value) error {
	for _, v := range values {
		if IsDeleteAll(v) {
			return &oerrors.InvalidValue{Attribute: name, Reason: "DELETE_ALL sentinel cannot be inserted as a value"}
		}
	}
	m.ensure()
	key := strings.ToLower(name)
	if len(values) == 0 {
		m.remove(key)
		return nil
	}
	deduped := m.dedupe(name, values)
	if e, ok := m.index[key]; ok {
		e.values = deduped
		return nil
	}
	m.index[key] = &entry{name: name, values: deduped}
	m.order = append(m.order, key)
	return nil
}

// Add appends values to name's value list. Adding a value already
// present under the equality rule is a no-op for that value.
func (m *Map) Add(name string, values ...Value) error {
	for _, v := range values {
		if IsDeleteAll(v) {
			return &oerrors.InvalidValue{Attribute: name, Reason: "DELETE_ALL sentinel cannot be inserted as a value"}
		}
	}
	m.ensure()
	key := strings.ToLower(name)
	e, ok := m.index[key]
	if !ok {
		e = &entry{name: name}
		m.index[key] = e
		m.order = append(m.order, key)
	}
	for _, v := range values {
		if !m.containsValue(e, name, v) {
			e.values = append(e.values, v)
		}
	}
	return nil
}

// Delete removes values from name's value list; values not present are
// ignored. If values is empty, the whole attribute is removed.
func (m *Map) Delete(name string, values ...Value) {
	m.ensure()
	key := strings.ToLower(name)
	e, ok := m.index[key]
	if !ok {
		return
	}
	if len(values) == 0 {
		m.remove(key)
		return
	}
	kept := e.values[:0:0]
	for _, existing := range e.values {
		drop := false
		for _, v := range values {
			if m.equal(name, existing, v) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		m.remove(key)
		return
	}
	e.values = kept
}

func (m *Map) remove(key string) {
	if _, ok := m.index[key]; !ok {
		return
	}
	delete(m.index, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Map) containsValue(e *entry, name string, v Value) bool {
	for _, existing := range e.values {
		if m.equal(name, existing, v) {
			return true
		}
	}
	return false
}

func (m *Map) dedupe(name string, values []Value) []Value {
	out := make([]Value, 0, len(values))
	for _, v := range values {
		dup := false
		for _, seen := range out {
			if m.equal(name, seen, v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a deep copy of m, including its schema binding.
func (m *Map) Clone() *Map {
	out := New()
	out.schm = m.schm
	for _, key := range m.order {
		e := m.index[key]
		vals := make([]Value, len(e.values))
		copy(vals, e.values)
		out.order = append(out.order, key)
		out.index[key] = &entry{name: e.name, values: vals}
	}
	return out
}
