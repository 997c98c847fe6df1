// Package modify implements the modification planner: it turns a
// high-level add/delete/replace request into a minimal, server-safe
// sequence of atomic modification elements, optionally consulting the
// server (via a supplied Fetcher) to avoid redundant or impossible
// changes, by diffing the desired state against a known or queried
// attrmap.Map and emitting the wire-level change list.
package modify

import (
	"context"
	"sort"

	"github.com/oba-ldap/oba/internal/attrmap"
	"github.com/oba-ldap/oba/internal/client"
	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/logging"
)

// Op is the modification planner's own operation enum, independent of the
// wire-level ldap.ModifyOperation so that callers never need to import
// internal/ldap to build a Request.
type Op int

const (
	OpAdd Op = iota
	OpDelete
	OpReplace
)

func (o Op) wire() ldap.ModifyOperation {
	switch o {
	case OpDelete:
		return ldap.ModifyOperationDelete
	case OpReplace:
		return ldap.ModifyOperationReplace
	default:
		return ldap.ModifyOperationAdd
	}
}

// RawMod is one element of the raw path: passed through to the wire unchanged, no server
// query, no dedup.
type RawMod struct {
	Op     Op
	Attr   string
	Values attrmap.AttrValues
}

// Request is the planner's input: exactly one of Raw, Add, Delete, or
// Replace should be set. The per-attribute AttrValues sum type already expresses
// DELETE_ALL, so Delete and
// Replace share the same map shape as Add.
type Request struct {
	Raw     []RawMod
	Add     map[string]attrmap.AttrValues
	Delete  map[string]attrmap.AttrValues
	Replace map[string]attrmap.AttrValues
}

// AddAttrs builds a Request for the add_attrs path.
func AddAttrs(attrs map[string]attrmap.AttrValues) Request { return Request{Add: attrs} }

// DeleteAttrs builds a Request for the delete_attrs path.
func DeleteAttrs(attrs map[string]attrmap.AttrValues) Request { return Request{Delete: attrs} }

// ReplaceAttrs builds a Request for the replace_attrs path.
func ReplaceAttrs(attrs map[string]attrmap.AttrValues) Request { return Request{Replace: attrs} }

// RawRequest builds a Request for the raw path.
func RawRequest(mods []RawMod) Request { return Request{Raw: mods} }

// Fetcher performs the base-scoped search pre-fetch for a subset of
// attribute names, restricted to just the attributes the planner needs.
// Supplied by object.go, backed by Connection.Search.
type Fetcher func(ctx context.Context, attrs []string) (*attrmap.Map, error)

// Plan builds the atomic modifyRequest change list for req.
//
//   - If req.Raw is set, it is passed through unchanged (no query, no dedup).
//   - Otherwise, if cfg.Strict, the high-level request is emitted exactly as
//     given (no pre-fetch, no dedup).
//   - Otherwise (the non-strict default), known/complete/fetch resolve the
//     current server state for the referenced attributes, and the planner
//     drops adds already present and deletes not present, skipping a
//     modification entirely when nothing survives.
//
// known is the object's current local attribute map (may be nil); complete
// reports whether it already reflects server state for every attribute of
// interest, in which case fetch is never called.
func Plan(ctx context.Context, req Request, known *attrmap.Map, complete bool, fetch Fetcher, cfg client.Config) ([]ldap.Modification, error) {
	if len(req.Raw) > 0 {
		return rawChanges(req.Raw)
	}
	if cfg.Strict {
		return strictChanges(req, cfg)
	}
	return nonStrictChanges(ctx, req, known, complete, fetch, cfg)
}

func rawChanges(mods []RawMod) ([]ldap.Modification, error) {
	out := make([]ldap.Modification, 0, len(mods))
	for _, m := range mods {
		out = append(out, ldap.Modification{
			Operation: m.Op.wire(),
			Attribute: ldap.Attribute{Type: m.Attr, Values: wireValues(m.Values)},
		})
	}
	return out, nil
}

func strictChanges(req Request, cfg client.Config) ([]ldap.Modification, error) {
	var out []ldap.Modification
	for _, attr := range sortedKeys(req.Add) {
		av := req.Add[attr]
		if av.IsAll() {
			return nil, &oerrors.InvalidValue{Attribute: attr, Reason: "DELETE_ALL is not valid for an add modification"}
		}
		out = append(out, ldap.Modification{Operation: ldap.ModifyOperationAdd, Attribute: ldap.Attribute{Type: attr, Values: wireValues(av)}})
	}
	for _, attr := range sortedKeys(req.Delete) {
		out = append(out, ldap.Modification{Operation: ldap.ModifyOperationDelete, Attribute: ldap.Attribute{Type: attr, Values: wireValues(req.Delete[attr])}})
	}
	for _, attr := range sortedKeys(req.Replace) {
		mod, emit, err := replaceModification(attr, req.Replace[attr], cfg)
		if err != nil {
			return nil, err
		}
		if emit {
			out = append(out, mod)
		}
	}
	return out, nil
}

func nonStrictChanges(ctx context.Context, req Request, known *attrmap.Map, complete bool, fetch Fetcher, cfg client.Config) ([]ldap.Modification, error) {
	switch {
	case req.Add != nil:
		state, err := resolveState(ctx, sortedKeys(req.Add), known, complete, fetch)
		if err != nil {
			return nil, err
		}
		return planAdd(req.Add, state)
	case req.Delete != nil:
		state, err := resolveState(ctx, sortedKeys(req.Delete), known, complete, fetch)
		if err != nil {
			return nil, err
		}
		return planDelete(req.Delete, state)
	case req.Replace != nil:
		// Replace is emitted as-is regardless of strict mode; no
		// pre-fetch needed since nothing is deduped against existing
		// state.
		return replaceChanges(req.Replace, cfg)
	default:
		return nil, nil
	}
}

func planAdd(req map[string]attrmap.AttrValues, state *attrmap.Map) ([]ldap.Modification, error) {
	var out []ldap.Modification
	for _, attr := range sortedKeys(req) {
		av := req[attr]
		if av.IsAll() {
			return nil, &oerrors.InvalidValue{Attribute: attr, Reason: "DELETE_ALL is not valid for an add modification"}
		}
		surviving := surviving(state, attr, av.Values())
		if len(surviving) == 0 {
			continue
		}
		out = append(out, ldap.Modification{
			Operation: ldap.ModifyOperationAdd,
			Attribute: ldap.Attribute{Type: attr, Values: toWire(surviving)},
		})
	}
	return out, nil
}

func planDelete(req map[string]attrmap.AttrValues, state *attrmap.Map) ([]ldap.Modification, error) {
	var out []ldap.Modification
	for _, attr := range sortedKeys(req) {
		av := req[attr]
		if av.IsAll() {
			out = append(out, ldap.Modification{
				Operation: ldap.ModifyOperationDelete,
				Attribute: ldap.Attribute{Type: attr, Values: nil},
			})
			continue
		}
		present := presentValues(state, attr, av.Values())
		if len(present) == 0 {
			continue
		}
		out = append(out, ldap.Modification{
			Operation: ldap.ModifyOperationDelete,
			Attribute: ldap.Attribute{Type: attr, Values: toWire(present)},
		})
	}
	return out, nil
}

func replaceChanges(req map[string]attrmap.AttrValues, cfg client.Config) ([]ldap.Modification, error) {
	var out []ldap.Modification
	for _, attr := range sortedKeys(req) {
		mod, emit, err := replaceModification(attr, req[attr], cfg)
		if err != nil {
			return nil, err
		}
		if emit {
			out = append(out, mod)
		}
	}
	return out, nil
}

// replaceModification applies the empty-value-list policy to a single replace element. DELETE_ALL is an
// explicit, intentional instruction and always bypasses the policy; an
// empty concrete list is the ambiguous case the policy resolves.
func replaceModification(attr string, av attrmap.AttrValues, cfg client.Config) (ldap.Modification, bool, error) {
	if !av.IsAll() && len(av.Values()) == 0 {
		switch cfg.EmptyValuePolicy {
		case client.EmptyValueError:
			return ldap.Modification{}, false, &oerrors.InvalidValue{Attribute: attr, Reason: "empty replace value list"}
		case client.EmptyValueWarn:
			logger := cfg.Logger
			if logger == nil {
				logger = logging.NewNop()
			}
			logger.Warn("dropping replace modification with empty value list", "attribute", attr)
			return ldap.Modification{}, false, nil
		default: // EmptyValueIgnore
			return ldap.Modification{}, false, nil
		}
	}
	return ldap.Modification{
		Operation: ldap.ModifyOperationReplace,
		Attribute: ldap.Attribute{Type: attr, Values: wireValues(av)},
	}, true, nil
}

// resolveState returns the attribute state the planner should dedup
// against: known as-is if it already carries complete state for the
// referenced attributes, otherwise a fresh pre-fetch restricted to names.
func resolveState(ctx context.Context, names []string, known *attrmap.Map, complete bool, fetch Fetcher) (*attrmap.Map, error) {
	if complete && known != nil {
		return known, nil
	}
	if fetch == nil {
		if known != nil {
			return known, nil
		}
		return attrmap.New(), nil
	}
	return fetch(ctx, names)
}

// surviving returns the subset of requested not already present in
// state[attr] under the bound equality rule, also deduping within
// requested itself.
func surviving(state *attrmap.Map, attr string, requested []attrmap.Value) []attrmap.Value {
	existing := state.Get(attr)
	out := make([]attrmap.Value, 0, len(requested))
	for _, v := range requested {
		dup := false
		for _, e := range existing {
			if state.Equal(attr, e, v) {
				dup = true
				break
			}
		}
		for _, o := range out {
			if state.Equal(attr, o, v) {
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

// presentValues returns the subset of requested that does appear in
// state[attr] under the bound equality rule.
func presentValues(state *attrmap.Map, attr string, requested []attrmap.Value) []attrmap.Value {
	existing := state.Get(attr)
	out := make([]attrmap.Value, 0, len(requested))
	for _, v := range requested {
		for _, e := range existing {
			if state.Equal(attr, e, v) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

func wireValues(av attrmap.AttrValues) [][]byte {
	if av.IsAll() {
		return nil
	}
	return toWire(av.Values())
}

func toWire(values []attrmap.Value) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out
}

func sortedKeys(m map[string]attrmap.AttrValues) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ApplyLocal mirrors a successfully-applied Request into m, using
// the same add/delete/replace semantics attrmap.Map already implements
// rather than re-deriving them from the wire change list the planner sent.
func ApplyLocal(m *attrmap.Map, req Request) error {
	if len(req.Raw) > 0 {
		for _, mod := range req.Raw {
			if err := applyOne(m, mod.Op, mod.Attr, mod.Values); err != nil {
				return err
			}
		}
		return nil
	}
	for _, attr := range sortedKeys(req.Add) {
		if err := applyOne(m, OpAdd, attr, req.Add[attr]); err != nil {
			return err
		}
	}
	for _, attr := range sortedKeys(req.Delete) {
		if err := applyOne(m, OpDelete, attr, req.Delete[attr]); err != nil {
			return err
		}
	}
	for _, attr := range sortedKeys(req.Replace) {
		if err := applyOne(m, OpReplace, attr, req.Replace[attr]); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(m *attrmap.Map, op Op, attr string, av attrmap.AttrValues) error {
	switch op {
	case OpAdd:
		return m.Add(attr, av.Values()...)
	case OpDelete:
		if av.IsAll() {
			m.Delete(attr)
			return nil
		}
		m.Delete(attr, av.Values()...)
		return nil
	case OpReplace:
		if av.IsAll() || len(av.Values()) == 0 {
			m.Delete(attr)
			return nil
		}
		return m.Set(attr, av.Values()...)
	default:
		return nil
	}
}
