package oba

import (
	"context"

	"github.com/oba-ldap/oba/internal/attrmap"
	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/filter"
	"github.com/oba-ldap/oba/internal/ldap"
	"github.com/oba-ldap/oba/internal/modify"

	obadn "github.com/oba-ldap/oba/internal/dn"
)

// RelativeScope is an object's default search scope for Find and its
// relative-search conventions.
type RelativeScope int

const (
	RelativeBase RelativeScope = iota
	RelativeOne
	RelativeSub
)

// Object is a local mutable view of a directory entry bound to a
// connection and a DN: it integrates the modification planner
// (internal/modify) and offers
// relative-search convenience methods (Find, GetChild). The zero value is
// not usable; construct one with Conn.Object.
type Object struct {
	dn            obadn.DN
	attrs         *attrmap.Map
	relativeScope RelativeScope
	conn          *Conn
	complete      bool
}

func newObject(conn *Conn, dn string, relativeScope RelativeScope) (*Object, error) {
	parsed, err := obadn.Parse(dn)
	if err != nil {
		return nil, err
	}
	attrs := attrmap.New()
	if s := conn.Schema(); s != nil {
		attrs.BindSchema(s)
	}
	return &Object{dn: parsed, attrs: attrs, relativeScope: relativeScope, conn: conn}, nil
}

// DN returns the object's distinguished name in RFC 4514 canonical form.
func (o *Object) DN() string { return o.dn.String() }

// Attributes returns the object's local attribute map. It reflects server
// state only for attributes a prior Refresh, a successful Modify, or the
// Find or GetChild search that produced this object has populated;
// Object.Search does not change it. See Complete.
func (o *Object) Attributes() *attrmap.Map { return o.attrs }

// Complete reports whether the local attribute map is known to reflect
// server state for every attribute of interest. The modification planner
// skips its pre-fetch when this is true.
func (o *Object) Complete() bool { return o.complete }

// SetComplete marks whether the local attribute map should be trusted as
// authoritative by the modification planner, bypassing its pre-fetch.
func (o *Object) SetComplete(complete bool) { o.complete = complete }

// Refresh issues a base-scoped search for attrs (or all user attributes if
// attrs is empty) and replaces the object's local attribute map with the
// result, marking it complete for the attributes requested.
func (o *Object) Refresh(ctx context.Context, attrs []string) error {
	fetched, err := o.fetch(ctx, attrs)
	if err != nil {
		return err
	}
	o.attrs = fetched
	if s := o.conn.Schema(); s != nil {
		o.attrs.BindSchema(s)
	}
	o.complete = true
	return nil
}

// fetch performs the base-scoped pre-fetch search the modification
// planner (and Refresh) use to learn current server state for a subset of
// attribute names.
func (o *Object) fetch(ctx context.Context, attrs []string) (*attrmap.Map, error) {
	handle, err := o.conn.Search(ctx, SearchOptions{
		BaseDN:     o.dn.String(),
		Scope:      ScopeBaseObject,
		FilterTree: presentObjectClassFilter,
		Attributes: attrs,
	})
	if err != nil {
		return nil, err
	}
	out := attrmap.New()
	for item := range handle.Items {
		if item.Err != nil {
			return nil, item.Err
		}
		if item.Entry != nil {
			for _, a := range item.Entry.Attributes {
				vals := make([]attrmap.Value, len(a.Values))
				for i, v := range a.Values {
					vals[i] = attrmap.Value(v)
				}
				_ = out.Set(a.Type, vals...)
			}
		}
	}
	return out, nil
}

var presentObjectClassFilter = &filter.Filter{Type: filter.FilterPresent, Attribute: "objectClass"}

// Search performs a search using this object's DN as the base.
func (o *Object) Search(ctx context.Context, scope SearchScope, filterStr string, attrs []string, controls []Control) (*SearchHandle, error) {
	return o.conn.Search(ctx, SearchOptions{
		BaseDN:     o.dn.String(),
		Scope:      scope,
		Filter:     filterStr,
		Attributes: attrs,
		Controls:   controls,
	})
}

// Add creates this object on the server with the given attributes.
// When the connection has a schema bound, the attributes are validated
// first: locally-detectable violations (single-value, syntax) fail
// before any I/O, while unknown schema elements only log warnings,
// since the server is authoritative.
func (o *Object) Add(ctx context.Context, attrs []Attribute, controls []Control) error {
	if s := o.conn.Schema(); s != nil {
		byName := make(map[string][][]byte, len(attrs))
		for _, a := range attrs {
			byName[a.Type] = append(byName[a.Type], a.Values...)
		}
		warnings, err := s.ValidateEntry(byName)
		if logger := o.conn.Config().Logger; logger != nil {
			for _, w := range warnings {
				logger.Warn("schema check: "+w, "dn", o.dn.String())
			}
		}
		if err != nil {
			return err
		}
	}
	return o.conn.Add(ctx, o.dn.String(), attrs, controls)
}

// Delete removes this entry from the server.
func (o *Object) Delete(ctx context.Context, controls []Control) error {
	return o.conn.Delete(ctx, o.dn.String(), controls)
}

// ModifyDN renames and/or reparents this entry; on success the object's
// own DN is updated to match.
func (o *Object) ModifyDN(ctx context.Context, newRDN string, deleteOldRDN bool, newSuperior string, controls []Control) error {
	if err := o.conn.ModifyDN(ctx, o.dn.String(), newRDN, deleteOldRDN, newSuperior, controls); err != nil {
		return err
	}
	newDNStr := newRDN
	if newSuperior != "" {
		newDNStr = newRDN + "," + newSuperior
	} else if parent, ok := o.dn.Parent(); ok {
		newDNStr = newRDN + "," + parent.String()
	}
	parsed, err := obadn.Parse(newDNStr)
	if err == nil {
		o.dn = parsed
	}
	return nil
}

// Compare issues a CompareRequest against this object's DN.
func (o *Object) Compare(ctx context.Context, attribute string, value []byte, controls []Control) (bool, error) {
	return o.conn.Compare(ctx, o.dn.String(), attribute, value, controls)
}

// Modify applies a high-level modification request through the planner:
// non-strict by default (dedup against known or queried state), strict
// when the bound connection's DefaultsConfig requests it.
// On success the object's local attribute map is updated to mirror the
// applied change.
func (o *Object) Modify(ctx context.Context, req ModifyRequest, controls []Control) error {
	changes, err := modify.Plan(ctx, req, o.attrs, o.complete, o.fetch, o.conn.Config())
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	if err := o.conn.Modify(ctx, o.dn.String(), changes, controls); err != nil {
		return err
	}
	return modify.ApplyLocal(o.attrs, req)
}

// Find locates a child entry matching rdn, searching with one-level scope
// if this object's RelativeScope is RelativeOne, or the whole subtree
// otherwise.
func (o *Object) Find(ctx context.Context, rdn string, attrs []string, controls []Control) (*Object, error) {
	scope := ScopeWholeSubtree
	if o.relativeScope == RelativeOne {
		scope = ScopeSingleLevel
	}
	f, err := rdnFilter(rdn)
	if err != nil {
		return nil, err
	}
	return o.searchForChild(ctx, o.dn.String(), scope, f, attrs, controls)
}

// GetChild performs a base-scoped search at the DN composed of rdn and
// this object's DN.
func (o *Object) GetChild(ctx context.Context, rdn string, attrs []string, controls []Control) (*Object, error) {
	childDN, err := obadn.Parse(rdn + "," + o.dn.String())
	if err != nil {
		return nil, err
	}
	return o.searchForChild(ctx, childDN.String(), ScopeBaseObject, presentObjectClassFilter, attrs, controls)
}

func (o *Object) searchForChild(ctx context.Context, baseDN string, scope SearchScope, f *filter.Filter, attrs []string, controls []Control) (*Object, error) {
	handle, err := o.conn.Search(ctx, SearchOptions{
		BaseDN:     baseDN,
		Scope:      scope,
		FilterTree: f,
		Attributes: attrs,
		Controls:   controls,
	})
	if err != nil {
		return nil, err
	}

	var found *ldap.SearchResultEntry
	for item := range handle.Items {
		if item.Err != nil {
			return nil, item.Err
		}
		if item.Entry != nil && found == nil {
			found = item.Entry
		}
	}
	if found == nil {
		return nil, &oerrors.OperationFailed{
			ResultCode: int(ldap.ResultNoSuchObject),
			ResultName: ldap.ResultNoSuchObject.String(),
		}
	}

	child, err := newObject(o.conn, found.ObjectName, o.relativeScope)
	if err != nil {
		return nil, err
	}
	for _, a := range found.Attributes {
		vals := make([]attrmap.Value, len(a.Values))
		for i, v := range a.Values {
			vals[i] = attrmap.Value(v)
		}
		_ = child.attrs.Set(a.Type, vals...)
	}
	child.complete = true
	return child, nil
}

// rdnFilter turns a bare RDN string ("uid=foo" or a multi-valued
// "uid=foo+cn=bar") into an equality filter (ANDed across AVAs for a
// multi-valued RDN), by parsing it as a single-RDN DN and reusing its AVAs
// rather than hand-rolling a second escaping grammar.
func rdnFilter(rdn string) (*filter.Filter, error) {
	parsed, err := obadn.Parse(rdn)
	if err != nil {
		return nil, err
	}
	rdns := parsed.RDNs()
	if len(rdns) != 1 {
		return nil, &oerrors.InvalidDN{Input: rdn, Reason: "Find expects a single RDN, not a full DN"}
	}
	avas := rdns[0].Attributes
	if len(avas) == 1 {
		return &filter.Filter{Type: filter.FilterEquality, Attribute: avas[0].Type, Value: []byte(avas[0].Value)}, nil
	}
	children := make([]*filter.Filter, 0, len(avas))
	for _, a := range avas {
		children = append(children, &filter.Filter{Type: filter.FilterEquality, Attribute: a.Type, Value: []byte(a.Value)})
	}
	return &filter.Filter{Type: filter.FilterAnd, Children: children}, nil
}
