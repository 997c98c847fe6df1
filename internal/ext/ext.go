// Package ext implements the extension-registration namespace: a
// build-time registry of extension name -> constructor, resolved at Dial
// time into a name-keyed table of method namespaces on the connection.
package ext

import "sync"

// Constructor builds an extension's namespace value bound to a host (a
// *client.Connection in practice; typed as any here to avoid an import
// cycle between internal/ext and internal/client, which constructs the
// registry's host).
type Constructor func(host any) any

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

// Register adds a build-time extension under name. Intended to be called
// from package init() functions. Re-registering the same name overwrites
// silently, matching an init-time, not runtime, registration discipline.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// Registry is a connection-scoped, immutable snapshot of the build-time
// registry, instantiated once per connection so that each namespace value
// is bound to that one connection.
type Registry struct {
	host        any
	ctors       map[string]Constructor
	namespaces  map[string]any
	constructed map[string]bool
}

// NewRegistry snapshots the current build-time registry for host.
// Namespace values are constructed lazily on first Lookup, not eagerly,
// since most connections only use a handful of the registered extensions.
func NewRegistry(host any) *Registry {
	mu.RLock()
	defer mu.RUnlock()
	ctors := make(map[string]Constructor, len(registry))
	for k, v := range registry {
		ctors[k] = v
	}
	return &Registry{
		host:        host,
		namespaces:  make(map[string]any),
		constructed: make(map[string]bool),
		ctors:       ctors,
	}
}

// Lookup returns the named extension's namespace value, constructing it
// on first use, and whether the name is registered.
func (r *Registry) Lookup(name string) (any, bool) {
	if r.constructed[name] {
		return r.namespaces[name], true
	}
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, false
	}
	ns := ctor(r.host)
	r.namespaces[name] = ns
	r.constructed[name] = true
	return ns, true
}

// Names returns the registered extension names available to this
// registry, in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	return out
}
