package scope

import (
	"log/slog"
	"maps"
	"slices"
)

// Resolver is a two-tier view preferring its root delegate over its local
// delegate.
type Resolver struct {
	root, local Map
	writable    bool
	localAccess bool
}

// Option configures a [Resolver].
type Option func(*Resolver)

// Writable permits [Resolver.Put] and [Resolver.PutAll], which write through
// to the root delegate.
func Writable() Option { return func(r *Resolver) { r.writable = true } }

// LocalAccess enables the reserved [LocalAccessKey].
func LocalAccess() Option { return func(r *Resolver) { r.localAccess = true } }

// New returns a Resolver over root and local.
// Both delegates are required; use [Empty] for an empty tier.
func New(root, local Map, opts ...Option) (*Resolver, error) {
	if root == nil || local == nil {
		return nil, ErrNilDelegate.With(
			slog.Bool("root", root != nil),
			slog.Bool("local", local != nil),
		)
	}

	r := &Resolver{root: root, local: local}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Root returns the root delegate.
func (r *Resolver) Root() Map { return r.root }

// Local returns the local delegate.
func (r *Resolver) Local() Map { return r.local }

// Get returns the root value for key if defined, else the local value.
//
// With local access enabled, [LocalAccessKey] returns the local delegate
// itself unless either delegate defines that key literally. A nested
// Resolver naming its own local delegate does not count as a literal
// definition. Missing keys are reported by the boolean result, never as an
// error.
func (r *Resolver) Get(key string) (any, bool) {
	if r.localAccess && key == LocalAccessKey {
		if v, ok := literal(r.root, key); ok {
			return v, true
		}

		if v, ok := literal(r.local, key); ok {
			return v, true
		}

		return r.local, true
	}

	if v, ok := r.root.Get(key); ok {
		return v, true
	}

	return r.local.Get(key)
}

// literal looks key up in m, bypassing local access in nested resolvers.
func literal(m Map, key string) (any, bool) {
	r, ok := m.(*Resolver)
	if !ok {
		return m.Get(key)
	}

	if v, ok := literal(r.root, key); ok {
		return v, true
	}

	return literal(r.local, key)
}

// Keys returns the sorted union of both delegates' keys.
func (r *Resolver) Keys() []string {
	set := make(map[string]struct{})

	for _, k := range r.root.Keys() {
		set[k] = struct{}{}
	}

	for _, k := range r.local.Keys() {
		set[k] = struct{}{}
	}

	return slices.Sorted(maps.Keys(set))
}

// Put stores value under key in the root delegate.
// It fails with [ErrUnsupported] unless the Resolver is writable and the
// root delegate implements [Writer].
func (r *Resolver) Put(key string, value any) error {
	w, err := r.writer()
	if err != nil {
		return err
	}

	return w.Put(key, value)
}

// PutAll stores every entry of m in the root delegate.
func (r *Resolver) PutAll(m map[string]any) error {
	w, err := r.writer()
	if err != nil {
		return err
	}

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if err := w.Put(k, m[k]); err != nil {
			return err
		}
	}

	return nil
}

func (r *Resolver) writer() (Writer, error) {
	if !r.writable {
		return nil, ErrUnsupported.Wrapf("resolver is read-only")
	}

	w, ok := r.root.(Writer)
	if !ok {
		return nil, ErrUnsupported.Wrapf("root delegate is read-only")
	}

	return w, nil
}
