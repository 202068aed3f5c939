package config

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/ardnew/stackcomp/pkg"
)

// Map is a configuration tree node.
type Map = map[string]any

var (
	ErrTypeMismatch = pkg.NewError("type mismatch")
	ErrReadConfig   = pkg.NewError("failed to read configuration")
	ErrFormat       = pkg.NewError("unsupported configuration format")
	ErrMarshal      = pkg.NewError("failed to marshal configuration")
)

// AsMap reports whether v is a map node, normalizing non-string-keyed maps.
func AsMap(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case map[any]any:
		n, _ := Normalize(m).(Map)

		return n, true
	default:
		return nil, false
	}
}

// Clone returns a deep copy of v. Maps and slices are copied; scalars are
// returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case Map:
		out := make(Map, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}

		return out
	case map[any]any:
		return Normalize(t)
	default:
		return v
	}
}

// Normalize converts decoder output into the canonical node types: every
// map becomes a [Map] with string keys and every slice becomes []any.
// Integers become int64, except unsigned values beyond its range.
func Normalize(v any) any {
	switch t := v.(type) {
	case Map:
		out := make(Map, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}

		return out
	case map[any]any:
		out := make(Map, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}

		return out
	case []Map:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}

		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return t
		}

		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// Get returns the value at path in m. Path segments index maps by key and
// lists by decimal index.
func Get(m Map, path ...string) (any, bool) {
	var cur any = m

	for _, seg := range path {
		switch node := cur.(type) {
		case Map:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}

			cur = v
		case []any:
			var i int
			if _, err := fmt.Sscan(seg, &i); err != nil || i < 0 || i >= len(node) {
				return nil, false
			}

			cur = node[i]
		default:
			return nil, false
		}
	}

	return cur, true
}

// Set replaces the value at path in m. Every segment but the last must
// already exist; lists are indexed by decimal index.
func Set(m Map, v any, path ...string) error {
	if len(path) == 0 {
		return ErrTypeMismatch.Wrapf("empty path")
	}

	parent, ok := Get(m, path[:len(path)-1]...)
	if !ok {
		return ErrTypeMismatch.Wrapf("no such path").
			With(slog.String("path", strings.Join(path, ".")))
	}

	last := path[len(path)-1]

	switch node := parent.(type) {
	case Map:
		node[last] = v
	case []any:
		var i int
		if _, err := fmt.Sscan(last, &i); err != nil || i < 0 || i >= len(node) {
			return ErrTypeMismatch.Wrapf("no such index").
				With(slog.String("path", strings.Join(path, ".")))
		}

		node[i] = v
	default:
		return ErrTypeMismatch.Wrapf("not a container").
			With(slog.String("path", strings.Join(path, ".")))
	}

	return nil
}

// Leaf is a scalar value visited by [Walk] along with its path.
type Leaf struct {
	Path  []string
	Value any
}

// String returns the dotted path of the leaf.
func (l Leaf) String() string { return strings.Join(l.Path, ".") }

// Walk calls fn for every scalar leaf of v in deterministic order (sorted
// map keys, list order). Walking stops at the first error returned by fn.
func Walk(v any, fn func(Leaf) error) error {
	return walk(nil, v, fn)
}

func walk(path []string, v any, fn func(Leaf) error) error {
	switch t := v.(type) {
	case Map:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			if err := walk(append(slices.Clip(path), k), t[k], fn); err != nil {
				return err
			}
		}

		return nil
	case []any:
		for i, e := range t {
			if err := walk(append(slices.Clip(path), fmt.Sprint(i)), e, fn); err != nil {
				return err
			}
		}

		return nil
	default:
		return fn(Leaf{Path: path, Value: v})
	}
}
