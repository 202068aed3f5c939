package scope

import (
	"maps"
	"slices"
)

// lazy wraps a plain map so that nested maps read through it are wrapped
// in turn rather than copied.
type lazy map[string]any

// Lazy returns v as a [Map] whose nested maps are wrapped on read.
// A value that is already a Map is returned as is. Anything else yields nil.
func Lazy(v any) Map {
	switch m := v.(type) {
	case Map:
		return m
	case map[string]any:
		return lazy(m)
	}

	return nil
}

func (l lazy) Get(key string) (any, bool) {
	v, ok := l[key]
	if !ok {
		return nil, false
	}

	if m, ok := v.(map[string]any); ok {
		return lazy(m), true
	}

	return v, true
}

func (l lazy) Keys() []string { return slices.Sorted(maps.Keys(l)) }

// viewOf reports v as a Map when it is keyed.
func viewOf(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case map[string]any:
		return lazy(m), true
	}

	return nil, false
}

// Unwrap materializes v into plain maps, slices and scalars.
// Views are read through their Keys and Get methods. Plain maps and slices
// are copied so the result never aliases the source.
func Unwrap(v any) any {
	switch x := v.(type) {
	case Map:
		keys := x.Keys()
		out := make(map[string]any, len(keys))

		for _, k := range keys {
			if e, ok := x.Get(k); ok {
				out[k] = Unwrap(e)
			}
		}

		return out

	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Unwrap(e)
		}

		return out

	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Unwrap(e)
		}

		return out
	}

	return v
}
