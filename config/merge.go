package config

import (
	"fmt"
	"log/slog"
)

// Merge deep-merges docs in order into a new [Map].
//
// Where both sides hold a map at the same key the maps are merged
// recursively. Any other combination is a replacement by the later value,
// so lists are never concatenated and a map over a scalar (or a scalar over
// a map) replaces it entirely. Nil documents are skipped; any other
// non-map document fails with [ErrTypeMismatch].
//
// The inputs are never modified and the result shares no maps or slices
// with them.
func Merge(docs ...any) (Map, error) {
	out := make(Map)

	for i, doc := range docs {
		if doc == nil {
			continue
		}

		m, ok := AsMap(doc)
		if !ok {
			return nil, ErrTypeMismatch.
				Wrapf("configuration document is not a map").
				With(slog.Int("index", i), slog.String("type", fmt.Sprintf("%T", doc)))
		}

		mergeInto(out, m)
	}

	return out, nil
}

// mergeInto merges src into dst. Every map reachable from dst is owned by
// the merge result.
func mergeInto(dst, src Map) {
	for k, sv := range src {
		sm, ok := AsMap(sv)
		if !ok {
			dst[k] = Clone(sv)

			continue
		}

		if dm, ok := dst[k].(Map); ok {
			mergeInto(dm, sm)

			continue
		}

		dst[k] = Clone(sm)
	}
}
