package scope

import (
	"slices"
)

// Project copies the parts of m addressed by paths into a plain map.
//
// Each path is walked one segment at a time. A segment whose parent is
// not keyed takes the parent whole, and the final segment of a path takes
// its value whole. A path that is a proper extension of another path in
// the set is redundant and ignored. The boolean result reports whether
// any segment was absent.
func Project(m Map, paths [][]string) (map[string]any, bool) {
	out := make(map[string]any)
	missing := false

	for _, p := range minimal(paths) {
		if !project(out, m, p) {
			missing = true
		}
	}

	return out, missing
}

func project(dst map[string]any, src Map, path []string) bool {
	key := path[0]

	v, ok := src.Get(key)
	if !ok {
		return false
	}

	if len(path) == 1 {
		dst[key] = Unwrap(v)

		return true
	}

	child, ok := viewOf(v)
	if !ok {
		dst[key] = Unwrap(v)

		return true
	}

	sub, ok := dst[key].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		dst[key] = sub
	}

	return project(sub, child, path[1:])
}

// minimal drops empty paths and paths having a proper prefix in the set.
func minimal(paths [][]string) [][]string {
	sorted := slices.Clone(paths)
	slices.SortFunc(sorted, func(a, b []string) int {
		return len(a) - len(b)
	})

	out := make([][]string, 0, len(sorted))

	for _, p := range sorted {
		if len(p) == 0 {
			continue
		}

		if !slices.ContainsFunc(out, func(q []string) bool {
			return len(q) < len(p) && slices.Equal(q, p[:len(q)])
		}) {
			out = append(out, p)
		}
	}

	return out
}
