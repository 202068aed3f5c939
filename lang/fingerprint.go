package lang

import (
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/ardnew/stackcomp/scope"
)

// Fingerprint identifies the values a template reads from a context.
// Contexts that agree at every path of a template produce equal
// fingerprints for it.
type Fingerprint = xxh3.Uint128

// fingerprint projects vars onto the paths of t and hashes the result.
// The boolean result reports whether any free path was absent, in which
// case the fingerprint must not be memoized.
//
// Variables bound by t itself are included when the context defines them,
// since root values shadow local ones, but their absence is not a miss.
// Neither is the absence of the local access key, which then names the
// template's own frames.
func fingerprint(t *Template, vars scope.Map) (Fingerprint, bool) {
	var free, local [][]string

	for _, p := range t.Paths {
		if p.Root() == scope.LocalAccessKey {
			local = append(local, p)
		} else {
			free = append(free, p)
		}
	}

	proj, missing := scope.Project(vars, free)

	if len(local) > 0 {
		if _, ok := vars.Get(scope.LocalAccessKey); ok {
			sub, _ := scope.Project(vars, local)
			maps.Copy(proj, sub)
		}
	}

	for _, name := range t.Bound {
		if v, ok := vars.Get(name); ok {
			proj[name] = scope.Unwrap(v)
		}
	}

	h := xxh3.New()
	encode(h, proj)

	return h.Sum128(), missing
}

// encode writes a canonical, self-delimiting encoding of v to h. Map keys
// are written in sorted order.
func encode(h *xxh3.Hasher, v any) {
	var buf [9]byte

	tag := func(b byte) { _, _ = h.Write([]byte{b}) }

	u64 := func(b byte, x uint64) {
		buf[0] = b
		binary.LittleEndian.PutUint64(buf[1:], x)
		_, _ = h.Write(buf[:])
	}

	str := func(b byte, s string) {
		u64(b, uint64(len(s)))
		_, _ = h.WriteString(s)
	}

	switch x := v.(type) {
	case nil:
		tag('n')
	case bool:
		if x {
			tag('t')
		} else {
			tag('f')
		}
	case string:
		str('s', x)
	case int:
		u64('i', uint64(x))
	case int64:
		u64('i', uint64(x))
	case uint64:
		u64('u', x)
	case float64:
		u64('d', math.Float64bits(x))
	case map[string]any:
		u64('m', uint64(len(x)))

		for _, k := range slices.Sorted(maps.Keys(x)) {
			str('k', k)
			encode(h, x[k])
		}
	case []any:
		u64('l', uint64(len(x)))

		for _, e := range x {
			encode(h, e)
		}
	case scope.Map:
		encode(h, scope.Unwrap(x))
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			u64('l', uint64(rv.Len()))

			for i := range rv.Len() {
				encode(h, rv.Index(i).Interface())
			}

			return
		}

		str('x', fmt.Sprintf("%T", v)+":"+fmt.Sprint(v))
	}
}

// formatFingerprint returns fp in a compact printable form for logs.
func formatFingerprint(fp Fingerprint) string {
	return strconv.FormatUint(fp.Hi, 36) + strconv.FormatUint(fp.Lo, 36)
}
