package scope

import (
	"maps"
	"slices"

	"github.com/ardnew/stackcomp/pkg"
)

// LocalAccessKey is the reserved key that names the local view of a
// [Resolver] as a whole.
const LocalAccessKey = "_"

var (
	ErrUnsupported = pkg.NewError("unsupported operation")
	ErrNilDelegate = pkg.NewError("nil delegate")
)

// Map is a read-only key/value view.
type Map interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) (any, bool)
	// Keys returns the defined keys in sorted order.
	Keys() []string
}

// Writer is a [Map] that accepts writes.
type Writer interface {
	Map
	Put(key string, value any) error
}

// Values adapts a plain map to [Writer].
type Values map[string]any

// Of returns m as a [Values] view. A nil map yields an empty view.
func Of(m map[string]any) Values {
	if m == nil {
		return Values{}
	}

	return Values(m)
}

func (v Values) Get(key string) (any, bool) {
	x, ok := v[key]

	return x, ok
}

func (v Values) Keys() []string { return slices.Sorted(maps.Keys(v)) }

func (v Values) Put(key string, value any) error {
	v[key] = value

	return nil
}

// Empty is a read-only view with no keys.
var Empty Map = empty{}

type empty struct{}

func (empty) Get(string) (any, bool) { return nil, false }

func (empty) Keys() []string { return nil }
