package lang

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ardnew/stackcomp/scope"
)

// elementVar names the element under test inside a predicate.
const elementVar = "it"

type predicateKind int

const (
	predFilter predicateKind = iota
	predFirst
	predAny
	predAll
	predNone
)

// Filter returns the elements of input satisfying pred.
//
// Maps yield a map of the matching entries and sequences a list of the
// matching elements. A scalar yields itself when it matches, else nil.
// Each element is bound to "it" over vars, and "_" names vars itself. Map
// elements are bound as an entry with "key" and "value" attributes.
func (e *Evaluator) Filter(ctx context.Context, input any, pred string, vars scope.Map) (any, error) {
	return e.predicate(ctx, predFilter, input, pred, vars)
}

// First returns the first element of input satisfying pred, or nil.
// For maps the result is a single-entry map.
func (e *Evaluator) First(ctx context.Context, input any, pred string, vars scope.Map) (any, error) {
	return e.predicate(ctx, predFirst, input, pred, vars)
}

// Any reports whether some element of input satisfies pred.
func (e *Evaluator) Any(ctx context.Context, input any, pred string, vars scope.Map) (bool, error) {
	v, err := e.predicate(ctx, predAny, input, pred, vars)

	return v == true, err
}

// All reports whether every element of input satisfies pred.
func (e *Evaluator) All(ctx context.Context, input any, pred string, vars scope.Map) (bool, error) {
	v, err := e.predicate(ctx, predAll, input, pred, vars)

	return v == true, err
}

// None reports whether no element of input satisfies pred.
func (e *Evaluator) None(ctx context.Context, input any, pred string, vars scope.Map) (bool, error) {
	v, err := e.predicate(ctx, predNone, input, pred, vars)

	return v == true, err
}

func (e *Evaluator) predicate(
	ctx context.Context,
	kind predicateKind,
	input any,
	pred string,
	vars scope.Map,
) (any, error) {
	if pred == "" {
		return input, nil
	}

	if vars == nil {
		vars = scope.Empty
	}

	t, err := e.Compile("{{ " + pred + " }}")
	if err != nil {
		return nil, err
	}

	if t.single() == nil {
		return nil, ErrArgument.Wrapf("predicate must be a single expression").
			With(slog.String("predicate", pred))
	}

	test := func(elem any) (bool, error) {
		view, err := scope.New(scope.Values{
			elementVar:           elem,
			scope.LocalAccessKey: vars,
		}, vars)
		if err != nil {
			return false, err
		}

		v, err := e.Execute(ctx, t, view)
		if err != nil {
			return false, err
		}

		b, ok := v.(bool)
		if !ok {
			return false, ErrTypeMismatch.Wrapf("predicate result is not a boolean").With(
				slog.String("predicate", pred),
				slog.String("type", fmt.Sprintf("%T", v)),
			)
		}

		return b, nil
	}

	if input == nil {
		switch kind {
		case predAny:
			return false, nil
		case predAll, predNone:
			return true, nil
		}

		return nil, nil
	}

	keyed := isKeyed(input)

	items, err := iterate(input)
	if err != nil {
		// scalars are tested as themselves
		ok, err := test(input)
		if err != nil {
			return nil, err
		}

		switch kind {
		case predFilter, predFirst:
			if ok {
				return input, nil
			}

			return nil, nil
		case predNone:
			return !ok, nil
		}

		return ok, nil
	}

	var (
		list []any
		dict map[string]any
	)

	if kind == predFilter {
		if keyed {
			dict = make(map[string]any)
		} else {
			list = make([]any, 0, len(items))
		}
	}

	for _, it := range items {
		elem := it.value
		if keyed {
			elem = map[string]any{"key": it.key, "value": it.value}
		}

		ok, err := test(elem)
		if err != nil {
			return nil, err
		}

		switch kind {
		case predFilter:
			if !ok {
				continue
			}

			if keyed {
				dict[it.key.(string)] = it.value
			} else {
				list = append(list, it.value)
			}
		case predFirst:
			if !ok {
				continue
			}

			if keyed {
				return map[string]any{it.key.(string): it.value}, nil
			}

			return it.value, nil
		case predAny:
			if ok {
				return true, nil
			}
		case predAll:
			if !ok {
				return false, nil
			}
		case predNone:
			if ok {
				return false, nil
			}
		}
	}

	switch kind {
	case predFilter:
		if keyed {
			return dict, nil
		}

		return list, nil
	case predFirst:
		return nil, nil
	case predAny:
		return false, nil
	}

	return true, nil
}
