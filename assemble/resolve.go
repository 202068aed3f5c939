package assemble

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/lang"
	"github.com/ardnew/stackcomp/pkg"
	"github.com/ardnew/stackcomp/scope"
)

// dynamic is a configuration value that is itself a template.
type dynamic struct {
	path []string
	tmpl *lang.Template
}

func (d *dynamic) key() string { return strings.Join(d.path, ".") }

// Resolve replaces every dynamic string value of cfg with its evaluation
// against cfg. A value is evaluated after every other dynamic value it
// reads, so it observes their resolved form. Values that read themselves,
// directly or through other values, fail with [ErrCycle].
//
// A result produced by expand is restored to its structured form.
func (a *Assembler) Resolve(ctx context.Context, cfg config.Map) error {
	var dyn []*dynamic

	err := config.Walk(cfg, func(l config.Leaf) error {
		s, ok := l.Value.(string)
		if !ok || !lang.IsDynamic(s) {
			return nil
		}

		t, err := a.eval.Compile(s)
		if err != nil {
			return pkg.AsError(err).With(slog.String("key", l.String()))
		}

		dyn = append(dyn, &dynamic{path: l.Path, tmpl: t})

		return nil
	})
	if err != nil {
		return err
	}

	order, err := sortDynamic(dyn)
	if err != nil {
		return err
	}

	view := scope.Lazy(cfg)

	for _, d := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, err := a.eval.Execute(ctx, d.tmpl, view)
		if err != nil {
			return pkg.AsError(err).With(slog.String("key", d.key()))
		}

		v = config.Normalize(scope.Unwrap(v))

		if s, ok := v.(string); ok {
			x, expanded, err := lang.Unexpand(s)
			if err != nil {
				return pkg.AsError(err).With(slog.String("key", d.key()))
			}

			if expanded {
				v = x
			}
		}

		if err := config.Set(cfg, v, d.path...); err != nil {
			return err
		}

		a.opts.Logger.TraceContext(ctx, "resolved value", slog.String("key", d.key()))
	}

	return nil
}

// sortDynamic orders values so that each follows the values it reads.
// Among values ready at the same time, configuration order is kept.
func sortDynamic(dyn []*dynamic) ([]*dynamic, error) {
	pending := make([]int, len(dyn))
	users := make([][]int, len(dyn))

	for i, d := range dyn {
		for j, e := range dyn {
			if reads(d.tmpl.Paths, e.path) {
				users[j] = append(users[j], i)
				pending[i]++
			}
		}
	}

	var (
		ready []int
		order = make([]*dynamic, 0, len(dyn))
	)

	for i, n := range pending {
		if n == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, dyn[i])

		for _, u := range users[i] {
			if pending[u]--; pending[u] == 0 {
				ready = append(ready, u)
				slices.Sort(ready)
			}
		}
	}

	if len(order) == len(dyn) {
		return order, nil
	}

	var keys []string

	for i, n := range pending {
		if n > 0 {
			keys = append(keys, dyn[i].key())
		}
	}

	return nil, ErrCycle.With(slog.Any("keys", keys))
}

// reads reports whether any of paths reads the value at target: either the
// value itself, a container holding it, or something inside it.
func reads(paths lang.Paths, target []string) bool {
	for _, p := range paths {
		n := min(len(p), len(target))
		if slices.Equal([]string(p[:n]), target[:n]) {
			return true
		}
	}

	return false
}
