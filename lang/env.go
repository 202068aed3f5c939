package lang

import (
	"context"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/stackcomp/scope"
)

// Func is a function callable from template expressions.
type Func func(c *Call, args ...any) (any, error)

// Call describes one invocation of a [Func].
type Call struct {
	// Context is the context of the evaluation in progress.
	Context context.Context
	// Name is the name the function was called by.
	Name string
	// Vars are the variables visible at the call site.
	Vars scope.Map

	r *renderer
}

// Evaluator returns the evaluator running the call.
func (c *Call) Evaluator() *Evaluator { return c.r.ev }

// Resolve returns the path of name relative to the calling template.
func (c *Call) Resolve(name string) string {
	return c.r.ev.loader.Resolve(c.r.tpl.dir(), name)
}

// Render renders the template named name relative to the calling
// template, with vars layered over the call-site variables.
func (c *Call) Render(name string, vars map[string]any) (string, error) {
	t, err := c.r.ev.loadFrom(c.r.tpl, name)
	if err != nil {
		return "", err
	}

	sub := c.r.nested(t)
	sub.push(vars)

	if err := sub.renderTemplate(t); err != nil {
		return "", err
	}

	return sub.out.String(), nil
}

// env builds the expr-lang environment for e: the projection of view onto
// the paths of e plus bindings for the functions e calls.
func (r *renderer) env(e *Expr, view scope.Map) (map[string]any, error) {
	if r.ev.mode == ModeStrict {
		for _, root := range e.roots {
			if _, ok := view.Get(root); ok {
				continue
			}

			if _, ok := r.ev.funcs[root]; ok {
				continue
			}

			return nil, ErrUnresolvedVariable.Wrapf(root).With(
				slog.String("name", root),
				slog.String("source", e.Source),
			)
		}
	}

	env, _ := scope.Project(view, e.Paths.segments())

	var call *Call

	for _, name := range e.Calls {
		if _, ok := env[name]; ok {
			continue
		}

		fn, ok := r.ev.funcs[name]
		if !ok {
			continue
		}

		if call == nil {
			call = &Call{Context: r.ctx, Vars: view, r: r}
		}

		c := *call
		c.Name = name

		env[name] = func(args ...any) (any, error) { return fn(&c, args...) }
	}

	return env, nil
}

// exec runs e against view. A non-nil machine is reused for the run.
func (r *renderer) exec(e *Expr, view scope.Map, machine *vm.VM) (any, error) {
	env, err := r.env(e, view)
	if err != nil {
		return nil, err
	}

	var out any

	if machine != nil {
		out, err = machine.Run(e.program, env)
	} else {
		out, err = expr.Run(e.program, env)
	}

	if err != nil {
		return nil, ErrExprEvaluate.Wrap(err).With(slog.String("source", e.Source))
	}

	return out, nil
}
