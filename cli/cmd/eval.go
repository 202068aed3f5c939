package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/lang"
	"github.com/ardnew/stackcomp/pkg"
	"github.com/ardnew/stackcomp/scope"
)

// Eval evaluates expressions against the resolved configuration.
type Eval struct {
	Layers `embed:""`

	Exprs []string `arg:"" help:"Expression(s) or templates to evaluate" name:"expr"`
}

// Run executes the eval command.
func (e *Eval) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	asm, err := e.assembler("")
	if err != nil {
		return err
	}

	vars, err := asm.Context(ctx)
	if err != nil {
		return err
	}

	out := stdout(ctx)
	view := scope.Lazy(vars)

	for _, expr := range e.Exprs {
		v, err := asm.Evaluator().Value(ctx, asTemplate(expr), view)
		if err != nil {
			return pkg.AsError(err).With(slog.String("expr", expr))
		}

		s, err := format(ctx, scope.Unwrap(v))
		if err != nil {
			return err
		}

		fmt.Fprintln(out, s)
	}

	return nil
}

// Deps prints the configuration paths read by expressions or templates.
type Deps struct {
	Exprs []string `arg:"" help:"Expression(s) or templates to analyze" name:"expr"`
	Roots bool     `       help:"Print only the top-level keys"`
}

// Run executes the deps command.
func (d *Deps) Run(ctx context.Context) error {
	out := stdout(ctx)

	for _, expr := range d.Exprs {
		paths, err := lang.AnalyzeSource(asTemplate(expr))
		if err != nil {
			return pkg.AsError(err).With(slog.String("expr", expr))
		}

		names := paths.Strings()
		if d.Roots {
			names = paths.Roots()
		}

		for _, name := range names {
			fmt.Fprintln(out, name)
		}
	}

	return nil
}

// asTemplate wraps input without template tags into a single print.
func asTemplate(input string) string {
	if lang.IsDynamic(input) {
		return input
	}

	return "{{ " + input + " }}"
}

// format renders strings verbatim and everything else as YAML.
func format(ctx context.Context, v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}

	data, err := config.Marshal(ctx, config.Normalize(v), config.FormatYAML, 2)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(string(data), "\n"), nil
}
