package lang

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/scope"
)

// Mode selects how unresolved variables are treated.
type Mode int

const (
	// ModeStrict fails on a variable that is missing from the context.
	ModeStrict Mode = iota
	// ModeLenient resolves missing variables and attributes to nil.
	ModeLenient
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeLenient {
		return "lenient"
	}

	return "strict"
}

// predicateArg lists the functions whose second argument is a predicate
// source evaluated against the caller's variables.
var predicateArg = map[string]struct{}{
	"where":     {},
	"findFirst": {},
	"anyMatch":  {},
	"allMatch":  {},
	"noneMatch": {},
}

// volatileCall lists the functions whose results depend on more than
// their arguments and the context.
var volatileCall = map[string]struct{}{
	"env":              {},
	"generatePassword": {},
	"readFile":         {},
	"readFileBase64":   {},
	"readTemplate":     {},
	"script":           {},
	"runScript":        {},
}

// volatileBuiltin lists the expr-lang builtins with the same property.
var volatileBuiltin = map[string]struct{}{
	"now": {},
}

type compiler struct {
	mode   Mode
	logger log.Logger
}

// template parses and compiles a template source.
func (c compiler) template(name, src string) (*Template, error) {
	nodes, err := parseNodes(name, src, c.expr)
	if err != nil {
		return nil, err
	}

	t := newTemplate(name, src, nodes)

	c.logger.Trace("compile template",
		slog.String("name", name),
		slog.Int("nodes", len(nodes)),
		slog.Any("paths", t.Paths.Strings()),
		slog.Bool("cacheable", t.Cacheable()),
	)

	return t, nil
}

// expr parses, analyzes and compiles one expression.
func (c compiler) expr(src string, _ int) (*Expr, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, ErrExprCompile.Wrap(err).With(slog.String("source", src))
	}

	paths, calls, volatile, err := inspect(tree.Node)
	if err != nil {
		return nil, err
	}

	var opts []expr.Option
	if c.mode == ModeLenient {
		opts = append(opts, expr.Patch(&lenientPatcher{logger: c.logger}))
	}

	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, ErrExprCompile.Wrap(err).With(slog.String("source", src))
	}

	e := &Expr{
		Source:   src,
		Tree:     tree.Node,
		Paths:    paths,
		Calls:    calls,
		roots:    paths.Roots(),
		volatile: volatile,
		program:  program,
	}

	return e, nil
}

// inspect analyzes an expression tree. Besides the paths of the tree
// itself, it adds the caller paths read by literal predicate arguments,
// and reports whether the expression is volatile.
func inspect(node ast.Node) (Paths, []string, bool, error) {
	a := newAnalyzer()
	a.root(node)

	calls := make(map[string]struct{})
	volatile := false

	for _, name := range a.builtins {
		if _, ok := volatileBuiltin[name]; ok {
			volatile = true
		}
	}

	for _, call := range a.calls {
		id, ok := call.Callee.(*ast.IdentifierNode)
		if !ok {
			continue
		}

		calls[id.Value] = struct{}{}

		if _, ok := volatileCall[id.Value]; ok {
			volatile = true
		}

		if _, ok := predicateArg[id.Value]; !ok || len(call.Arguments) < 2 {
			continue
		}

		lit, ok := call.Arguments[1].(*ast.StringNode)
		if !ok {
			volatile = true

			continue
		}

		tree, err := parser.Parse(lit.Value)
		if err != nil {
			return nil, nil, false, ErrExprCompile.Wrap(err).
				With(slog.String("predicate", lit.Value))
		}

		inner, innerCalls, v, err := inspect(tree.Node)
		if err != nil {
			return nil, nil, false, err
		}

		volatile = volatile || v

		for _, name := range innerCalls {
			calls[name] = struct{}{}
		}

		for _, p := range inner {
			switch p.Root() {
			case elementVar:
			case scope.LocalAccessKey:
				if len(p) == 1 {
					volatile = true
				} else {
					a.paths.add(p[1:])
				}
			default:
				a.paths.add(p)
			}
		}
	}

	return a.paths.sorted(), slices.Sorted(maps.Keys(calls)), volatile, nil
}
