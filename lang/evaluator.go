package lang

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/pkg"
	"github.com/ardnew/stackcomp/scope"
)

// Evaluator compiles and evaluates templates against variable contexts,
// memoizing results by the values each template reads.
//
// The [Mode] is fixed at construction. An Evaluator is safe for concurrent
// use when its [Cache] is.
type Evaluator struct {
	cache    *Cache
	compiler compiler
	mode     Mode
	funcs    map[string]Func
	custom   map[string]struct{}
	loader   *Loader
	logger   log.Logger
	maxDepth int
}

// Option configures an [Evaluator].
type Option func(*Evaluator)

// Strict makes unresolved variables fail with [ErrUnresolvedVariable].
// This is the default.
func Strict() Option { return func(e *Evaluator) { e.mode = ModeStrict } }

// Lenient makes unresolved variables and attributes evaluate to nil.
func Lenient() Option { return func(e *Evaluator) { e.mode = ModeLenient } }

// WithMode sets the mode.
func WithMode(m Mode) Option { return func(e *Evaluator) { e.mode = m } }

// WithCache sets the cache shared by the evaluator.
func WithCache(c *Cache) Option { return func(e *Evaluator) { e.cache = c } }

// WithLoader sets the loader used for named templates and files.
func WithLoader(l *Loader) Option { return func(e *Evaluator) { e.loader = l } }

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithFuncs adds functions to the function table, replacing any of the
// same name. Templates calling these functions are never memoized.
func WithFuncs(funcs map[string]Func) Option {
	return func(e *Evaluator) {
		maps.Copy(e.funcs, funcs)

		for name := range funcs {
			e.custom[name] = struct{}{}
		}
	}
}

// WithMaxDepth bounds nested includes and template inheritance.
func WithMaxDepth(depth int) Option {
	return func(e *Evaluator) { e.maxDepth = depth }
}

// New returns an Evaluator with the builtin function table.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		funcs:    Builtins(),
		custom:   make(map[string]struct{}),
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cache == nil {
		e.cache = NewCache()
	}

	if e.loader == nil {
		e.loader = NewLoader("")
	}

	e.compiler = compiler{mode: e.mode, logger: e.logger}

	return e
}

// Mode returns the evaluator's mode.
func (e *Evaluator) Mode() Mode { return e.mode }

// Cache returns the evaluator's cache.
func (e *Evaluator) Cache() *Cache { return e.cache }

// Loader returns the evaluator's loader.
func (e *Evaluator) Loader() *Loader { return e.loader }

// Stats returns a snapshot of the cache counters.
func (e *Evaluator) Stats() Stats { return e.cache.Stats() }

// Compile returns the compiled form of an inline template source.
func (e *Evaluator) Compile(src string) (*Template, error) {
	t, hit, err := e.cache.template(sourceKey(e.mode, src), func() (*Template, error) {
		return e.compiler.template("", src)
	})

	e.logger.Trace("template lookup", slog.Bool("cache_hit", hit))

	return t, err
}

// Load returns the compiled template named name, resolved by the loader.
func (e *Evaluator) Load(name string) (*Template, error) {
	return e.loadFrom(nil, name)
}

func (e *Evaluator) loadFrom(from *Template, name string) (*Template, error) {
	path := e.loader.Resolve(from.dir(), name)

	t, hit, err := e.cache.template(fileKey(e.mode, path), func() (*Template, error) {
		src, err := e.loader.Read(path)
		if err != nil {
			return nil, err
		}

		return e.compiler.template(path, src)
	})

	e.logger.Trace("template lookup",
		slog.String("path", path),
		slog.Bool("cache_hit", hit),
	)

	return t, err
}

// Evaluate evaluates each named template source against vars and returns
// the results by name. Sources are evaluated in name order and the first
// error aborts the call.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	named map[string]string,
	vars scope.Map,
) (map[string]any, error) {
	out := make(map[string]any, len(named))

	for _, name := range slices.Sorted(maps.Keys(named)) {
		v, err := e.Value(ctx, named[name], vars)
		if err != nil {
			return nil, pkg.AsError(err).With(slog.String("name", name))
		}

		out[name] = v
	}

	return out, nil
}

// Value evaluates one inline template source against vars.
func (e *Evaluator) Value(ctx context.Context, src string, vars scope.Map) (any, error) {
	t, err := e.Compile(src)
	if err != nil {
		return nil, err
	}

	return e.Execute(ctx, t, vars)
}

// Execute evaluates t against vars.
//
// A template made of a single print evaluates to the value of its
// expression; any other template evaluates to its rendered text. Results
// of cacheable templates are memoized by [Fingerprint] unless a path was
// missing from vars.
func (e *Evaluator) Execute(ctx context.Context, t *Template, vars scope.Map) (any, error) {
	if vars == nil {
		vars = scope.Empty
	}

	if t.Static() {
		return t.text(), nil
	}

	if !t.Cacheable() || e.callsCustom(t) {
		return e.run(ctx, t, vars)
	}

	fp, missing := fingerprint(t, vars)
	key := memoKey{unit: t, fp: fp}

	if v, ok := e.cache.lookup(key); ok {
		e.cache.hits.Add(1)
		e.logger.TraceContext(ctx, "memo hit",
			slog.String("template", t.Name),
			slog.String("fingerprint", formatFingerprint(fp)),
		)

		return scope.Unwrap(v), nil
	}

	e.cache.misses.Add(1)

	v, err := e.run(ctx, t, vars)
	if err != nil {
		return nil, err
	}

	if missing {
		e.logger.TraceContext(ctx, "memo skip",
			slog.String("template", t.Name),
			slog.String("reason", "missing path"),
		)

		return v, nil
	}

	e.cache.store(key, scope.Unwrap(v))

	return v, nil
}

// callsCustom reports whether t calls a function added by [WithFuncs].
func (e *Evaluator) callsCustom(t *Template) bool {
	for _, name := range t.Calls {
		if _, ok := e.custom[name]; ok {
			return true
		}
	}

	return false
}

// Render renders t against vars and writes the text to w.
func (e *Evaluator) Render(ctx context.Context, w io.Writer, t *Template, vars scope.Map) error {
	v, err := e.Execute(ctx, t, vars)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, toString(v))

	return err
}

func (e *Evaluator) run(ctx context.Context, t *Template, vars scope.Map) (any, error) {
	e.cache.renders.Add(1)

	r := e.newRenderer(ctx, t, vars)

	if x := t.single(); x != nil {
		v, err := r.eval(x)
		if err != nil {
			return nil, r.errorf(err, t.Nodes[0])
		}

		return v, nil
	}

	if err := r.renderTemplate(t); err != nil {
		return nil, err
	}

	e.logger.TraceContext(ctx, "rendered",
		slog.String("template", t.Name),
		slog.Int("bytes", r.out.Len()),
	)

	return r.out.String(), nil
}
