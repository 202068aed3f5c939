package assemble

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"dario.cat/mergo"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/crypt"
	"github.com/ardnew/stackcomp/lang"
	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/pkg"
	"github.com/ardnew/stackcomp/scope"
)

var (
	ErrOptions = pkg.NewError("invalid assemble options")
	ErrCycle   = pkg.NewError("cyclic configuration reference")
	ErrSink    = pkg.NewError("failed to write output")
)

// Options configures an [Assembler]. Zero fields take the values of
// [Defaults].
type Options struct {
	// Template is the path of the template to render.
	Template string
	// Root is the directory absolute template names resolve against.
	// Defaults to the directory containing Template.
	Root string
	// Configs are configuration documents merged in order, later entries
	// taking precedence.
	Configs []string
	// Secrets are encrypted configuration documents. They are decrypted with
	// Password and merged after Configs.
	Secrets []string
	// Password decrypts Secrets.
	Password string
	// Mode governs unresolved variables in the template and in dynamic
	// configuration values.
	Mode lang.Mode
	// MaxDepth bounds nested includes and template inheritance.
	MaxDepth int
	// Cryptor decrypts Secrets.
	Cryptor crypt.Cryptor
	// Cache holds compiled templates and memoized results. Sharing a cache
	// between assemblers with the same Mode reuses their work.
	Cache *lang.Cache
	// Logger receives trace output of the pass.
	Logger log.Logger
}

// Defaults returns the option values used for zero fields.
func Defaults() Options {
	return Options{
		Mode:     lang.ModeStrict,
		MaxDepth: lang.DefaultMaxDepth,
		Cryptor:  crypt.NewAES(),
	}
}

// Assembler runs assembly passes for one set of [Options].
type Assembler struct {
	opts Options
	eval *lang.Evaluator
}

// New returns an Assembler for opts.
func New(opts Options) (*Assembler, error) {
	if err := mergo.Merge(&opts, Defaults()); err != nil {
		return nil, ErrOptions.Wrap(err)
	}

	if opts.Root == "" && opts.Template != "" {
		opts.Root = filepath.Dir(opts.Template)
	}

	if len(opts.Secrets) > 0 && opts.Password == "" {
		return nil, ErrOptions.Wrap(crypt.ErrPassword).
			With(slog.Int("secrets", len(opts.Secrets)))
	}

	if opts.Cache == nil {
		opts.Cache = lang.NewCache()
	}

	eval := lang.New(
		lang.WithMode(opts.Mode),
		lang.WithCache(opts.Cache),
		lang.WithLoader(lang.NewLoader(opts.Root)),
		lang.WithLogger(opts.Logger),
		lang.WithMaxDepth(opts.MaxDepth),
	)

	return &Assembler{opts: opts, eval: eval}, nil
}

// Options returns the effective options of a.
func (a *Assembler) Options() Options { return a.opts }

// Evaluator returns the evaluator a renders with.
func (a *Assembler) Evaluator() *lang.Evaluator { return a.eval }

// Merged loads, decrypts and merges the configuration documents without
// resolving dynamic values.
func (a *Assembler) Merged(ctx context.Context) (config.Map, error) {
	docs, err := config.LoadAll(ctx, a.opts.Configs...)
	if err != nil {
		return nil, err
	}

	secrets, err := config.LoadAll(ctx, a.opts.Secrets...)
	if err != nil {
		return nil, err
	}

	layers := make([]any, 0, len(docs)+len(secrets))
	for _, d := range docs {
		layers = append(layers, d)
	}

	for i, s := range secrets {
		plain, err := crypt.DecryptConfig(a.opts.Cryptor, s, a.opts.Password,
			crypt.WithLogger(a.opts.Logger))
		if err != nil {
			return nil, pkg.AsError(err).With(slog.String("file", a.opts.Secrets[i]))
		}

		layers = append(layers, plain)
	}

	merged, err := config.Merge(layers...)
	if err != nil {
		return nil, err
	}

	a.opts.Logger.TraceContext(ctx, "merged configuration",
		slog.Int("configs", len(docs)),
		slog.Int("secrets", len(secrets)),
		slog.Int("keys", len(merged)),
	)

	return merged, nil
}

// Context returns the merged configuration with every dynamic value
// resolved.
func (a *Assembler) Context(ctx context.Context) (config.Map, error) {
	merged, err := a.Merged(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.Resolve(ctx, merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// Assemble renders the template against the resolved configuration and
// writes the output to sink. The sink is closed on every path.
func (a *Assembler) Assemble(ctx context.Context, sink io.WriteCloser) (err error) {
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = ErrSink.Wrap(cerr)
		}
	}()

	if a.opts.Template == "" {
		return ErrOptions.Wrapf("no template")
	}

	vars, err := a.Context(ctx)
	if err != nil {
		return err
	}

	return a.Render(ctx, sink, vars)
}

// Render renders the template against vars and writes the output to w.
func (a *Assembler) Render(ctx context.Context, w io.Writer, vars config.Map) error {
	t, err := a.eval.Load(a.templateName())
	if err != nil {
		return err
	}

	var buf strings.Builder

	if err := a.eval.Render(ctx, &buf, t, scope.Lazy(vars)); err != nil {
		return err
	}

	if _, err := io.WriteString(w, buf.String()); err != nil {
		return ErrSink.Wrap(err).With(slog.String("template", t.Name))
	}

	a.opts.Logger.DebugContext(ctx, "assembled template",
		slog.String("template", t.Name),
		slog.Int("bytes", buf.Len()),
	)

	return nil
}

// templateName returns the template path relative to the loader root.
func (a *Assembler) templateName() string {
	abs, err := filepath.Abs(a.opts.Template)
	if err != nil {
		return a.opts.Template
	}

	rel, err := filepath.Rel(a.eval.Loader().Root(), abs)
	if err != nil {
		return a.opts.Template
	}

	return rel
}
