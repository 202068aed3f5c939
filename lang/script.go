package lang

import (
	"log/slog"
	"sync"

	"github.com/expr-lang/expr/vm"
	"github.com/zeebo/xxh3"

	"github.com/ardnew/stackcomp/scope"
)

// ScriptExt is appended to script paths that do not name a file.
const ScriptExt = ".expr"

// scriptUnit is a compiled script. Runs of one unit are serialized since
// they share a virtual machine.
type scriptUnit struct {
	id   string
	expr *Expr

	mu      sync.Mutex
	machine vm.VM
}

// scriptFile returns the unit for the script at path, trying path and
// then path with [ScriptExt].
func (e *Evaluator) scriptFile(path string) (*scriptUnit, error) {
	if !e.loader.Exists(path) && e.loader.Exists(path+ScriptExt) {
		path += ScriptExt
	}

	u, hit, err := e.cache.script(e.mode.String()+":file:"+path, func() (*scriptUnit, error) {
		src, err := e.loader.Read(path)
		if err != nil {
			return nil, err
		}

		return e.compileScript(path, src)
	})

	e.logger.Trace("script lookup", slog.String("path", path), slog.Bool("cache_hit", hit))

	return u, err
}

// scriptSource returns the unit for an inline script.
func (e *Evaluator) scriptSource(src string) (*scriptUnit, error) {
	id := xxh3.HashString128(src)
	key := e.mode.String() + ":src:" + formatFingerprint(id)

	u, hit, err := e.cache.script(key, func() (*scriptUnit, error) {
		return e.compileScript("<inline>", src)
	})

	e.logger.Trace("script lookup", slog.String("key", key), slog.Bool("cache_hit", hit))

	return u, err
}

func (e *Evaluator) compileScript(id, src string) (*scriptUnit, error) {
	x, err := e.compiler.expr(src, 1)
	if err != nil {
		return nil, ErrScript.Wrap(err).With(slog.String("script", id))
	}

	return &scriptUnit{id: id, expr: x}, nil
}

// run executes u for the call c. A map with binds its entries by name,
// and with itself is bound to the element variable. Bindings take
// precedence over the variables at the call site.
func (u *scriptUnit) run(c *Call, with any) (any, error) {
	bindings := scope.Values{}

	if m, ok := asMap(with); ok {
		for k, v := range m {
			bindings[k] = v
		}
	}

	bindings[elementVar] = with

	view, err := scope.New(bindings, c.Vars, scope.LocalAccess())
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	c.r.ev.logger.TraceContext(c.Context, "run script",
		slog.String("script", u.id),
		slog.Int("bindings", len(bindings)),
	)

	out, err := c.r.exec(u.expr, view, &u.machine)
	if err != nil {
		return nil, ErrScript.Wrap(err).With(slog.String("script", u.id))
	}

	return out, nil
}
