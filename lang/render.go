package lang

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/ardnew/stackcomp/pkg"
	"github.com/ardnew/stackcomp/scope"
)

// loopVar names the loop metadata variable inside for bodies.
const loopVar = "loop"

// DefaultMaxDepth bounds nested includes and template inheritance.
const DefaultMaxDepth = 64

// frames is the stack of local variable frames, innermost last.
type frames []scope.Values

func (f frames) Get(key string) (any, bool) {
	for i := len(f) - 1; i >= 0; i-- {
		if v, ok := f[i][key]; ok {
			return v, true
		}
	}

	return nil, false
}

func (f frames) Keys() []string {
	var keys []string
	for _, fr := range f {
		keys = append(keys, fr.Keys()...)
	}

	slices.Sort(keys)

	return slices.Compact(keys)
}

// renderer executes template nodes into a buffer.
type renderer struct {
	ctx    context.Context
	ev     *Evaluator
	tpl    *Template
	vars   scope.Map
	frames frames
	blocks map[string]*Block
	depth  int
	out    strings.Builder
}

func (ev *Evaluator) newRenderer(ctx context.Context, t *Template, vars scope.Map) *renderer {
	return &renderer{
		ctx:    ctx,
		ev:     ev,
		tpl:    t,
		vars:   vars,
		frames: frames{scope.Values{}},
	}
}

// nested returns a renderer for t that shares r's variables and frames and
// writes to its own buffer.
func (r *renderer) nested(t *Template) *renderer {
	return &renderer{
		ctx:    r.ctx,
		ev:     r.ev,
		tpl:    t,
		vars:   r.vars,
		frames: slices.Clone(r.frames),
		depth:  r.depth + 1,
	}
}

func (r *renderer) push(vars map[string]any) {
	fr := make(scope.Values, len(vars))
	for k, v := range vars {
		fr[k] = v
	}

	r.frames = append(r.frames, fr)
}

func (r *renderer) pop() { r.frames = r.frames[:len(r.frames)-1] }

// view returns the variables visible to an expression: the context first,
// then the local frames, with the local access key naming the frames.
func (r *renderer) view() scope.Map {
	v, _ := scope.New(r.vars, r.frames, scope.LocalAccess())

	return v
}

func (r *renderer) eval(e *Expr) (any, error) {
	return r.exec(e, r.view(), nil)
}

// errorf attaches the template location of n to err unless a location is
// already attached.
func (r *renderer) errorf(err error, n Node) error {
	if r.tpl == nil || r.tpl.Name == "" {
		return err
	}

	e := pkg.AsError(err)
	for _, a := range e.Attrs() {
		if a.Key == "line" {
			return err
		}
	}

	return e.With(slog.String("template", r.tpl.Name), slog.Int("line", n.Line()))
}

// renderTemplate renders t, following its extends chain.
func (r *renderer) renderTemplate(t *Template) error {
	if r.depth > r.ev.maxDepth {
		return ErrRecursion.With(slog.String("template", t.Name), slog.Int("depth", r.depth))
	}

	blocks := make(map[string]*Block)

	for t.parent != nil {
		for name, b := range t.blocks {
			if _, ok := blocks[name]; !ok {
				blocks[name] = b
			}
		}

		r.tpl = t

		name, err := r.eval(t.parent.Parent)
		if err != nil {
			return r.errorf(err, t.parent)
		}

		parent, err := r.ev.loadFrom(t, toString(name))
		if err != nil {
			return err
		}

		if r.depth++; r.depth > r.ev.maxDepth {
			return ErrRecursion.With(slog.String("template", parent.Name), slog.Int("depth", r.depth))
		}

		t = parent
	}

	r.tpl = t
	r.blocks = blocks

	return r.render(t.Nodes)
}

func (r *renderer) render(nodes []Node) error {
	for _, n := range nodes {
		if err := r.ctx.Err(); err != nil {
			return err
		}

		if err := r.node(n); err != nil {
			return r.errorf(err, n)
		}
	}

	return nil
}

func (r *renderer) node(n Node) error {
	switch n := n.(type) {
	case *Text:
		r.out.WriteString(n.Value)

	case *Print:
		v, err := r.eval(n.Expr)
		if err != nil {
			return err
		}

		r.out.WriteString(toString(v))

	case *If:
		for _, b := range n.Branches {
			v, err := r.eval(b.Cond)
			if err != nil {
				return err
			}

			if truthy(v) {
				return r.scoped(b.Body)
			}
		}

		return r.scoped(n.Else)

	case *For:
		return r.loop(n)

	case *Set:
		v, err := r.eval(n.Value)
		if err != nil {
			return err
		}

		r.frames[len(r.frames)-1][n.Name] = v

	case *Include:
		return r.include(n)

	case *Block:
		body := n.Body
		if b, ok := r.blocks[n.Name]; ok {
			body = b.Body
		}

		return r.render(body)

	case *Extends:
	}

	return nil
}

func (r *renderer) scoped(body []Node) error {
	if len(body) == 0 {
		return nil
	}

	r.push(nil)
	defer r.pop()

	return r.render(body)
}

// item is one element of an iteration.
type item struct {
	key, value any
}

func (r *renderer) loop(n *For) error {
	v, err := r.eval(n.Iter)
	if err != nil {
		return err
	}

	items, err := iterate(v)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		return r.scoped(n.Else)
	}

	for i, it := range items {
		fr := scope.Values{
			loopVar: map[string]any{
				"index":    i,
				"revindex": len(items) - i - 1,
				"first":    i == 0,
				"last":     i == len(items)-1,
				"length":   len(items),
			},
		}

		switch {
		case n.Key != "":
			fr[n.Key] = it.key
			fr[n.Value] = it.value
		case it.key != nil && isKeyed(v):
			fr[n.Value] = map[string]any{"key": it.key, "value": it.value}
		default:
			fr[n.Value] = it.value
		}

		r.frames = append(r.frames, fr)
		err := r.render(n.Body)
		r.pop()

		if err != nil {
			return err
		}
	}

	return nil
}

func (r *renderer) include(n *Include) error {
	name, err := r.eval(n.Name)
	if err != nil {
		return err
	}

	var with map[string]any

	if n.With != nil {
		v, err := r.eval(n.With)
		if err != nil {
			return err
		}

		m, ok := asMap(v)
		if !ok && v != nil {
			return ErrTypeMismatch.Wrapf("include variables must be a map").
				With(slog.String("type", fmt.Sprintf("%T", v)))
		}

		with = m
	}

	t, err := r.ev.loadFrom(r.tpl, toString(name))
	if err != nil {
		return err
	}

	sub := r.nested(t)
	sub.push(with)

	if err := sub.renderTemplate(t); err != nil {
		return err
	}

	r.out.WriteString(sub.out.String())

	return nil
}

// iterate returns the elements of v in iteration order. Keyed
// collections iterate in sorted key order. Nil iterates as empty.
func iterate(v any) ([]item, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		items := make([]item, len(x))
		for i, e := range x {
			items[i] = item{key: i, value: e}
		}

		return items, nil
	case scope.Map:
		keys := x.Keys()
		items := make([]item, 0, len(keys))

		for _, k := range keys {
			e, _ := x.Get(k)
			items = append(items, item{key: k, value: e})
		}

		return items, nil
	case map[string]any:
		return iterate(scope.Values(x))
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]item, rv.Len())
		for i := range rv.Len() {
			items[i] = item{key: i, value: rv.Index(i).Interface()}
		}

		return items, nil
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			for it := rv.MapRange(); it.Next(); {
				m[it.Key().String()] = it.Value().Interface()
			}

			return iterate(m)
		}
	}

	return nil, ErrTypeMismatch.Wrapf("value is not iterable").
		With(slog.String("type", fmt.Sprintf("%T", v)))
}

func isKeyed(v any) bool {
	switch v.(type) {
	case scope.Map, map[string]any:
		return true
	}

	return reflect.ValueOf(v).Kind() == reflect.Map
}
