package lang

import (
	"maps"
	"slices"
	"strings"
)

// Template is a compiled template source.
type Template struct {
	// Name identifies the template: its resolved path when loaded from a
	// file, or empty for inline sources.
	Name string
	// Source is the template text.
	Source string
	// Nodes are the parsed statements.
	Nodes []Node
	// Paths are the context paths the template reads.
	Paths Paths
	// Bound names the variables set or iterated by the template itself.
	Bound []string
	// Calls names the functions the template calls by identifier.
	Calls []string

	parent   *Extends
	blocks   map[string]*Block
	volatile bool
}

// Static reports whether t renders to its source text regardless of
// context.
func (t *Template) Static() bool {
	for _, n := range t.Nodes {
		if _, ok := n.(*Text); !ok {
			return false
		}
	}

	return true
}

// Cacheable reports whether the result of t depends only on the values at
// its paths. Templates that include other templates or call functions
// with external effects are not cacheable.
func (t *Template) Cacheable() bool { return !t.volatile }

// single returns the expression of a template made of exactly one print.
func (t *Template) single() *Expr {
	if len(t.Nodes) != 1 {
		return nil
	}

	if p, ok := t.Nodes[0].(*Print); ok {
		return p.Expr
	}

	return nil
}

func (t *Template) text() string {
	var b strings.Builder

	for _, n := range t.Nodes {
		b.WriteString(n.(*Text).Value)
	}

	return b.String()
}

func (t *Template) dir() string {
	if t == nil || t.Name == "" {
		return ""
	}

	i := strings.LastIndexAny(t.Name, `/\`)
	if i < 0 {
		return ""
	}

	return t.Name[:i]
}

// newTemplate builds a Template from parsed nodes.
func newTemplate(name, src string, nodes []Node) *Template {
	t := &Template{
		Name:   name,
		Source: src,
		Nodes:  nodes,
		blocks: make(map[string]*Block),
	}

	t.Paths, t.Bound = analyzeNodes(nodes)

	var visit func([]Node)

	calls := make(map[string]struct{})

	expr := func(e *Expr) {
		if e == nil {
			return
		}

		if e.volatile {
			t.volatile = true
		}

		for _, name := range e.Calls {
			calls[name] = struct{}{}
		}
	}

	visit = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case *Print:
				expr(n.Expr)
			case *If:
				for _, b := range n.Branches {
					expr(b.Cond)
					visit(b.Body)
				}

				visit(n.Else)
			case *For:
				expr(n.Iter)
				visit(n.Body)
				visit(n.Else)
			case *Set:
				expr(n.Value)
			case *Include:
				t.volatile = true
			case *Block:
				if _, ok := t.blocks[n.Name]; !ok {
					t.blocks[n.Name] = n
				}

				visit(n.Body)
			case *Extends:
				t.volatile = true

				if t.parent == nil {
					t.parent = n
				}
			}
		}
	}

	visit(nodes)

	t.Calls = slices.Sorted(maps.Keys(calls))

	return t
}
