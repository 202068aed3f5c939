package lang

import (
	"maps"
	"slices"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Path is a variable access chain such as a.b.c.
type Path []string

// String returns the dotted form of p.
func (p Path) String() string { return strings.Join(p, ".") }

// Root returns the first segment of p.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}

	return p[0]
}

// Paths is a deduplicated set of [Path] in sorted order.
type Paths []Path

// Strings returns the dotted form of each path.
func (ps Paths) Strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}

	return out
}

// Roots returns the distinct first segments of ps in sorted order.
func (ps Paths) Roots() []string {
	set := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		set[p.Root()] = struct{}{}
	}

	return slices.Sorted(maps.Keys(set))
}

func (ps Paths) segments() [][]string {
	out := make([][]string, len(ps))
	for i, p := range ps {
		out[i] = p
	}

	return out
}

// pathSet accumulates unique paths.
type pathSet map[string]Path

func (s pathSet) add(p Path) {
	if len(p) > 0 {
		s[strings.Join(p, "\x00")] = slices.Clone(p)
	}
}

func (s pathSet) sorted() Paths {
	out := make(Paths, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}

	slices.SortFunc(out, func(a, b Path) int { return slices.Compare(a, b) })

	return out
}

type analyzer struct {
	paths    pathSet
	bound    map[string]int
	calls    []*ast.CallNode
	builtins []string
}

func newAnalyzer() *analyzer {
	return &analyzer{paths: make(pathSet), bound: make(map[string]int)}
}

// Analyze returns the context paths read by an expression tree.
//
// A variable that begins an access chain in root position contributes the
// chain as one path. Calls contribute no path themselves and each argument
// is analyzed as an independent root expression. Names declared inside the
// expression (let bindings and predicate pointers) are not context paths.
func Analyze(node ast.Node) Paths {
	a := newAnalyzer()
	a.root(node)

	return a.paths.sorted()
}

// AnalyzeNodes returns the context paths read by template nodes. Names
// bound by for and set statements are excluded.
func AnalyzeNodes(nodes ...Node) Paths {
	paths, _ := analyzeNodes(nodes)

	return paths
}

// AnalyzeSource parses a template and returns the context paths it reads.
func AnalyzeSource(src string) (Paths, error) {
	nodes, err := parseNodes("", src, func(src string, _ int) (*Expr, error) {
		tree, err := parser.Parse(src)
		if err != nil {
			return nil, ErrExprCompile.Wrap(err)
		}

		return &Expr{Source: src, Tree: tree.Node}, nil
	})
	if err != nil {
		return nil, err
	}

	return AnalyzeNodes(nodes...), nil
}

// analyzeNodes returns the free paths of nodes and the sorted names bound
// by their for and set statements.
func analyzeNodes(nodes []Node) (Paths, []string) {
	all := make(pathSet)
	bound := make(map[string]struct{})

	var visit func([]Node)

	expr := func(e *Expr) {
		if e == nil {
			return
		}

		ps := e.Paths
		if ps == nil {
			ps = Analyze(e.Tree)
		}

		for _, p := range ps {
			all.add(p)
		}
	}

	visit = func(nodes []Node) {
		for _, n := range nodes {
			switch n := n.(type) {
			case *Text:
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

				if n.Key != "" {
					bound[n.Key] = struct{}{}
				}

				bound[n.Value] = struct{}{}
				bound[loopVar] = struct{}{}

				visit(n.Body)
				visit(n.Else)
			case *Set:
				expr(n.Value)

				bound[n.Name] = struct{}{}
			case *Include:
				expr(n.Name)
				expr(n.With)
			case *Block:
				visit(n.Body)
			case *Extends:
				expr(n.Parent)
			}
		}
	}

	visit(nodes)

	free := make(pathSet, len(all))

	for k, p := range all {
		if _, ok := bound[p.Root()]; !ok {
			free[k] = p
		}
	}

	return free.sorted(), slices.Sorted(maps.Keys(bound))
}

// root analyzes n as an independent expression and records its path.
func (a *analyzer) root(n ast.Node) {
	a.paths.add(a.walk(n))
}

// walk returns the path denoted by n, if any, recording the paths of any
// independent subexpressions along the way.
func (a *analyzer) walk(n ast.Node) Path {
	switch n := n.(type) {
	case nil:
		return nil

	case *ast.UnaryNode:
		return a.walk(n.Node)

	case *ast.ChainNode:
		return a.walk(n.Node)

	case *ast.IdentifierNode:
		if a.bound[n.Value] > 0 || strings.HasPrefix(n.Value, "$") {
			return nil
		}

		return Path{n.Value}

	case *ast.MemberNode:
		p, _ := a.member(n)

		return p

	case *ast.BinaryNode:
		a.root(n.Left)
		a.root(n.Right)

	case *ast.CallNode:
		a.calls = append(a.calls, n)

		if m, ok := n.Callee.(*ast.MemberNode); ok {
			a.root(m.Node)
		}

		for _, arg := range n.Arguments {
			a.root(arg)
		}

	case *ast.BuiltinNode:
		a.builtins = append(a.builtins, n.Name)

		for _, arg := range n.Arguments {
			a.root(arg)
		}

	case *ast.PredicateNode:
		a.root(n.Node)

	case *ast.SliceNode:
		a.root(n.Node)
		a.root(n.From)
		a.root(n.To)

	case *ast.ConditionalNode:
		a.root(n.Cond)
		a.root(n.Exp1)
		a.root(n.Exp2)

	case *ast.VariableDeclaratorNode:
		a.root(n.Value)
		a.bound[n.Name]++
		a.root(n.Expr)
		a.bound[n.Name]--

	case *ast.SequenceNode:
		for _, e := range n.Nodes {
			a.root(e)
		}

	case *ast.ArrayNode:
		for _, e := range n.Nodes {
			a.root(e)
		}

	case *ast.MapNode:
		for _, pair := range n.Pairs {
			a.root(pair)
		}

	case *ast.PairNode:
		a.root(n.Key)
		a.root(n.Value)
	}

	return nil
}

// member returns the path of a member chain and whether the chain can
// still be extended. A chain ends at the first index that is not a string
// literal, which is analyzed as an independent expression.
func (a *analyzer) member(n *ast.MemberNode) (Path, bool) {
	var head Path

	open := true

	if inner, ok := n.Node.(*ast.MemberNode); ok {
		head, open = a.member(inner)
	} else {
		head = a.walk(n.Node)
	}

	if head == nil {
		a.root(n.Property)

		return nil, false
	}

	if s, ok := n.Property.(*ast.StringNode); ok && open {
		return append(slices.Clip(head), s.Value), true
	}

	a.root(n.Property)

	return head, false
}
