package lang

import (
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// Node is a template statement. The set of implementations is closed.
type Node interface {
	// Line returns the 1-based source line where the node starts.
	Line() int
	node()
}

type pos int

func (p pos) Line() int { return int(p) }
func (pos) node()       {}

// Text is literal output.
type Text struct {
	pos
	Value string
}

// Print writes the value of an expression.
type Print struct {
	pos
	Expr *Expr
}

// If renders the body of the first branch whose condition is truthy, or
// Else when none is.
type If struct {
	pos
	Branches []Branch
	Else     []Node
}

// Branch is one condition and body of an [If].
type Branch struct {
	Cond *Expr
	Body []Node
}

// For renders Body once per element of Iter, binding Key and Value. Key is
// empty in the single-variable form. Else renders when Iter is empty.
type For struct {
	pos
	Key, Value string
	Iter       *Expr
	Body, Else []Node
}

// Set binds Name to the value of an expression in the current frame.
type Set struct {
	pos
	Name  string
	Value *Expr
}

// Include renders another template in place, optionally layering the map
// produced by With over the current variables.
type Include struct {
	pos
	Name *Expr
	With *Expr
}

// Block is a named, overridable section.
type Block struct {
	pos
	Name string
	Body []Node
}

// Extends renders the template named by Parent with this template's
// blocks overriding the parent's.
type Extends struct {
	pos
	Parent *Expr
}

// Expr is a compiled expr-lang expression.
type Expr struct {
	// Source is the expression text.
	Source string
	// Tree is the parsed expression before any compile-time rewriting.
	Tree ast.Node
	// Paths are the context paths the expression reads.
	Paths Paths
	// Calls names the functions the expression calls by identifier.
	Calls []string

	roots    []string
	volatile bool
	program  *vm.Program
}
