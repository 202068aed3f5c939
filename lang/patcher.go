package lang

import (
	"log/slog"

	"github.com/expr-lang/expr/ast"

	"github.com/ardnew/stackcomp/log"
)

// lenientPatcher rewrites every property access into an optional chain so
// that reading through a missing value yields nil instead of failing.
//
// The expr-lang compiler only emits nil checks for optional members that
// sit inside a ChainNode, so each member is wrapped in its own chain.
// Method calls keep their strict form.
type lenientPatcher struct {
	logger log.Logger
}

// Visit implements ast.Visitor for lenientPatcher.
func (p *lenientPatcher) Visit(node *ast.Node) {
	member, ok := (*node).(*ast.MemberNode)
	if !ok || member.Method || member.Optional {
		return
	}

	optional := &ast.MemberNode{
		Node:     member.Node,
		Property: member.Property,
		Optional: true,
	}
	optional.SetLocation(member.Location())

	ast.Patch(node, &ast.ChainNode{Node: optional})

	p.logger.Trace("patch optional member",
		slog.String("member", member.String()))
}
