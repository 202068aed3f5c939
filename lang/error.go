package lang

import "github.com/ardnew/stackcomp/pkg"

var (
	ErrParse              = pkg.NewError("template parse error")
	ErrExprCompile        = pkg.NewError("expression compilation failed")
	ErrExprEvaluate       = pkg.NewError("expression evaluation failed")
	ErrUnresolvedVariable = pkg.NewError("unresolved variable")
	ErrTypeMismatch       = pkg.NewError("type mismatch")
	ErrTemplateNotFound   = pkg.NewError("template not found")
	ErrScript             = pkg.NewError("script execution failed")
	ErrFail               = pkg.NewError("template failure")
	ErrArgument           = pkg.NewError("invalid argument")
	ErrRecursion          = pkg.NewError("maximum include depth exceeded")
)
