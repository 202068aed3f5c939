package repl

import "github.com/ardnew/stackcomp/pkg"

var (
	ErrOutOfBounds  = pkg.NewError("history index out of range")
	ErrEditDeclined = pkg.NewError("edit declined")
	ErrNoContext    = pkg.NewError("no evaluation context")
	ErrUsage        = pkg.NewError("invalid command usage")
)
