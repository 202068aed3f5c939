package cmd

import (
	"context"

	"github.com/ardnew/stackcomp/cli/cmd/repl"
	"github.com/ardnew/stackcomp/log"
)

// Repl starts an interactive session over the resolved configuration.
type Repl struct {
	Layers `embed:""`

	NoHistory bool `help:"Keep no history between sessions"`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	asm, err := r.assembler("")
	if err != nil {
		return err
	}

	var cacheDir string

	if ktx := kongContextFrom(ctx); ktx != nil && !r.NoHistory {
		cacheDir = ktx.Model.Vars()[CacheIdentifier]
	}

	return repl.Run(ctx, asm, cacheDir, log.Default())
}
