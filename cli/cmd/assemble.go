package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/stackcomp/log"
)

// Assemble renders a template against layered configuration documents.
type Assemble struct {
	Layers `embed:""`

	Template string `arg:"" help:"Template to render"                       type:"existingfile"`
	Output   string `       help:"Output file or '-' for stdout" short:"o" type:"path"         default:"-"`
}

// Run executes the assemble command.
func (a *Assemble) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	asm, err := a.assembler(a.Template)
	if err != nil {
		return err
	}

	if err := asm.Assemble(ctx, sink(ctx, a.Output)); err != nil {
		return err
	}

	log.DebugContext(ctx, "assemble complete",
		slog.String("template", a.Template),
		slog.String("output", a.Output),
	)

	return nil
}
