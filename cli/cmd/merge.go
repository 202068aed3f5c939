package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/stackcomp/config"
)

// Merge prints the merged configuration documents.
type Merge struct {
	Layers `embed:""`

	Format  string `default:"yaml" enum:"${formats}" help:"Output format (${enum})" short:"f"`
	Indent  int    `default:"2"                      help:"Indent width"           short:"i"`
	Resolve bool   `                                 help:"Resolve dynamic values" short:"r" negatable:""`
	Output  string `default:"-"                      help:"Output file or '-' for stdout" short:"o" type:"path"`
}

// Run executes the merge command.
func (m *Merge) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	format, err := config.ParseFormat(m.Format)
	if err != nil {
		return err
	}

	asm, err := m.assembler("")
	if err != nil {
		return err
	}

	merge := asm.Merged
	if m.Resolve {
		merge = asm.Context
	}

	merged, err := merge(ctx)
	if err != nil {
		return err
	}

	return write(ctx, m.Output, merged, format, m.Indent)
}

// write encodes v in format f to the output named by path.
func write(ctx context.Context, path string, v any, f config.Format, indent int) (err error) {
	data, err := config.Marshal(ctx, v, f, indent)
	if err != nil {
		return err
	}

	out := sink(ctx, path)

	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = ErrWriteOutput.Wrap(cerr).With(slog.String("file", path))
		}
	}()

	if _, err := out.Write(data); err != nil {
		return ErrWriteOutput.Wrap(err).With(slog.String("file", path))
	}

	return nil
}
