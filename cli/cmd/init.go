package cmd

import (
	"context"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/profile"
)

// defaultConfigIndent is the number of spaces to use for indentation
// when generating the default configuration file.
const defaultConfigIndent = 2

// Init generates a default configuration file with current flag values.
type Init struct {
	Force bool `help:"Overwrite existing configuration file" short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)
	if ktx == nil {
		return ErrUsage.Wrapf("no command context")
	}

	confPath, ok := ktx.Model.Vars()[ConfigIdentifier]
	if !ok {
		return ErrUsage.Wrapf("configuration file undefined")
	}

	if _, err := os.Stat(confPath); err == nil && !i.Force {
		return ErrWriteConfig.Wrap(ErrFileExists).
			With(slog.String("file", confPath), slog.Bool("exists", true))
	}

	data, err := config.Marshal(ctx, i.document(ctx), config.FormatYAML, defaultConfigIndent)
	if err != nil {
		return ErrWriteConfig.Wrap(err).With(slog.String("file", confPath))
	}

	if err := os.WriteFile(confPath, data, 0o600); err != nil {
		return ErrWriteConfig.Wrap(err).With(slog.String("file", confPath))
	}

	log.DebugContext(ctx, "initialized configuration file",
		slog.String("path", confPath))

	return nil
}

// document builds the configuration file content from the current values
// of the application flags. Flags without a value are omitted.
func (i *Init) document(ctx context.Context) config.Map {
	ktx := kongContextFrom(ctx)
	ignore := []string{"help", profile.Tag}

	flags := config.Map{}

	for _, flag := range ktx.Model.Flags {
		if flag.Hidden || slices.ContainsFunc(ignore, func(s string) bool {
			return strings.HasPrefix(flag.Name, s)
		}) {
			continue
		}

		if v := flagValue(ktx.FlagValue(flag)); v != nil {
			flags[strings.ReplaceAll(flag.Name, "-", "_")] = v
		}
	}

	return config.Map{ConfigIdentifier: flags}
}

// flagValue returns the configuration form of a flag value, or nil if it
// is empty.
func flagValue(val any) any {
	if val == nil {
		return nil
	}

	switch rv := reflect.ValueOf(val); rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		if rv.Len() == 0 {
			return nil
		}
	}

	return config.Normalize(val)
}
