package cli

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/stackcomp/config"
)

// resolve returns a [kong.ConfigurationLoader] for YAML (or JSON)
// documents whose map at key section holds default flag values.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve(ctx, "config"), "/path/to/config.yml")
//
// Flag names with hyphens may be written with underscores. A map named after
// a command holds values that apply only to that command's flags and takes
// precedence over the section's top level:
//
//	config:
//	  log_level: debug
//	  lenient: true
//	  merge:
//	    format: json
//
// Command-line flags override configured values. An unreadable document or
// a missing section configures nothing.
func resolve(ctx context.Context, section string) kong.ConfigurationLoader {
	return func(r io.Reader) (kong.Resolver, error) {
		data, err := io.ReadAll(r)
		if err != nil {
			return flags{}, nil
		}

		doc, err := config.Decode(ctx, data, config.FormatYAML)
		if err != nil {
			return flags{}, nil
		}

		m, ok := config.AsMap(doc[section])
		if !ok {
			return flags{}, nil
		}

		return flags(m), nil
	}
}

// flags implements [kong.Resolver] over a configuration map.
type flags config.Map

// Validate implements [kong.Resolver].
func (flags) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (r flags) Resolve(
	_ *kong.Context,
	parent *kong.Path,
	flag *kong.Flag,
) (any, error) {
	if parent != nil && parent.Command != nil {
		if m, ok := config.AsMap(lookup(r, parent.Command.Name)); ok {
			if v := lookup(flags(m), flag.Name); v != nil {
				return kongValue(v), nil
			}
		}
	}

	return kongValue(lookup(r, flag.Name)), nil
}

// lookup returns the value of name in r, trying the underscore form of
// hyphenated names as well.
func lookup(r flags, name string) any {
	if v, ok := r[name]; ok {
		return v
	}

	if v, ok := r[strings.ReplaceAll(name, "-", "_")]; ok {
		return v
	}

	return nil
}

// kongValue converts numbers to the strings kong's mappers parse.
func kongValue(v any) any {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}

	return v
}
