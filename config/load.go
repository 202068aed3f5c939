package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/stackcomp/pkg"
)

// Format identifies a serialization format for configuration documents.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// Formats lists every supported format.
func Formats() []Format { return []Format{FormatYAML, FormatJSON, FormatTOML} }

// ParseFormat returns the format named s, accepting "yml" for YAML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON, FormatTOML:
		return f, nil
	default:
		return "", ErrFormat.With(slog.String("format", s))
	}
}

// FormatOf infers the format of a file from its extension.
// Unknown extensions are read as YAML, which also accepts JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// Load reads and decodes the configuration file at path.
// An empty document yields an empty [Map].
func Load(ctx context.Context, path string) (Map, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, ErrReadConfig.Wrap(err).With(slog.String("path", abs))
	}

	m, err := Decode(ctx, data, FormatOf(abs))
	if err != nil {
		return nil, pkg.AsError(err).With(slog.String("path", abs))
	}

	return m, nil
}

// LoadAll loads every path in order.
func LoadAll(ctx context.Context, paths ...string) ([]Map, error) {
	docs := make([]Map, 0, len(paths))

	for _, p := range paths {
		m, err := Load(ctx, p)
		if err != nil {
			return nil, err
		}

		docs = append(docs, m)
	}

	return docs, nil
}

// Read decodes a document of format f from r.
func Read(ctx context.Context, r io.Reader, f Format) (Map, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrReadConfig.Wrap(err)
	}

	return Decode(ctx, data, f)
}

// Decode decodes data of format f into a normalized [Map].
// A document whose root is not a map fails with [ErrTypeMismatch].
func Decode(ctx context.Context, data []byte, f Format) (Map, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Map{}, nil
	}

	var (
		raw any
		err error
	)

	switch f {
	case FormatTOML:
		var m Map

		err = toml.Unmarshal(data, &m)
		raw = m
	case FormatYAML, FormatJSON:
		err = yaml.UnmarshalContext(ctx, data, &raw)
	default:
		return nil, ErrFormat.With(slog.String("format", string(f)))
	}

	if err != nil {
		return nil, ErrReadConfig.Wrap(err).With(slog.String("format", string(f)))
	}

	if raw == nil {
		return Map{}, nil
	}

	m, ok := AsMap(Normalize(raw))
	if !ok {
		return nil, ErrTypeMismatch.Wrapf("document root is not a map")
	}

	return m, nil
}

// Marshal encodes v in format f. Indent applies to YAML and JSON.
// YAML sequences are indented below their map key.
func Marshal(ctx context.Context, v any, f Format, indent int) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	switch f {
	case FormatYAML:
		var opts []yaml.EncodeOption

		// Sequences nested in maps are indented below their key; a
		// top-level sequence stays flush with the margin.
		if _, ok := AsMap(v); ok {
			opts = append(opts, yaml.IndentSequence(true))
		}

		if indent > 0 {
			opts = append(opts, yaml.Indent(indent))
		}

		data, err = yaml.MarshalContext(ctx, v, opts...)
	case FormatJSON:
		if indent > 0 {
			data, err = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
		} else {
			data, err = json.Marshal(v)
		}

		if err == nil {
			data = append(data, '\n')
		}
	case FormatTOML:
		var buf bytes.Buffer

		err = toml.NewEncoder(&buf).Encode(v)
		data = buf.Bytes()
	default:
		return nil, ErrFormat.With(slog.String("format", string(f)))
	}

	if err != nil {
		return nil, ErrMarshal.Wrap(err).With(slog.String("format", string(f)))
	}

	return data, nil
}

// Write encodes v in format f to w.
func Write(ctx context.Context, w io.Writer, v any, f Format, indent int) error {
	data, err := Marshal(ctx, v, f, indent)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}
