package lang

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"maps"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ardnew/mung"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-version"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/scope"
)

// Character classes of generatePassword.
const (
	alphabetic = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numeric    = "0123456789"
	special    = "!@#$%^&*_=+-/"

	defaultPasswordLength = 16
)

//nolint:gochecknoglobals
var builtins = map[string]Func{
	// Formatting.
	"indent":     fnIndent,
	"toYaml":     fnToYaml,
	"parseYaml":  fnParseYaml,
	"toJson":     fnToJSON,
	"prettyJson": fnPrettyJSON,

	// Escaping.
	"composeEscape": fnComposeEscape,
	"quoteEscape":   fnQuoteEscape,

	// Conversion and checks.
	"toInt":            fnToInt,
	"toFloat":          fnToFloat,
	"toBool":           fnToBool,
	"isString":         fnIsString,
	"ifNull":           fnIfNull,
	"orError":          fnOrError,
	"fail":             fnFail,
	"versionIsAtLeast": fnVersionIsAtLeast,

	// Structure.
	"mergeConfig": fnMergeConfig,
	"expand":      fnExpand,
	"pathPrefix":  fnPathPrefix,

	// Predicates.
	"where":     predicateFunc(predFilter),
	"findFirst": predicateFunc(predFirst),
	"anyMatch":  predicateFunc(predAny),
	"allMatch":  predicateFunc(predAll),
	"noneMatch": predicateFunc(predNone),

	// External.
	"env":              fnEnv,
	"generatePassword": fnGeneratePassword,
	"readFile":         fnReadFile,
	"readFileBase64":   fnReadFileBase64,
	"readTemplate":     fnReadTemplate,
	"script":           fnScript,
	"runScript":        fnRunScript,
}

// Builtins returns a copy of the builtin function table.
func Builtins() map[string]Func { return maps.Clone(builtins) }

// BuiltinNames returns the sorted names of the builtin functions.
func BuiltinNames() []string { return slices.Sorted(maps.Keys(builtins)) }

func arity(c *Call, args []any, lo, hi int) error {
	if len(args) >= lo && (hi < 0 || len(args) <= hi) {
		return nil
	}

	return ErrArgument.Wrapf("wrong number of arguments").With(
		slog.String("func", c.Name),
		slog.Int("args", len(args)),
	)
}

func argString(c *Call, args []any, i int) (string, error) {
	switch s := args[i].(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	}

	return "", ErrTypeMismatch.Wrapf("argument is not a string").With(
		slog.String("func", c.Name),
		slog.Int("arg", i),
		slog.String("type", fmt.Sprintf("%T", args[i])),
	)
}

func fnIndent(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 2, 3); err != nil {
		return nil, err
	}

	s, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	n, err := toInt(args[1])
	if err != nil {
		return nil, err
	}

	first := false
	if len(args) > 2 {
		if first, err = toBool(args[2]); err != nil {
			return nil, err
		}
	}

	if n <= 0 {
		return s, nil
	}

	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")

	for i, l := range lines {
		if (i > 0 || first) && l != "" {
			lines[i] = pad + l
		}
	}

	return strings.Join(lines, "\n"), nil
}

func fnToYaml(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	b, err := config.Marshal(c.Context, scope.Unwrap(args[0]), config.FormatYAML, 0)
	if err != nil {
		return nil, err
	}

	return strings.TrimSuffix(string(b), "\n"), nil
}

func fnParseYaml(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	if args[0] == nil {
		return nil, nil
	}

	s, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	var v any
	if err := yaml.UnmarshalContext(c.Context, []byte(s), &v); err != nil {
		return nil, ErrArgument.Wrap(err).With(slog.String("func", c.Name))
	}

	return config.Normalize(v), nil
}

func marshalJSON(c *Call, args []any, indent int) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	b, err := config.Marshal(c.Context, scope.Unwrap(args[0]), config.FormatJSON, indent)
	if err != nil {
		return nil, err
	}

	return strings.TrimSuffix(string(b), "\n"), nil
}

func fnToJSON(c *Call, args ...any) (any, error) { return marshalJSON(c, args, 0) }

func fnPrettyJSON(c *Call, args ...any) (any, error) { return marshalJSON(c, args, 2) }

func fnComposeEscape(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	s, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	return strings.ReplaceAll(s, "$", "$$"), nil
}

func fnQuoteEscape(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	s, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	return strings.ReplaceAll(s, `"`, `\"`), nil
}

func fnToInt(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	return toInt(args[0])
}

func fnToFloat(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	return toFloat(args[0])
}

func fnToBool(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	return toBool(args[0])
}

func fnIsString(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	_, ok := args[0].(string)

	return ok, nil
}

func fnIfNull(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 2, 2); err != nil {
		return nil, err
	}

	if args[0] == nil {
		return args[1], nil
	}

	return args[0], nil
}

func fnOrError(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 2); err != nil {
		return nil, err
	}

	if !isEmpty(args[0]) {
		return args[0], nil
	}

	msg := "orError: null or empty input"
	if len(args) > 1 && args[1] != nil {
		msg = toString(args[1])
	}

	return nil, ErrFail.Wrapf(msg)
}

func fnFail(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 0, 1); err != nil {
		return nil, err
	}

	msg := "fail: (no message)"
	if len(args) > 0 && args[0] != nil {
		msg = toString(args[0])
	}

	return nil, ErrFail.Wrapf(msg)
}

// looseVersion parses s after stripping any non-digit prefix, so "v1.2"
// and "release-1.2" both parse as 1.2.
func looseVersion(c *Call, s string) (*version.Version, error) {
	trimmed := strings.TrimLeftFunc(s, func(r rune) bool { return r < '0' || r > '9' })

	v, err := version.NewVersion(trimmed)
	if err != nil {
		return nil, ErrArgument.Wrap(err).With(
			slog.String("func", c.Name),
			slog.String("version", s),
		)
	}

	return v, nil
}

func fnVersionIsAtLeast(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 2, 2); err != nil {
		return nil, err
	}

	v, err := looseVersion(c, toString(args[0]))
	if err != nil {
		return nil, err
	}

	least, err := looseVersion(c, toString(args[1]))
	if err != nil {
		return nil, err
	}

	return v.GreaterThanOrEqual(least), nil
}

func fnMergeConfig(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, -1); err != nil {
		return nil, err
	}

	docs := make([]any, len(args))

	for i, a := range args {
		m, ok := asMap(a)
		if !ok {
			return nil, ErrTypeMismatch.Wrapf("mergeConfig arguments must be maps").With(
				slog.Int("arg", i),
				slog.String("type", fmt.Sprintf("%T", a)),
			)
		}

		docs[i] = m
	}

	m, err := config.Merge(docs...)
	if err != nil {
		return nil, err
	}

	return map[string]any(m), nil
}

func fnExpand(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	return Expand(args[0])
}

func fnPathPrefix(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, -1); err != nil {
		return nil, err
	}

	list, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	items := make([]string, 0, len(args)-1)

	for i := 1; i < len(args); i++ {
		s, err := argString(c, args, i)
		if err != nil {
			return nil, err
		}

		items = append(items, s)
	}

	return mung.Make(
		mung.WithSubjectItems(list),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(items...),
	).String(), nil
}

func predicateFunc(kind predicateKind) Func {
	return func(c *Call, args ...any) (any, error) {
		if err := arity(c, args, 2, 2); err != nil {
			return nil, err
		}

		pred, err := argString(c, args, 1)
		if err != nil {
			return nil, err
		}

		return c.Evaluator().predicate(c.Context, kind, args[0], pred, c.Vars)
	}
}

func fnEnv(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 2); err != nil {
		return nil, err
	}

	name, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}

	if len(args) > 1 {
		return args[1], nil
	}

	return nil, nil
}

func fnGeneratePassword(c *Call, args ...any) (any, error) {
	n := defaultPasswordLength

	if len(args) > 0 && args[0] != nil {
		var err error
		if n, err = toInt(args[0]); err != nil {
			return nil, err
		}
	}

	if n <= 0 {
		return nil, ErrArgument.Wrapf("password length must be positive").
			With(slog.Int("length", n))
	}

	var set strings.Builder

	for i := 1; i < len(args); i++ {
		class, err := argString(c, args, i)
		if err != nil {
			return nil, err
		}

		switch class {
		case "alphabetic":
			set.WriteString(alphabetic)
		case "numeric":
			set.WriteString(numeric)
		case "special":
			set.WriteString(special)
		default:
			set.WriteString(class)
		}
	}

	chars := []rune(set.String())
	if len(chars) == 0 {
		chars = []rune(alphabetic + numeric)
	}

	out := make([]rune, n)
	size := big.NewInt(int64(len(chars)))

	for i := range out {
		j, err := rand.Int(rand.Reader, size)
		if err != nil {
			return nil, ErrArgument.Wrap(err).With(slog.String("func", c.Name))
		}

		out[i] = chars[j.Int64()]
	}

	return string(out), nil
}

func readArg(c *Call, args []any) ([]byte, error) {
	if err := arity(c, args, 1, 1); err != nil {
		return nil, err
	}

	name, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	path := c.Resolve(name)

	b, err := os.ReadFile(path)
	if err != nil {
		abs, _ := filepath.Abs(path)

		return nil, ErrTemplateNotFound.Wrap(err).With(slog.String("path", abs))
	}

	return b, nil
}

func fnReadFile(c *Call, args ...any) (any, error) {
	b, err := readArg(c, args)
	if err != nil {
		return nil, err
	}

	s := strings.ReplaceAll(string(b), "\r\n", "\n")

	return strings.TrimSuffix(s, "\n"), nil
}

func fnReadFileBase64(c *Call, args ...any) (any, error) {
	b, err := readArg(c, args)
	if err != nil {
		return nil, err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

func fnReadTemplate(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 2); err != nil {
		return nil, err
	}

	name, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	var with map[string]any

	if len(args) > 1 && args[1] != nil {
		m, ok := asMap(args[1])
		if !ok {
			return nil, ErrTypeMismatch.Wrapf("template variables must be a map").
				With(slog.String("type", fmt.Sprintf("%T", args[1])))
		}

		with = m
	}

	return c.Render(name, with)
}

func fnScript(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 2); err != nil {
		return nil, err
	}

	name, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	u, err := c.Evaluator().scriptFile(c.Resolve(name))
	if err != nil {
		return nil, err
	}

	return u.run(c, bindingsArg(args))
}

func fnRunScript(c *Call, args ...any) (any, error) {
	if err := arity(c, args, 1, 2); err != nil {
		return nil, err
	}

	src, err := argString(c, args, 0)
	if err != nil {
		return nil, err
	}

	u, err := c.Evaluator().scriptSource(src)
	if err != nil {
		return nil, err
	}

	return u.run(c, bindingsArg(args))
}

func bindingsArg(args []any) any {
	if len(args) > 1 {
		return args[1]
	}

	return nil
}
