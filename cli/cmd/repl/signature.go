package repl

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// signature describes the parameters of a callable name. Optional
// parameters are written in brackets and variadic ones with a "..." prefix.
type signature []string

//nolint:gochecknoglobals
var (
	// funcSignatures lists the template function table.
	funcSignatures = map[string]signature{
		"indent":           {"s", "n", "[first]"},
		"toYaml":           {"v"},
		"parseYaml":        {"s"},
		"toJson":           {"v"},
		"prettyJson":       {"v", "[indent]"},
		"composeEscape":    {"s"},
		"quoteEscape":      {"s"},
		"toInt":            {"v"},
		"toFloat":          {"v"},
		"toBool":           {"v"},
		"isString":         {"v"},
		"ifNull":           {"v", "alt"},
		"orError":          {"v", "[msg]"},
		"fail":             {"[msg]"},
		"versionIsAtLeast": {"version", "minimum"},
		"mergeConfig":      {"map", "...maps"},
		"expand":           {"v"},
		"pathPrefix":       {"list", "...items"},
		"where":            {"collection", "predicate"},
		"findFirst":        {"collection", "predicate"},
		"anyMatch":         {"collection", "predicate"},
		"allMatch":         {"collection", "predicate"},
		"noneMatch":        {"collection", "predicate"},
		"env":              {"name", "[default]"},
		"generatePassword": {"[length]", "...classes"},
		"readFile":         {"path"},
		"readFileBase64":   {"path"},
		"readTemplate":     {"path", "[with]"},
		"script":           {"path", "[with]"},
		"runScript":        {"source", "[with]"},
	}

	// exprSignatures lists the expression language builtins offered for
	// completion.
	exprSignatures = map[string]signature{
		"len":       {"v"},
		"all":       {"array", "predicate"},
		"any":       {"array", "predicate"},
		"one":       {"array", "predicate"},
		"none":      {"array", "predicate"},
		"map":       {"array", "mapper"},
		"filter":    {"array", "predicate"},
		"find":      {"array", "predicate"},
		"count":     {"array", "[predicate]"},
		"groupBy":   {"array", "mapper"},
		"sortBy":    {"array", "mapper", "[order]"},
		"sum":       {"array"},
		"min":       {"...values"},
		"max":       {"...values"},
		"join":      {"array", "[separator]"},
		"split":     {"string", "separator"},
		"replace":   {"string", "old", "new"},
		"trim":      {"string", "[chars]"},
		"upper":     {"string"},
		"lower":     {"string"},
		"keys":      {"map"},
		"values":    {"map"},
		"int":       {"v"},
		"float":     {"v"},
		"string":    {"v"},
		"type":      {"v"},
		"hasPrefix": {"string", "prefix"},
		"hasSuffix": {"string", "suffix"},
	}
)

//nolint:gochecknoglobals
var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentParamStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
)

// lookupSignature returns the parameters of name.
func lookupSignature(name string) (signature, bool) {
	if s, ok := funcSignatures[name]; ok {
		return s, true
	}

	s, ok := exprSignatures[name]

	return s, ok
}

// format returns the signature of s called as name.
func (s signature) format(name string) string {
	return name + "(" + strings.Join(s, ", ") + ")"
}

// functionCall is the innermost call enclosing the cursor.
type functionCall struct {
	name     string
	argIndex int
	inCall   bool
}

// detectFunctionCall finds the innermost unclosed call before cursor and the
// index of the argument the cursor is in.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(cursor, len(input))

	open := -1
	depth := 0

scan:
	for i := cursor - 1; i >= 0; i-- {
		switch input[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				open = i

				break scan
			}

			depth--
		}
	}

	if open < 0 {
		return functionCall{}
	}

	start := open
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isIdentRune(r) {
			break
		}

		start -= size
	}

	name := input[start:open]
	if name == "" {
		return functionCall{}
	}

	arg := 0
	depth = 0

	for i := open + 1; i < cursor; i++ {
		switch input[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				arg++
			}
		}
	}

	return functionCall{name: name, argIndex: arg, inCall: true}
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// renderSignatureHint renders name's signature with the parameter at arg
// highlighted. A variadic parameter stays highlighted for every argument
// from its position on.
func renderSignatureHint(name string, params signature, arg int) string {
	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(name))
	b.WriteString(signatureStyle.Render("("))

	for i, p := range params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		variadic := strings.HasPrefix(p, "...")
		if arg == i || (variadic && arg > i) {
			b.WriteString(currentParamStyle.Render(p))
		} else {
			b.WriteString(signatureStyle.Render(p))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
