package repl

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/lang"
)

// ctrlCommands are the control-mode commands offered for completion.
//
//nolint:gochecknoglobals
var ctrlCommands = []string{
	"help", "keys", "deps", "funcs", "stats", "edit", "reload", "clear", "quit",
}

// isWordBoundary reports whether r separates completion words. Hyphens are
// not boundaries because configuration keys may contain them.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']', '{', '}',
		'+', '*', '/', '%',
		'<', '>', '=', '!',
		'&', '|', ',', '?', ':', ';', '"', '\'':
		return true
	}

	return false
}

// wordBounds returns the word around cursor and its byte offsets in input.
// The word is empty when cursor sits between two boundaries.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	for start = cursor; start > 0; {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	for end = cursor; end < len(input); {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the member chain leading up to the word at wordStart,
// so "x + server.http.ho" yields "server.http" for the word "ho".
func parentPath(input string, wordStart int) string {
	prefix := input[:wordStart]
	if !strings.HasSuffix(prefix, ".") {
		return ""
	}

	prefix = strings.TrimRight(prefix, ".")

	pos := len(prefix)
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])
		if r != '.' && isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return strings.TrimSpace(prefix[pos:])
}

// childCandidates returns the completions under parent: at the top level
// the context keys and every callable name, otherwise the keys or indices of
// the value at parent.
func childCandidates(vars config.Map, parent string) []string {
	if parent == "" {
		names := slices.Sorted(maps.Keys(vars))
		names = append(names, lang.BuiltinNames()...)

		return append(names, slices.Sorted(maps.Keys(exprSignatures))...)
	}

	v, ok := config.Get(vars, strings.Split(parent, ".")...)
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case config.Map:
		return slices.Sorted(maps.Keys(t))
	case []any:
		idx := make([]string, len(t))
		for i := range t {
			idx[i] = strconv.Itoa(i)
		}

		return idx
	}

	return nil
}

// isFunction reports whether name is callable.
func isFunction(name string) bool {
	_, ok := lookupSignature(name)

	return ok
}

// computeMatches ranks the candidates for the word at the cursor. An empty
// word lists every child of a member chain and nothing at the top level.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	wordStart, wordEnd int,
) {
	word, start, end := wordBounds(m.input.Value(), m.input.Position())

	var candidates []string

	switch {
	case m.mode == modeCtrl:
		if word == "" || strings.Contains(m.input.Value()[:start], " ") {
			return nil, start, end
		}

		candidates = ctrlCommands

	default:
		parent := parentPath(m.input.Value(), start)
		candidates = childCandidates(m.vars, parent)

		if word == "" {
			if parent == "" {
				return nil, start, end
			}

			matches = make(fuzzy.Matches, len(candidates))
			for i, c := range candidates {
				matches[i] = fuzzy.Match{Str: c, Index: i}
			}

			return matches, start, end
		}
	}

	return fuzzy.Find(word, candidates), start, end
}

// renderCandidateBar renders matches on one line no wider than width,
// eliding the tail with "...".
func renderCandidateBar(
	matches fuzzy.Matches,
	selected int,
	tabActive bool,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	ellipsis := hintStyle.Render("...")

	var (
		b    strings.Builder
		used int
	)

	for i, match := range matches {
		item := renderCandidate(match, tabActive && i == selected)

		w := lipgloss.Width(item)
		if i > 0 {
			w += len(sep)
		}

		if i > 0 && used+w+len(sep)+lipgloss.Width(ellipsis) > width {
			b.WriteString(sep + ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(item)

		used += w
	}

	return b.String()
}

// renderCandidate renders a match with its matched runes emphasized.
// Callable names carry a "()" suffix.
func renderCandidate(match fuzzy.Match, selected bool) string {
	base, hi := suggestionStyle, matchStyle
	if selected {
		base, hi = selectedStyle, selectedMatchStyle
	}

	var b strings.Builder

	for i, r := range match.Str {
		if slices.Contains(match.MatchedIndexes, i) {
			b.WriteString(hi.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	if isFunction(match.Str) {
		b.WriteString(base.Render("()"))
	}

	return b.String()
}
