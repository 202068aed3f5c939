package lang

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/scope"
)

// Markers delimiting a value embedded by expand.
const (
	ExpandOpen  = "___GSC_EXPAND("
	ExpandClose = ")___EXPAND_GSC"
)

// IsDynamic reports whether src contains anything other than literal
// text. Sources that fail to lex are dynamic so their evaluation reports
// the error.
func IsDynamic(src string) bool {
	if !strings.Contains(src, "{") {
		return false
	}

	toks, err := lex(src)
	if err != nil {
		return true
	}

	for _, t := range toks {
		if t.kind != tokText {
			return true
		}
	}

	return false
}

// Expand returns v encoded as JSON between the expand markers. A string
// holding exactly one such encoding is restored to the structured value by
// [Unexpand].
func Expand(v any) (string, error) {
	b, err := json.Marshal(scope.Unwrap(v))
	if err != nil {
		return "", ErrArgument.Wrap(err).With(slog.String("func", "expand"))
	}

	return ExpandOpen + string(b) + ExpandClose, nil
}

// Unexpand decodes a string produced by [Expand], surrounding whitespace
// ignored. The boolean result reports whether s was an expansion.
func Unexpand(s string) (any, bool, error) {
	t := strings.TrimSpace(s)

	body, ok := strings.CutPrefix(t, ExpandOpen)
	if !ok {
		return nil, false, nil
	}

	body, ok = strings.CutSuffix(body, ExpandClose)
	if !ok {
		return nil, false, nil
	}

	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, true, ErrTypeMismatch.Wrap(err).With(slog.String("value", t))
	}

	return config.Normalize(v), true, nil
}
