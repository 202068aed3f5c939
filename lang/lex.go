package lang

import (
	"log/slog"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokPrint
	tokTag
	tokComment
)

const (
	openPrint    = "{{"
	closePrint   = "}}"
	openTag      = "{%"
	closeTag     = "%}"
	openComment  = "{#"
	closeComment = "#}"
	trimMarker   = '-'
)

type token struct {
	kind  tokenKind
	value string
	line  int
	// trimBefore and trimAfter request removal of whitespace in the
	// neighboring text tokens.
	trimBefore, trimAfter bool
}

// lex splits src into text, print, tag and comment tokens. Trim markers
// and the newline following a tag or comment are applied to the
// neighboring text tokens before returning.
func lex(src string) ([]token, error) {
	var toks []token

	line := 1
	i := 0

	for i < len(src) {
		j, kind := nextDelim(src, i)
		if j < 0 {
			toks = append(toks, token{kind: tokText, value: src[i:], line: line})

			break
		}

		if j > i {
			toks = append(toks, token{kind: tokText, value: src[i:j], line: line})
			line += strings.Count(src[i:j], "\n")
		}

		start := j + 2
		tok := token{kind: kind, line: line}

		if start < len(src) && src[start] == trimMarker {
			tok.trimBefore = true
			start++
		}

		end, next := closeDelim(src, start, kind)
		if end < 0 {
			return nil, ErrParse.Wrapf("unclosed delimiter").
				With(slog.Int("line", line))
		}

		body := src[start:end]
		if strings.HasSuffix(body, string(trimMarker)) {
			tok.trimAfter = true
			body = body[:len(body)-1]
		}

		tok.value = strings.TrimSpace(body)
		toks = append(toks, tok)

		line += strings.Count(src[j:next], "\n")
		i = next
	}

	trim(toks)

	return toks, nil
}

// nextDelim returns the offset and kind of the next opening delimiter at
// or after i, or -1.
func nextDelim(src string, i int) (int, tokenKind) {
	for k := i; k+1 < len(src); k++ {
		if src[k] != '{' {
			continue
		}

		switch src[k+1] {
		case '{':
			return k, tokPrint
		case '%':
			return k, tokTag
		case '#':
			return k, tokComment
		}
	}

	return -1, tokText
}

// closeDelim finds the closing delimiter for kind starting at i. It
// returns the offset where the body ends and the offset just past the
// delimiter. Quoted strings are skipped, and in prints a closing brace
// pair only counts outside nested braces.
func closeDelim(src string, i int, kind tokenKind) (int, int) {
	if kind == tokComment {
		k := strings.Index(src[i:], closeComment)
		if k < 0 {
			return -1, -1
		}

		return i + k, i + k + len(closeComment)
	}

	closer := closeTag
	if kind == tokPrint {
		closer = closePrint
	}

	depth := 0

	for k := i; k < len(src); k++ {
		c := src[k]

		switch {
		case c == '"' || c == '\'' || c == '`':
			q := skipQuoted(src, k)
			if q < 0 {
				return -1, -1
			}

			k = q

		case depth == 0 && strings.HasPrefix(src[k:], closer):
			return k, k + len(closer)

		case kind == tokPrint && (c == '{' || c == '[' || c == '('):
			depth++

		case kind == tokPrint && (c == '}' || c == ']' || c == ')') && depth > 0:
			depth--
		}
	}

	return -1, -1
}

// skipQuoted returns the offset of the quote closing the string that
// opens at i, or -1.
func skipQuoted(src string, i int) int {
	q := src[i]

	for k := i + 1; k < len(src); k++ {
		switch src[k] {
		case '\\':
			if q != '`' {
				k++
			}
		case q:
			return k
		}
	}

	return -1
}

func trim(toks []token) {
	for i := range toks {
		t := &toks[i]
		if t.kind == tokText {
			continue
		}

		if t.trimBefore && i > 0 && toks[i-1].kind == tokText {
			toks[i-1].value = strings.TrimRightFunc(toks[i-1].value, unicode.IsSpace)
		}

		if i+1 < len(toks) && toks[i+1].kind == tokText {
			next := &toks[i+1]

			switch {
			case t.trimAfter:
				next.value = strings.TrimLeftFunc(next.value, unicode.IsSpace)
			case t.kind != tokPrint:
				next.value = trimNewline(next.value)
			}
		}
	}
}

func trimNewline(s string) string {
	if rest, ok := strings.CutPrefix(s, "\r\n"); ok {
		return rest
	}

	return strings.TrimPrefix(s, "\n")
}
