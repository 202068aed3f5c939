package lang

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ardnew/stackcomp/pkg"
)

// compileFunc compiles one expression found at line.
type compileFunc func(src string, line int) (*Expr, error)

type tplParser struct {
	name    string
	toks    []token
	pos     int
	compile compileFunc
}

// stop is the tag that ended a body.
type stop struct {
	keyword string
	rest    string
	line    int
}

// parseNodes parses src into template nodes.
func parseNodes(name, src string, compile compileFunc) ([]Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, pkg.AsError(err).With(slog.String("template", name))
	}

	p := &tplParser{name: name, toks: toks, compile: compile}

	nodes, end, err := p.body()
	if err != nil {
		return nil, err
	}

	if end.keyword != "" {
		return nil, p.errorf(end.line, "unexpected tag", slog.String("tag", end.keyword))
	}

	return nodes, nil
}

func (p *tplParser) errorf(line int, msg string, attrs ...slog.Attr) error {
	return ErrParse.Wrapf(msg).With(append([]slog.Attr{
		slog.String("template", p.name),
		slog.Int("line", line),
	}, attrs...)...)
}

// body parses nodes until a tag that it cannot consume itself, which is
// returned as the stop. The zero stop means end of input.
func (p *tplParser) body() ([]Node, stop, error) {
	var nodes []Node

	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		p.pos++

		switch t.kind {
		case tokText:
			if t.value != "" {
				nodes = append(nodes, &Text{pos: pos(t.line), Value: t.value})
			}

		case tokComment:

		case tokPrint:
			e, err := p.expr(t.value, t.line)
			if err != nil {
				return nil, stop{}, err
			}

			nodes = append(nodes, &Print{pos: pos(t.line), Expr: e})

		case tokTag:
			keyword, rest := splitWord(t.value)

			n, err := p.tag(keyword, rest, t.line)
			if err != nil {
				return nil, stop{}, err
			}

			if n == nil {
				return nodes, stop{keyword: keyword, rest: rest, line: t.line}, nil
			}

			nodes = append(nodes, n)
		}
	}

	return nodes, stop{}, nil
}

// tag parses the statement introduced by keyword. It returns a nil node
// for the closing and continuation keywords that end an enclosing body.
func (p *tplParser) tag(keyword, rest string, line int) (Node, error) {
	switch keyword {
	case "if":
		return p.parseIf(rest, line)
	case "for":
		return p.parseFor(rest, line)
	case "set":
		return p.parseSet(rest, line)
	case "include":
		return p.parseInclude(rest, line)
	case "block":
		return p.parseBlock(rest, line)
	case "extends":
		e, err := p.expr(rest, line)
		if err != nil {
			return nil, err
		}

		return &Extends{pos: pos(line), Parent: e}, nil
	case "elif", "else", "endif", "endfor", "endblock":
		return nil, nil
	case "":
		return nil, p.errorf(line, "empty tag")
	default:
		return nil, p.errorf(line, "unsupported tag", slog.String("tag", keyword))
	}
}

func (p *tplParser) expect(s stop, line int, keywords ...string) error {
	for _, k := range keywords {
		if s.keyword == k {
			return nil
		}
	}

	if s.keyword == "" {
		return p.errorf(line, "unclosed tag",
			slog.String("expected", strings.Join(keywords, " or ")))
	}

	return p.errorf(s.line, "unexpected tag",
		slog.String("tag", s.keyword),
		slog.String("expected", strings.Join(keywords, " or ")))
}

func (p *tplParser) parseIf(cond string, line int) (Node, error) {
	n := &If{pos: pos(line)}

	for {
		e, err := p.expr(cond, line)
		if err != nil {
			return nil, err
		}

		body, s, err := p.body()
		if err != nil {
			return nil, err
		}

		if err := p.expect(s, line, "elif", "else", "endif"); err != nil {
			return nil, err
		}

		n.Branches = append(n.Branches, Branch{Cond: e, Body: body})

		switch s.keyword {
		case "elif":
			cond, line = s.rest, s.line

			continue
		case "else":
			body, s, err := p.body()
			if err != nil {
				return nil, err
			}

			if err := p.expect(s, line, "endif"); err != nil {
				return nil, err
			}

			n.Else = body
		}

		return n, nil
	}
}

func (p *tplParser) parseFor(head string, line int) (Node, error) {
	vars, iter, ok := cutKeyword(head, "in")
	if !ok {
		return nil, p.errorf(line, "malformed for loop", slog.String("head", head))
	}

	n := &For{pos: pos(line)}

	names := strings.Split(vars, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
		if !isIdent(names[i]) {
			return nil, p.errorf(line, "invalid loop variable", slog.String("name", names[i]))
		}
	}

	switch len(names) {
	case 1:
		n.Value = names[0]
	case 2:
		n.Key, n.Value = names[0], names[1]
	default:
		return nil, p.errorf(line, "too many loop variables", slog.Int("count", len(names)))
	}

	e, err := p.expr(iter, line)
	if err != nil {
		return nil, err
	}

	n.Iter = e

	body, s, err := p.body()
	if err != nil {
		return nil, err
	}

	if err := p.expect(s, line, "else", "endfor"); err != nil {
		return nil, err
	}

	n.Body = body

	if s.keyword == "else" {
		body, s, err := p.body()
		if err != nil {
			return nil, err
		}

		if err := p.expect(s, line, "endfor"); err != nil {
			return nil, err
		}

		n.Else = body
	}

	return n, nil
}

func (p *tplParser) parseSet(stmt string, line int) (Node, error) {
	name, value, ok := strings.Cut(stmt, "=")
	name = strings.TrimSpace(name)

	if !ok || strings.HasPrefix(value, "=") || !isIdent(name) {
		return nil, p.errorf(line, "malformed set statement", slog.String("statement", stmt))
	}

	e, err := p.expr(value, line)
	if err != nil {
		return nil, err
	}

	return &Set{pos: pos(line), Name: name, Value: e}, nil
}

func (p *tplParser) parseInclude(args string, line int) (Node, error) {
	name, with, hasWith := cutKeyword(args, "with")

	n := &Include{pos: pos(line)}

	e, err := p.expr(name, line)
	if err != nil {
		return nil, err
	}

	n.Name = e

	if hasWith {
		if n.With, err = p.expr(with, line); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func (p *tplParser) parseBlock(name string, line int) (Node, error) {
	if !isIdent(name) {
		return nil, p.errorf(line, "invalid block name", slog.String("name", name))
	}

	body, s, err := p.body()
	if err != nil {
		return nil, err
	}

	if err := p.expect(s, line, "endblock"); err != nil {
		return nil, err
	}

	if s.rest != "" && s.rest != name {
		return nil, p.errorf(s.line, "mismatched endblock",
			slog.String("block", name), slog.String("endblock", s.rest))
	}

	return &Block{pos: pos(line), Name: name, Body: body}, nil
}

func (p *tplParser) expr(src string, line int) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, p.errorf(line, "empty expression")
	}

	e, err := p.compile(src, line)
	if err != nil {
		return nil, pkg.AsError(err).With(
			slog.String("template", p.name),
			slog.Int("line", line),
		)
	}

	return e, nil
}

// splitWord splits s at the first run of whitespace.
func splitWord(s string) (string, string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}

	return s[:i], strings.TrimSpace(s[i:])
}

// cutKeyword splits s around the first occurrence of the keyword kw that
// stands as a separate word outside quoted strings.
func cutKeyword(s, kw string) (string, string, bool) {
	for k := 0; k < len(s); k++ {
		switch c := s[k]; {
		case c == '"' || c == '\'' || c == '`':
			q := skipQuoted(s, k)
			if q < 0 {
				return s, "", false
			}

			k = q

		case strings.HasPrefix(s[k:], kw) &&
			(k == 0 || isSpace(s[k-1])) &&
			(k+len(kw) == len(s) || isSpace(s[k+len(kw)])):
			return strings.TrimSpace(s[:k]), strings.TrimSpace(s[k+len(kw):]), true
		}
	}

	return s, "", false
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}

		return false
	}

	return utf8.ValidString(s)
}
