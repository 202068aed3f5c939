package lang

import (
	"testing"

	"github.com/expr-lang/expr/parser"
	"github.com/google/go-cmp/cmp"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{name: "identifier", src: `a`, want: []string{"a"}},
		{name: "member chain", src: `a.b.c`, want: []string{"a.b.c"}},
		{name: "string index", src: `a["b"].c`, want: []string{"a.b.c"}},
		{name: "integer index", src: `a.b[0].c`, want: []string{"a.b"}},
		{name: "dynamic index", src: `a[b.c]`, want: []string{"a", "b.c"}},
		{name: "call arguments", src: `f(a.b, c)`, want: []string{"a.b", "c"}},
		{name: "method base", src: `a.b.trim()`, want: []string{"a.b"}},
		{name: "binary", src: `a.x + b.y * 2`, want: []string{"a.x", "b.y"}},
		{name: "conditional", src: `a ? b.c : d`, want: []string{"a", "b.c", "d"}},
		{name: "let binding", src: `let x = a.b; x.c + d`, want: []string{"a.b", "d"}},
		{name: "predicate", src: `filter(xs, .n > limit)`, want: []string{"limit", "xs"}},
		{name: "pointer", src: `map(xs, # * k)`, want: []string{"k", "xs"}},
		{name: "literal map", src: `{"k": a.b, "v": [c, 1]}`, want: []string{"a.b", "c"}},
		{name: "literals only", src: `1 + 2`, want: []string{}},
		{name: "env variable", src: `$env.a`, want: []string{}},
		{name: "duplicate", src: `a.b + a.b`, want: []string{"a.b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := parser.Parse(tt.src)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}

			got := Analyze(tree.Node).Strings()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Analyze(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestAnalyzeSource(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{name: "text", src: `plain`, want: []string{}},
		{name: "print", src: `{{ a.b }} and {{ c }}`, want: []string{"a.b", "c"}},
		{
			name: "loop variables are bound",
			src:  `{% for x in xs %}{{ x.n }}{{ loop.index }}{{ y }}{% endfor %}`,
			want: []string{"xs", "y"},
		},
		{
			name: "set variables are bound",
			src:  `{% set z = a.b %}{{ z.c }}`,
			want: []string{"a.b"},
		},
		{
			name: "conditions and else",
			src:  `{% if a %}{{ b }}{% elif c %}x{% else %}{{ d.e }}{% endif %}`,
			want: []string{"a", "b", "c", "d.e"},
		},
		{
			name: "include arguments",
			src:  `{% include name with {"v": a.b} %}`,
			want: []string{"a.b", "name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := AnalyzeSource(tt.src)
			if err != nil {
				t.Fatalf("AnalyzeSource error: %v", err)
			}

			if diff := cmp.Diff(tt.want, paths.Strings()); diff != "" {
				t.Errorf("AnalyzeSource(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestInspect_PredicateLiteral(t *testing.T) {
	tests := []struct {
		name         string
		src          string
		want         []string
		wantVolatile bool
	}{
		{
			name: "caller paths are added",
			src:  `where(xs, "it.n > limit.max")`,
			want: []string{"limit.max", "xs"},
		},
		{
			name: "local access is stripped",
			src:  `anyMatch(xs, "it == _.x.y")`,
			want: []string{"x.y", "xs"},
		},
		{
			name:         "bare local access",
			src:          `allMatch(xs, "it in _")`,
			want:         []string{"xs"},
			wantVolatile: true,
		},
		{
			name:         "dynamic predicate",
			src:          `findFirst(xs, pred)`,
			want:         []string{"pred", "xs"},
			wantVolatile: true,
		},
		{
			name:         "volatile call",
			src:          `env("HOME")`,
			want:         []string{},
			wantVolatile: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := parser.Parse(tt.src)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}

			paths, _, volatile, err := inspect(tree.Node)
			if err != nil {
				t.Fatalf("inspect error: %v", err)
			}

			if diff := cmp.Diff(tt.want, paths.Strings()); diff != "" {
				t.Errorf("paths mismatch (-want +got):\n%s", diff)
			}

			if volatile != tt.wantVolatile {
				t.Errorf("volatile = %v, want %v", volatile, tt.wantVolatile)
			}
		})
	}
}
