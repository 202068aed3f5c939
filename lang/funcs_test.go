package lang

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/stackcomp/scope"
)

func TestFuncs(t *testing.T) {
	vars := scope.Of(map[string]any{
		"m":   map[string]any{"a": 1},
		"s":   "a$b",
		"ver": "v1.10.2",
	})

	tests := []struct {
		name string
		src  string
		want any
	}{
		{name: "indent", src: `{{ indent("a\nb\n\nc", 2) }}`, want: "a\n  b\n\n  c"},
		{name: "indent first", src: `{{ indent("a\nb", 1, true) }}`, want: " a\n b"},
		{name: "indent zero", src: `{{ indent("a\nb", 0) }}`, want: "a\nb"},
		{name: "toYaml", src: `{{ toYaml(m) }}`, want: "a: 1"},
		{name: "parseYaml", src: `{{ parseYaml("k: [1, two]") }}`, want: map[string]any{"k": []any{int64(1), "two"}}},
		{name: "parseYaml nil", src: `{{ parseYaml(nil) }}`, want: nil},
		{name: "toJson", src: `{{ toJson({"a": [1, 2]}) }}`, want: `{"a":[1,2]}`},
		{name: "prettyJson", src: `{{ prettyJson(m) }}`, want: "{\n  \"a\": 1\n}"},
		{name: "composeEscape", src: `{{ composeEscape(s) }}`, want: "a$$b"},
		{name: "quoteEscape", src: `{{ quoteEscape('say "hi"') }}`, want: `say \"hi\"`},
		{name: "toInt", src: `{{ toInt(" 42 ") }}`, want: 42},
		{name: "toFloat", src: `{{ toFloat("1.5") }}`, want: 1.5},
		{name: "toBool", src: `{{ toBool("TRUE") }}`, want: true},
		{name: "isString", src: `{{ [isString(s), isString(1)] }}`, want: []any{true, false}},
		{name: "ifNull", src: `{{ ifNull(nil, 3) }}`, want: 3},
		{name: "ifNull value", src: `{{ ifNull(s, 3) }}`, want: "a$b"},
		{name: "orError value", src: `{{ orError(s) }}`, want: "a$b"},
		{name: "version", src: `{{ versionIsAtLeast(ver, "1.9") }}`, want: true},
		{name: "version older", src: `{{ versionIsAtLeast("release-1.2", "v1.10") }}`, want: false},
		{
			name: "mergeConfig",
			src:  `{{ mergeConfig({"a": {"b": 1, "l": [1]}}, {"a": {"c": 2, "l": [2]}}) }}`,
			want: map[string]any{"a": map[string]any{"b": 1, "c": 2, "l": []any{2}}},
		},
		{name: "expand", src: `{{ expand(m) }}`, want: ExpandOpen + `{"a":1}` + ExpandClose},
	}

	e := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Value(t.Context(), tt.src, vars)
			if err != nil {
				t.Fatalf("Value(%q) error: %v", tt.src, err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Value(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestFuncs_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
		msg  string
	}{
		{name: "orError empty", src: `{{ orError("") }}`, want: ErrFail, msg: "orError: null or empty input"},
		{name: "orError message", src: `{{ orError([], "need items") }}`, want: ErrFail, msg: "need items"},
		{name: "fail", src: `{{ fail() }}`, want: ErrFail, msg: "fail: (no message)"},
		{name: "fail message", src: `{{ fail("stop") }}`, want: ErrFail, msg: "stop"},
		{name: "toBool", src: `{{ toBool("yes") }}`, want: ErrTypeMismatch},
		{name: "mergeConfig", src: `{{ mergeConfig({}, [1]) }}`, want: ErrTypeMismatch},
		{name: "arity", src: `{{ indent("a") }}`, want: ErrArgument},
		{name: "version", src: `{{ versionIsAtLeast("x", "1") }}`, want: ErrArgument},
	}

	e := New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Value(t.Context(), tt.src, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			if !errors.Is(err, ErrExprEvaluate) {
				t.Errorf("expected evaluation error, got %v", err)
			}

			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestFuncs_Env(t *testing.T) {
	t.Setenv("STACKCOMP_TEST_VAR", "set")

	e := New()

	got, err := e.Value(t.Context(), `{{ env("STACKCOMP_TEST_VAR") }}/{{ env("STACKCOMP_TEST_UNSET", "dflt") }}`, nil)
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}

	if got != "set/dflt" {
		t.Errorf("got %q, want set/dflt", got)
	}

	if s := e.Stats(); s.Entries != 0 {
		t.Errorf("volatile template was memoized: %+v", s)
	}
}

func TestFuncs_GeneratePassword(t *testing.T) {
	e := New()

	tests := []struct {
		src     string
		length  int
		charset string
	}{
		{src: `{{ generatePassword() }}`, length: 16, charset: alphabetic + numeric},
		{src: `{{ generatePassword(8, "numeric") }}`, length: 8, charset: numeric},
		{src: `{{ generatePassword(12, "special", "ab") }}`, length: 12, charset: special + "ab"},
	}

	for _, tt := range tests {
		got, err := e.Value(t.Context(), tt.src, nil)
		if err != nil {
			t.Fatalf("Value(%q) error: %v", tt.src, err)
		}

		s, ok := got.(string)
		if !ok || len(s) != tt.length {
			t.Fatalf("Value(%q) = %v, want %d characters", tt.src, got, tt.length)
		}

		for _, r := range s {
			if !strings.ContainsRune(tt.charset, r) {
				t.Errorf("Value(%q) produced %q outside %q", tt.src, r, tt.charset)
			}
		}
	}
}

func TestFuncs_PathPrefix(t *testing.T) {
	e := New()

	got, err := e.Value(t.Context(), `{{ pathPrefix("/usr/bin", "/opt/bin") }}`, nil)
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}

	s, _ := got.(string)
	if !strings.Contains(s, "/opt/bin") || !strings.Contains(s, "/usr/bin") {
		t.Errorf("got %q, want both path elements", s)
	}

	if strings.Index(s, "/opt/bin") > strings.Index(s, "/usr/bin") {
		t.Errorf("got %q, want /opt/bin first", s)
	}
}

func TestFuncs_Files(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"data.txt":         "line1\r\nline2\n",
		"blob.bin":         "\x00\x01binary",
		"part.tmpl":        "<{{ v }}:{{ name }}>",
		"double.expr":      "it * 2",
		"greet.expr":       `greeting + ", " + name`,
		"bad.expr":         `fail("nope")`,
		"scripts/inc.expr": "it + step",
	})

	e := New(WithLoader(NewLoader(dir)))
	vars := scope.Of(map[string]any{"name": "X", "step": 10})

	tests := []struct {
		name string
		src  string
		want any
	}{
		{name: "readFile", src: `{{ readFile("data.txt") }}`, want: "line1\nline2"},
		{
			name: "readFileBase64",
			src:  `{{ readFileBase64("blob.bin") }}`,
			want: base64.StdEncoding.EncodeToString([]byte("\x00\x01binary")),
		},
		{name: "readTemplate", src: `{{ readTemplate("part.tmpl", {"v": 1}) }}`, want: "<1:X>"},
		{name: "script extension", src: `{{ script("double", 21) }}`, want: 42},
		{name: "script full name", src: `{{ script("double.expr", 2) }}`, want: 4},
		{name: "script bindings", src: `{{ script("greet", {"greeting": "hi"}) }}`, want: "hi, X"},
		{name: "script context", src: `{{ script("/scripts/inc", 1) }}`, want: 11},
		{name: "runScript", src: `{{ runScript("let y = it + 1; y * 2", 3) }}`, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Value(t.Context(), tt.src, vars)
			if err != nil {
				t.Fatalf("Value(%q) error: %v", tt.src, err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Value(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}

	t.Run("script failure", func(t *testing.T) {
		_, err := e.Value(t.Context(), `{{ script("bad") }}`, vars)
		if !errors.Is(err, ErrScript) || !errors.Is(err, ErrFail) {
			t.Fatalf("expected ErrScript wrapping ErrFail, got %v", err)
		}

		if !strings.Contains(err.Error(), "nope") {
			t.Errorf("error %q does not mention the failure", err)
		}
	})

	t.Run("missing script", func(t *testing.T) {
		_, err := e.Value(t.Context(), `{{ script("absent") }}`, vars)
		if !errors.Is(err, ErrTemplateNotFound) {
			t.Fatalf("expected ErrTemplateNotFound, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := e.Value(t.Context(), `{{ readFile("absent.txt") }}`, vars)
		if !errors.Is(err, ErrTemplateNotFound) {
			t.Fatalf("expected ErrTemplateNotFound, got %v", err)
		}
	})

	t.Run("script units are cached", func(t *testing.T) {
		before := e.Stats().Compiles

		for range 3 {
			if _, err := e.Value(t.Context(), `{{ script("double", step) }}`, vars); err != nil {
				t.Fatalf("Value error: %v", err)
			}
		}

		// one compile for the new template source, none for the script
		if got := e.Stats().Compiles - before; got != 1 {
			t.Errorf("compiles = %d, want 1", got)
		}
	})
}

func TestExpandRoundTrip(t *testing.T) {
	s, err := Expand(map[string]any{"k": []any{"a", true}})
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}

	v, ok, err := Unexpand("  " + s + "\n")
	if err != nil || !ok {
		t.Fatalf("Unexpand = %v, %v", ok, err)
	}

	if diff := cmp.Diff(map[string]any{"k": []any{"a", true}}, v); diff != "" {
		t.Errorf("Unexpand mismatch (-want +got):\n%s", diff)
	}

	if _, ok, _ := Unexpand("plain"); ok {
		t.Error("Unexpand(plain) reported an expansion")
	}

	if _, _, err := Unexpand(ExpandOpen + "{bad" + ExpandClose); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}
