package cli

import (
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

const testConfig = `
config:
  log_level: debug
  log-format: json
  indent: 4
  lenient: true
  merge:
    indent: 8
    format: toml
other:
  log_level: error
`

func testResolver(t *testing.T, doc string) kong.Resolver {
	t.Helper()

	r, err := resolve(t.Context(), baseConfig)(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}

	return r
}

func flag(name string) *kong.Flag {
	return &kong.Flag{Value: &kong.Value{Name: name}}
}

func TestResolve_Section(t *testing.T) {
	r := testResolver(t, testConfig)

	tests := []struct {
		flag string
		want any
	}{
		{"log-level", "debug"},
		{"log-format", "json"},
		{"indent", "4"},
		{"lenient", true},
		{"missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			got, err := r.Resolve(nil, nil, flag(tt.flag))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("Resolve(%s) = %#v, want %#v", tt.flag, got, tt.want)
			}
		})
	}
}

func TestResolve_CommandScope(t *testing.T) {
	r := testResolver(t, testConfig)

	merge := &kong.Path{Command: &kong.Node{Name: "merge"}}
	eval := &kong.Path{Command: &kong.Node{Name: "eval"}}

	tests := []struct {
		name   string
		parent *kong.Path
		flag   string
		want   any
	}{
		{"scoped", merge, "indent", "8"},
		{"scoped only", merge, "format", "toml"},
		{"falls back", merge, "lenient", true},
		{"other command", eval, "indent", "4"},
		{"other command unscoped", eval, "format", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(nil, tt.parent, flag(tt.flag))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("Resolve(%s) = %#v, want %#v", tt.flag, got, tt.want)
			}
		})
	}
}

func TestResolve_Unusable(t *testing.T) {
	for name, doc := range map[string]string{
		"invalid":         "config: [unclosed",
		"missing section": "other: {a: 1}",
		"scalar section":  "config: 3",
		"empty":           "",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := testResolver(t, doc).Resolve(nil, nil, flag("log-level"))
			if err != nil || got != nil {
				t.Errorf("Resolve() = %v, %v; want nil, nil", got, err)
			}
		})
	}
}

func TestLogConfig_Scan(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantLevel  logLevel
		wantFormat logFormat
		wantPretty bool
		wantCaller bool
	}{
		{
			name:       "separate values",
			args:       []string{"merge", "--log-level", "debug", "--log-format", "json"},
			wantLevel:  "debug",
			wantFormat: "json",
			wantPretty: true,
		},
		{
			name:       "assigned values",
			args:       []string{"--log-level=warn", "--log-caller", "--no-log-pretty"},
			wantLevel:  "warn",
			wantCaller: true,
		},
		{
			name:       "explicit booleans",
			args:       []string{"--log-pretty=false", "--no-log-caller=false"},
			wantCaller: true,
		},
		{
			name:       "flag as value is not consumed",
			args:       []string{"--log-level", "--log-caller"},
			wantCaller: true,
			wantPretty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := logConfig{Pretty: true}
			f.scan(tt.args)

			if f.Level != tt.wantLevel || f.Format != tt.wantFormat ||
				f.Pretty != tt.wantPretty || f.Caller != tt.wantCaller {
				t.Errorf("scan() = %+v", f)
			}
		})
	}
}
