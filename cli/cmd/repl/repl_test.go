package repl

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/lang"
	"github.com/ardnew/stackcomp/log"
)

// fixedSource serves a constant context.
type fixedSource struct {
	vars config.Map
	eval *lang.Evaluator
	err  error
}

func (s *fixedSource) Context(context.Context) (config.Map, error) {
	if s.err != nil {
		return nil, s.err
	}

	return config.Clone(s.vars).(config.Map), nil
}

func (s *fixedSource) Resolve(context.Context, config.Map) error { return nil }

func (s *fixedSource) Evaluator() *lang.Evaluator { return s.eval }

func testModel(t *testing.T) model {
	t.Helper()

	src := &fixedSource{
		vars: config.Map{
			"app": config.Map{
				"name":  "web",
				"ports": []any{int64(80), int64(443)},
			},
		},
		eval: lang.New(),
	}

	vars, err := src.Context(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	return newModel(t.Context(), src, vars, NewHistory(""), log.Discard())
}

func TestModel_Evaluate(t *testing.T) {
	m := testModel(t)

	tests := []struct {
		input string
		want  string
	}{
		{"app.name", "web"},
		{"app.ports[1] + 1", "444"},
		{"upper(app.name)", "WEB"},
		{"app.ports", "- 80\n- 443"},
		{"{{ app.name }}:{{ app.ports[0] }}", "web:80"},
		{"{'k': app.name}", "k: web"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := m.evaluate(tt.input)
			if err != nil {
				t.Fatalf("evaluate(%q) error = %v", tt.input, err)
			}

			if got != tt.want {
				t.Errorf("evaluate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	if _, err := m.evaluate("nope.x"); !errors.Is(err, lang.ErrUnresolvedVariable) {
		t.Errorf("evaluate(nope.x) error = %v, want ErrUnresolvedVariable", err)
	}
}

func TestModel_ListKeys(t *testing.T) {
	m := testModel(t)

	got, err := m.listKeys("app")
	if err != nil {
		t.Fatalf("listKeys() error = %v", err)
	}

	if !strings.Contains(got, "name") || !strings.Contains(got, "ports") {
		t.Errorf("listKeys() = %q, want name and ports", got)
	}

	for _, path := range []string{"app.name", "missing"} {
		if _, err := m.listKeys(path); !errors.Is(err, config.ErrTypeMismatch) {
			t.Errorf("listKeys(%q) error = %v, want ErrTypeMismatch", path, err)
		}
	}
}

func TestDependencies(t *testing.T) {
	got, err := dependencies("app.name + db.host")
	if err != nil {
		t.Fatalf("dependencies() error = %v", err)
	}

	if got != "app.name\ndb.host" {
		t.Errorf("dependencies() = %q", got)
	}

	if _, err := dependencies(""); !errors.Is(err, ErrUsage) {
		t.Errorf("dependencies(\"\") error = %v, want ErrUsage", err)
	}
}

func TestListFuncs(t *testing.T) {
	got := listFuncs("yaml")
	if !strings.Contains(got, "toYaml(v)") || !strings.Contains(got, "parseYaml(s)") {
		t.Errorf("listFuncs(yaml) = %q", got)
	}

	if strings.Contains(got, "indent") {
		t.Errorf("listFuncs(yaml) = %q, want only matching names", got)
	}
}

func TestModel_HistoryStep(t *testing.T) {
	m := testModel(t)

	for _, e := range []HistoryEntry{
		{Line: "app.name", Mode: modeEval},
		{Line: "stats", Mode: modeCtrl},
		{Line: "app.ports", Mode: modeEval},
	} {
		if err := m.history.Add(e.Line, e.Mode); err != nil {
			t.Fatal(err)
		}
	}

	m.historyIdx = m.history.Len()

	m = m.historyStep(-1, false)
	if m.input.Value() != "app.ports" || m.mode != modeEval {
		t.Fatalf("step 1 = %q mode %v", m.input.Value(), m.mode)
	}

	m = m.historyStep(-1, false)
	if m.input.Value() != "stats" || m.mode != modeCtrl {
		t.Fatalf("step 2 = %q mode %v", m.input.Value(), m.mode)
	}

	m = m.switchToMode(modeEval)
	m = m.historyStep(-1, true)
	if m.input.Value() != "app.name" || m.historyIdx != 0 {
		t.Fatalf("in-mode step = %q at %d", m.input.Value(), m.historyIdx)
	}

	for range 3 {
		m = m.historyStep(1, false)
	}

	if m.input.Value() != "" || m.historyIdx != m.history.Len() {
		t.Errorf("past newest = %q at %d, want empty at end", m.input.Value(), m.historyIdx)
	}
}

func TestModel_TabCycles(t *testing.T) {
	m := testModel(t)

	m.input.SetValue("app.")
	m.input.SetCursor(4)
	refreshMatches(&m, false)

	m, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyTab})
	if m.input.Value() != "app.name" {
		t.Fatalf("first tab = %q, want app.name", m.input.Value())
	}

	m, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyTab})
	if m.input.Value() != "app.ports" {
		t.Fatalf("second tab = %q, want app.ports", m.input.Value())
	}

	m, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	if m.input.Value() != "app." || m.mode != modeEval {
		t.Errorf("esc = %q mode %v, want restored input", m.input.Value(), m.mode)
	}
}

func TestModel_Reload(t *testing.T) {
	m := testModel(t)
	m.vars = config.Map{}

	m, _ = m.executeCommand("reload")
	if _, ok := m.vars["app"]; !ok {
		t.Errorf("reload vars = %v, want source context", m.vars)
	}
}
