package assemble

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/lang"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Map
		want config.Map
	}{
		{
			name: "static",
			cfg:  config.Map{"a": "plain", "b": 1, "c": "{not a tag}"},
			want: config.Map{"a": "plain", "b": 1, "c": "{not a tag}"},
		},
		{
			name: "chain",
			cfg: config.Map{
				"a": "{{ b }}-x",
				"b": "{{ c.d }}",
				"c": config.Map{"d": "v"},
			},
			want: config.Map{
				"a": "v-x",
				"b": "v",
				"c": config.Map{"d": "v"},
			},
		},
		{
			name: "native value",
			cfg: config.Map{
				"n":    int64(2),
				"sum":  "{{ n + 1 }}",
				"copy": "{{ src }}",
				"src":  config.Map{"k": "{{ n }}"},
			},
			want: config.Map{
				"n":    int64(2),
				"sum":  int64(3),
				"copy": config.Map{"k": int64(2)},
				"src":  config.Map{"k": int64(2)},
			},
		},
		{
			name: "inside list",
			cfg: config.Map{
				"hosts": []any{"a", "{{ domain }}"},
				"first": "{{ hosts[1] }}",
				"domain": "example.com",
			},
			want: config.Map{
				"hosts":  []any{"a", "example.com"},
				"first":  "example.com",
				"domain": "example.com",
			},
		},
		{
			name: "expand",
			cfg: config.Map{
				"labels": config.Map{"tier": "web"},
				"all":    "{{ expand(mergeConfig(labels, {zone: \"eu\"})) }}",
			},
			want: config.Map{
				"labels": config.Map{"tier": "web"},
				"all":    config.Map{"tier": "web", "zone": "eu"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustNew(t, Options{})

			cfg := config.Clone(tt.cfg).(config.Map)
			if err := a.Resolve(t.Context(), cfg); err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, cfg); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_Cycle(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Map
	}{
		{name: "self", cfg: config.Map{"a": "{{ a }}"}},
		{name: "parent", cfg: config.Map{"a": config.Map{"b": "{{ a }}"}}},
		{name: "pair", cfg: config.Map{"a": "{{ b }}", "b": "{{ a }}", "c": "{{ 1 }}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mustNew(t, Options{}).Resolve(t.Context(), tt.cfg)
			if !errors.Is(err, ErrCycle) {
				t.Errorf("Resolve() error = %v, want ErrCycle", err)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Map
		want error
	}{
		{
			name: "unresolved",
			cfg:  config.Map{"a": "{{ nope }}"},
			want: lang.ErrUnresolvedVariable,
		},
		{
			name: "parse",
			cfg:  config.Map{"a": "{% macro m() %}{% endmacro %}"},
			want: lang.ErrParse,
		},
		{
			name: "fail",
			cfg:  config.Map{"a": `{{ fail("no") }}`},
			want: lang.ErrFail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mustNew(t, Options{}).Resolve(t.Context(), tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolve_SharedCacheMemoizes(t *testing.T) {
	cache := lang.NewCache()

	for range 2 {
		cfg := config.Map{"a": "{{ b }}!", "b": "x"}

		if err := mustNew(t, Options{Cache: cache}).Resolve(t.Context(), cfg); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}

		if cfg["a"] != "x!" {
			t.Fatalf("a = %v, want x!", cfg["a"])
		}
	}

	if got := cache.Stats(); got.Compiles != 1 || got.Renders != 1 || got.Hits != 1 {
		t.Errorf("Stats() = %+v, want one compile, one render, one hit", got)
	}
}

func TestSortDynamic_KeepsConfigOrder(t *testing.T) {
	a := mustNew(t, Options{})

	var dyn []*dynamic

	for _, s := range []struct {
		key, src string
	}{
		{"a", "{{ c }}"},
		{"b", "{{ 1 }}"},
		{"c", "{{ 2 }}"},
		{"d", "{{ a }}"},
	} {
		tmpl, err := a.Evaluator().Compile(s.src)
		if err != nil {
			t.Fatal(err)
		}

		dyn = append(dyn, &dynamic{path: []string{s.key}, tmpl: tmpl})
	}

	order, err := sortDynamic(dyn)
	if err != nil {
		t.Fatalf("sortDynamic() error = %v", err)
	}

	var got []string
	for _, d := range order {
		got = append(got, d.key())
	}

	want := []string{"b", "c", "a", "d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sortDynamic() mismatch (-want +got):\n%s", diff)
	}
}
