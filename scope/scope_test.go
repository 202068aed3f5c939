package scope

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustNew(t *testing.T, root, local Map, opts ...Option) *Resolver {
	t.Helper()

	r, err := New(root, local, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return r
}

func TestResolverGet(t *testing.T) {
	r := mustNew(t,
		Values{"x": 1},
		Values{"x": 2, "y": 3},
		LocalAccess(),
	)

	tests := []struct {
		key  string
		want any
		ok   bool
	}{
		{key: "x", want: 1, ok: true},
		{key: "y", want: 3, ok: true},
		{key: "z", want: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := r.Get(tt.key)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Get(%q) = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolverLocalAccess(t *testing.T) {
	local := Values{"x": 2}

	t.Run("enabled", func(t *testing.T) {
		r := mustNew(t, Values{"x": 1}, local, LocalAccess())

		v, ok := r.Get(LocalAccessKey)
		if !ok {
			t.Fatal("Get(_) not found")
		}

		m, ok := v.(Map)
		if !ok {
			t.Fatalf("Get(_) = %T, want Map", v)
		}

		if x, _ := m.Get("x"); x != 2 {
			t.Errorf("_.x = %v, want 2", x)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		r := mustNew(t, Values{"x": 1}, local)
		if _, ok := r.Get(LocalAccessKey); ok {
			t.Error("Get(_) found without local access")
		}
	})

	t.Run("shadowed by root", func(t *testing.T) {
		r := mustNew(t, Values{"_": "root"}, local, LocalAccess())
		if v, _ := r.Get(LocalAccessKey); v != "root" {
			t.Errorf("Get(_) = %v, want root", v)
		}
	})

	t.Run("shadowed by local", func(t *testing.T) {
		r := mustNew(t, Empty, Values{"_": "local"}, LocalAccess())
		if v, _ := r.Get(LocalAccessKey); v != "local" {
			t.Errorf("Get(_) = %v, want local", v)
		}
	})

	t.Run("nested", func(t *testing.T) {
		inner := mustNew(t, Values{"y": 3}, local, LocalAccess())
		outer := mustNew(t, Values{"it": 0}, inner, LocalAccess())

		v, _ := outer.Get(LocalAccessKey)
		if v != Map(inner) {
			t.Fatalf("Get(_) = %v, want the inner resolver", v)
		}

		if y, _ := v.(Map).Get("y"); y != 3 {
			t.Errorf("_.y = %v, want 3", y)
		}
	})
}

func TestResolverNilDelegate(t *testing.T) {
	if _, err := New(nil, Empty); !errors.Is(err, ErrNilDelegate) {
		t.Errorf("New(nil, Empty) error = %v, want ErrNilDelegate", err)
	}

	if _, err := New(Empty, nil); !errors.Is(err, ErrNilDelegate) {
		t.Errorf("New(Empty, nil) error = %v, want ErrNilDelegate", err)
	}
}

func TestResolverPut(t *testing.T) {
	t.Run("read-only", func(t *testing.T) {
		r := mustNew(t, Values{}, Empty)
		if err := r.Put("a", 1); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Put() error = %v, want ErrUnsupported", err)
		}
	})

	t.Run("read-only root", func(t *testing.T) {
		r := mustNew(t, Empty, Values{}, Writable())
		if err := r.Put("a", 1); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Put() error = %v, want ErrUnsupported", err)
		}
	})

	t.Run("writable", func(t *testing.T) {
		root := Values{}
		local := Values{}
		r := mustNew(t, root, local, Writable())

		if err := r.Put("a", 1); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		if err := r.PutAll(map[string]any{"b": 2, "c": 3}); err != nil {
			t.Fatalf("PutAll() error = %v", err)
		}

		want := Values{"a": 1, "b": 2, "c": 3}
		if diff := cmp.Diff(want, root); diff != "" {
			t.Errorf("root mismatch (-want +got):\n%s", diff)
		}

		if len(local) != 0 {
			t.Errorf("local = %v, want empty", local)
		}
	})
}

func TestResolverKeys(t *testing.T) {
	r := mustNew(t, Values{"b": 1, "a": 1}, Values{"c": 1, "a": 2})

	want := []string{"a", "b", "c"}
	if diff := cmp.Diff(want, r.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestLazy(t *testing.T) {
	src := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}},
		"l": []any{1, 2},
	}

	m := Lazy(src)

	a, _ := m.Get("a")

	am, ok := a.(Map)
	if !ok {
		t.Fatalf("Get(a) = %T, want Map", a)
	}

	b, _ := am.Get("b")
	if _, ok := b.(Map); !ok {
		t.Fatalf("Get(b) = %T, want Map", b)
	}

	if l, _ := m.Get("l"); cmp.Diff([]any{1, 2}, l) != "" {
		t.Errorf("Get(l) = %v", l)
	}

	if Lazy(42) != nil {
		t.Error("Lazy(42) != nil")
	}

	if got := Unwrap(m); cmp.Diff(src, got) != "" {
		t.Errorf("Unwrap mismatch:\n%s", cmp.Diff(src, got))
	}
}

func TestProject(t *testing.T) {
	ctx := Lazy(map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1, "d": 2},
			"e": 3,
		},
		"l": []any{"x", "y"},
		"s": "str",
	})

	tests := []struct {
		name    string
		paths   [][]string
		want    map[string]any
		missing bool
	}{
		{
			name:  "leaf",
			paths: [][]string{{"a", "b", "c"}},
			want:  map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}},
		},
		{
			name:  "prefix wins",
			paths: [][]string{{"a", "b", "c"}, {"a", "b"}},
			want: map[string]any{
				"a": map[string]any{"b": map[string]any{"c": 1, "d": 2}},
			},
		},
		{
			name:  "siblings",
			paths: [][]string{{"a", "e"}, {"a", "b", "d"}},
			want: map[string]any{
				"a": map[string]any{"b": map[string]any{"d": 2}, "e": 3},
			},
		},
		{
			name:  "through list",
			paths: [][]string{{"l", "0"}},
			want:  map[string]any{"l": []any{"x", "y"}},
		},
		{
			name:  "through scalar",
			paths: [][]string{{"s", "len"}},
			want:  map[string]any{"s": "str"},
		},
		{
			name:    "missing root",
			paths:   [][]string{{"z"}, {"s"}},
			want:    map[string]any{"s": "str"},
			missing: true,
		},
		{
			name:    "missing attribute",
			paths:   [][]string{{"a", "q"}},
			want:    map[string]any{"a": map[string]any{}},
			missing: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, missing := Project(ctx, tt.paths)
			if missing != tt.missing {
				t.Errorf("Project() missing = %v, want %v", missing, tt.missing)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Project() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
