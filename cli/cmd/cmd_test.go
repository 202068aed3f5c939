package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/stackcomp/crypt"
)

const testPasswordEnv = "STACKCOMP_TEST_PASSWORD"

// testCLI mounts every command for end-to-end runs.
type testCLI struct {
	Assemble Assemble `cmd:""`
	Merge    Merge    `cmd:""`
	Encrypt  Encrypt  `cmd:""`
	Decrypt  Decrypt  `cmd:""`
	Eval     Eval     `cmd:""`
	Deps     Deps     `cmd:""`
	Init     Init     `cmd:""`
	Version  Version  `cmd:""`
}

func init() {
	newCryptor = func() crypt.Cryptor {
		return crypt.NewAES(crypt.WithCost(crypt.Cost{N: 16, R: 1, P: 1}))
	}
}

// run parses args and runs the selected command, returning its standard
// output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var (
		cli testCLI
		out bytes.Buffer
	)

	parser, err := kong.New(&cli,
		kong.Writers(&out, &out),
		kong.Exit(func(int) {}),
		kong.Vars{
			CacheIdentifier:    t.TempDir(),
			ConfigIdentifier:   filepath.Join(t.TempDir(), "config.yml"),
			PasswordIdentifier: testPasswordEnv,
			"formats":          "yaml,json,toml",
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}

	err = Run(t.Context(), ktx)

	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestUniqueFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yml", "a: 1\n")
	b := writeFile(t, dir, "b.yml", "b: 1\n")

	link := filepath.Join(dir, "link.yml")
	if err := os.Symlink(a, link); err != nil {
		t.Fatal(err)
	}

	rel, err := filepath.Rel(".", b)
	if err != nil {
		rel = b
	}

	missing := filepath.Join(dir, "missing.yml")

	got := uniqueFiles([]string{a, b, link, rel, missing, missing})
	want := []string{link, rel, missing, missing}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("uniqueFiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestSink_LazyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	s := sink(t.Context(), path)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("unwritten sink created %s", path)
	}

	s = sink(t.Context(), path)
	if _, err := s.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if data, _ := os.ReadFile(path); string(data) != "x" {
		t.Errorf("file = %q, want x", data)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	if !bytes.HasPrefix([]byte(out), []byte("stackcomp ")) {
		t.Errorf("version = %q", out)
	}
}
