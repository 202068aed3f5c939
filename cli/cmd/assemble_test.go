package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/stackcomp/crypt"
	"github.com/ardnew/stackcomp/lang"
)

func TestAssemble_Run(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yml", "app:\n  name: web\n  port: 80\n")
	prod := writeFile(t, dir, "prod.yml", "app:\n  port: 443\n  url: \"{{ app.name }}:{{ app.port }}\"\n")
	tmpl := writeFile(t, dir, "stack.tmpl", "url={{ app.url }}\n")
	unresolved := writeFile(t, dir, "unresolved.tmpl", "[{{ nope }}]")

	t.Run("stdout", func(t *testing.T) {
		out, err := run(t, "assemble", "-c", base, "-c", prod, tmpl)
		if err != nil {
			t.Fatalf("assemble error = %v", err)
		}

		if out != "url=web:443\n" {
			t.Errorf("assemble = %q", out)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(dir, "out.txt")

		if _, err := run(t, "assemble", "-c", base, "-c", prod, "-o", path, tmpl); err != nil {
			t.Fatalf("assemble error = %v", err)
		}

		if data, _ := os.ReadFile(path); string(data) != "url=web:443\n" {
			t.Errorf("output file = %q", data)
		}
	})

	t.Run("failure leaves no file", func(t *testing.T) {
		path := filepath.Join(dir, "none.txt")

		_, err := run(t, "assemble", "-c", base, "-o", path, unresolved)
		if !errors.Is(err, lang.ErrUnresolvedVariable) {
			t.Errorf("assemble error = %v, want ErrUnresolvedVariable", err)
		}

		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("failed pass created %s", path)
		}
	})

	t.Run("lenient", func(t *testing.T) {
		out, err := run(t, "assemble", "-c", base, "--lenient", unresolved)
		if err != nil {
			t.Fatalf("assemble error = %v", err)
		}

		if out != "[]" {
			t.Errorf("assemble = %q, want []", out)
		}
	})
}

func TestAssemble_Secrets(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "secrets.yml", "db:\n  password: hunter2\n")
	enc := filepath.Join(dir, "secrets.enc.yml")
	tmpl := writeFile(t, dir, "t.tmpl", "{{ db.password }}")

	if _, err := run(t, "encrypt", "--password", "pw", "-o", enc, plain); err != nil {
		t.Fatalf("encrypt error = %v", err)
	}

	t.Setenv(testPasswordEnv, "pw")

	out, err := run(t, "assemble", "-s", enc, tmpl)
	if err != nil {
		t.Fatalf("assemble error = %v", err)
	}

	if out != "hunter2" {
		t.Errorf("assemble = %q, want hunter2", out)
	}

	t.Setenv(testPasswordEnv, "wrong")

	if _, err := run(t, "assemble", "-s", enc, tmpl); !errors.Is(err, crypt.ErrDecryption) {
		t.Errorf("assemble error = %v, want ErrDecryption", err)
	}
}

func TestEncrypt_ReusesOutput(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "s.yml", "a: one\nb: two\n")
	enc := filepath.Join(dir, "s.enc.yml")

	if _, err := run(t, "encrypt", "--password", "pw", "-o", enc, plain); err != nil {
		t.Fatalf("encrypt error = %v", err)
	}

	first, err := os.ReadFile(enc)
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(string(first), "one") || !strings.Contains(string(first), crypt.Version) {
		t.Fatalf("encrypted = %q", first)
	}

	if _, err := run(t, "encrypt", "--password", "pw", "-o", enc, plain); err != nil {
		t.Fatalf("encrypt error = %v", err)
	}

	second, err := os.ReadFile(enc)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Errorf("unchanged values re-encrypted:\n%s\n%s", first, second)
	}

	out, err := run(t, "decrypt", "--password", "pw", enc)
	if err != nil {
		t.Fatalf("decrypt error = %v", err)
	}

	if out != "a: one\nb: two\n" {
		t.Errorf("decrypt = %q", out)
	}
}
