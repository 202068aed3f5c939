package lang

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ardnew/stackcomp/pkg"
)

// Loader resolves and reads template and script files below a root
// directory.
type Loader struct {
	root string
}

// NewLoader returns a Loader rooted at root. An empty root uses the
// working directory.
func NewLoader(root string) *Loader {
	if root == "" {
		root = "."
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	return &Loader{root: root}
}

// Root returns the loader's root directory.
func (l *Loader) Root() string { return l.root }

// Resolve returns the path of name. Absolute names resolve against the
// root, relative names against dir when it is non-empty.
func (l *Loader) Resolve(dir, name string) string {
	return pkg.ResolvePath(l.root, dir, name)
}

// Read returns the content of the file at path.
func (l *Loader) Read(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			abs = path
		}

		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrTemplateNotFound.With(slog.String("path", abs))
		}

		return "", ErrTemplateNotFound.Wrap(err).With(slog.String("path", abs))
	}

	return string(b), nil
}

// Exists reports whether a regular file exists at path.
func (l *Loader) Exists(path string) bool {
	fi, err := os.Stat(path)

	return err == nil && fi.Mode().IsRegular()
}
