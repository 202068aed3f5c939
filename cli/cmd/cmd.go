package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ardnew/stackcomp/assemble"
	"github.com/ardnew/stackcomp/crypt"
	"github.com/ardnew/stackcomp/lang"
	"github.com/ardnew/stackcomp/log"
)

// contextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// Run runs the command selected in ktx. Commands receive ctx, carrying
// ktx, as their [context.Context] parameter.
func Run(ctx context.Context, ktx *kong.Context, binds ...any) error {
	ctx = WithContext(ctx, ktx)
	ktx.BindTo(ctx, (*context.Context)(nil))

	return ktx.Run(binds...)
}

// stdout returns the standard output of the kong application in ctx.
func stdout(ctx context.Context) io.Writer {
	if ktx := kongContextFrom(ctx); ktx != nil && ktx.Stdout != nil {
		return ktx.Stdout
	}

	return os.Stdout
}

// stdinSource is the special path selecting standard input or output.
const stdinSource = "-"

//nolint:gochecknoglobals
var newCryptor = func() crypt.Cryptor { return crypt.NewAES() }

// Layers selects the configuration documents of an assembly pass.
type Layers struct {
	Configs  []string `help:"Configuration document(s), later ones take precedence" name:"config" short:"c" type:"existingfile"`
	Secrets  []string `help:"Encrypted configuration document(s), merged last"      name:"secret" short:"s" type:"existingfile"`
	Password string   `help:"Password of the secret documents"                      env:"${passwordEnv}"`
	Root     string   `help:"Directory absolute template names resolve against"                                type:"existingdir"`
	Lenient  bool     `help:"Render unresolved variables as empty instead of failing"`
}

// assembler returns an [assemble.Assembler] over the selected documents.
func (l *Layers) assembler(template string) (*assemble.Assembler, error) {
	mode := lang.ModeStrict
	if l.Lenient {
		mode = lang.ModeLenient
	}

	return assemble.New(assemble.Options{
		Template: template,
		Root:     l.Root,
		Configs:  uniqueFiles(l.Configs),
		Secrets:  uniqueFiles(l.Secrets),
		Password: l.Password,
		Mode:     mode,
		Cryptor:  newCryptor(),
		Logger:   log.Default(),
	})
}

// fileKey uniquely identifies a file by its device and inode numbers.
// This handles deduplication across symlinks, absolute/relative paths, and
// special device files.
type fileKey struct {
	dev uint64
	ino uint64
}

// uniqueFiles drops every occurrence of a file but the last. Merging a
// document again only reasserts its precedence, so the merge result is
// unchanged. Paths that cannot be identified are kept as given.
func uniqueFiles(paths []string) []string {
	seen := make(map[fileKey]struct{}, len(paths))
	out := make([]string, 0, len(paths))

	for _, path := range slices.Backward(paths) {
		if key, ok := identify(path); ok {
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}
		}

		out = append(out, path)
	}

	slices.Reverse(out)

	return out
}

// identify resolves symlinks in path and returns the key of its target.
func identify(path string) (fileKey, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fileKey{}, false
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fileKey{}, false
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fileKey{}, false
	}

	return makeFileKey(info)
}

// makeFileKey creates a fileKey from os.FileInfo.
// Returns false if the underlying Sys() data is not of type *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: stat.Dev, ino: stat.Ino}, true
}

// sink returns the output named by path. Standard output is never closed.
func sink(ctx context.Context, path string) io.WriteCloser {
	if path == "" || path == stdinSource {
		return nopCloser{stdout(ctx)}
	}

	return &lazyFile{path: path}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// lazyFile creates its file on first write, so a pass that fails before
// writing leaves no file behind.
type lazyFile struct {
	path string
	file *os.File
}

func (l *lazyFile) Write(p []byte) (int, error) {
	if l.file == nil {
		f, err := os.Create(l.path)
		if err != nil {
			return 0, err
		}

		l.file = f
	}

	return l.file.Write(p)
}

func (l *lazyFile) Close() error {
	if l.file == nil {
		return nil
	}

	return l.file.Close()
}
