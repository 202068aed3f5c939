package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/crypt"
	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/pkg"
)

// Encrypt encrypts every string value of a configuration document.
type Encrypt struct {
	File     string `arg:"" help:"Plaintext configuration document"  type:"existingfile"`
	Password string `       help:"Encryption password"                env:"${passwordEnv}" required:""`
	Ref      string `       help:"Encrypted document whose unchanged values are kept (defaults to the output file)" type:"path"`
	Output   string `       help:"Output file or '-' for stdout"      short:"o" type:"path" default:"-"`
}

// Run executes the encrypt command.
func (e *Encrypt) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	plain, err := config.Load(ctx, e.File)
	if err != nil {
		return err
	}

	ref, err := e.reference(ctx)
	if err != nil {
		return err
	}

	enc, err := crypt.EncryptConfig(newCryptor(), plain, e.Password, ref,
		crypt.WithLogger(log.Default()))
	if err != nil {
		return err
	}

	return write(ctx, e.Output, enc, config.FormatOf(e.File), 2)
}

// reference loads the document whose ciphertexts are reused. A missing
// default reference is not an error.
func (e *Encrypt) reference(ctx context.Context) (config.Map, error) {
	path := e.Ref
	if path == "" {
		if e.Output == "" || e.Output == stdinSource {
			return nil, nil
		}

		if _, err := os.Stat(e.Output); errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		path = e.Output
	}

	ref, err := config.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "encrypt reference", slog.String("file", path))

	return ref, nil
}

// Decrypt decrypts every string value of an encrypted configuration document.
type Decrypt struct {
	File     string `arg:"" help:"Encrypted configuration document" type:"existingfile"`
	Password string `       help:"Decryption password"               env:"${passwordEnv}" required:""`
	Output   string `       help:"Output file or '-' for stdout"     short:"o" type:"path" default:"-"`
}

// Run executes the decrypt command.
func (d *Decrypt) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	enc, err := config.Load(ctx, d.File)
	if err != nil {
		return err
	}

	plain, err := crypt.DecryptConfig(newCryptor(), enc, d.Password,
		crypt.WithLogger(log.Default()))
	if err != nil {
		return pkg.AsError(err).With(slog.String("file", d.File))
	}

	return write(ctx, d.Output, plain, config.FormatOf(d.File), 2)
}
