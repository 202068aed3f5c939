package crypt

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/pkg"
)

var (
	ErrDecryption = pkg.NewError("decryption failed")
	ErrEncryption = pkg.NewError("encryption failed")
	ErrPassword   = pkg.NewError("invalid password")
	ErrFormat     = pkg.NewError("malformed ciphertext")
)

// Cryptor converts single string values to and from ciphertext.
type Cryptor interface {
	Encrypt(plain, password string) (string, error)
	Decrypt(cipher, password string) (string, error)
}

// Option configures [EncryptConfig] and [DecryptConfig].
type Option func(*walker)

// WithLogger sets the logger that records per-leaf decisions.
func WithLogger(logger log.Logger) Option {
	return func(w *walker) { w.logger = logger }
}

type walker struct {
	c        Cryptor
	password string
	ref      config.Map
	logger   log.Logger
	reused   int
	fresh    int
}

// EncryptConfig returns a copy of cfg with every string leaf encrypted.
//
// When ref holds a string at the same path, it is decrypted with password
// and reused verbatim if it equals the plaintext. A reference leaf that
// cannot be decrypted fails the whole call with [ErrDecryption]. Non-string
// leaves are copied unchanged. On error the result is nil.
func EncryptConfig(
	c Cryptor,
	cfg config.Map,
	password string,
	ref config.Map,
	opts ...Option,
) (config.Map, error) {
	if password == "" {
		return nil, ErrPassword.Wrapf("empty password")
	}

	w := &walker{c: c, password: password, ref: ref}
	for _, opt := range opts {
		opt(w)
	}

	out, err := w.transform(nil, cfg, w.encrypt)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("encrypted configuration",
		slog.Int("reused", w.reused),
		slog.Int("encrypted", w.fresh),
	)

	return out.(config.Map), nil
}

// DecryptConfig returns a copy of cfg with every string leaf decrypted.
// Non-string leaves are copied unchanged. On error the result is nil.
func DecryptConfig(
	c Cryptor,
	cfg config.Map,
	password string,
	opts ...Option,
) (config.Map, error) {
	if password == "" {
		return nil, ErrPassword.Wrapf("empty password")
	}

	w := &walker{c: c, password: password}
	for _, opt := range opts {
		opt(w)
	}

	out, err := w.transform(nil, cfg, w.decrypt)
	if err != nil {
		return nil, err
	}

	return out.(config.Map), nil
}

func (w *walker) transform(
	path []string,
	v any,
	leaf func([]string, string) (string, error),
) (any, error) {
	switch t := v.(type) {
	case config.Map:
		out := make(config.Map, len(t))

		for k, e := range t {
			x, err := w.transform(append(path[:len(path):len(path)], k), e, leaf)
			if err != nil {
				return nil, err
			}

			out[k] = x
		}

		return out, nil

	case []any:
		out := make([]any, len(t))

		for i, e := range t {
			x, err := w.transform(
				append(path[:len(path):len(path)], strconv.Itoa(i)), e, leaf,
			)
			if err != nil {
				return nil, err
			}

			out[i] = x
		}

		return out, nil

	case string:
		return leaf(path, t)

	default:
		return config.Clone(v), nil
	}
}

func (w *walker) encrypt(path []string, plain string) (string, error) {
	key := strings.Join(path, ".")

	if prev, ok := config.Get(w.ref, path...); ok {
		if s, ok := prev.(string); ok {
			old, err := w.c.Decrypt(s, w.password)
			if err != nil {
				return "", ErrDecryption.Wrap(err).With(slog.String("path", key))
			}

			if old == plain {
				w.reused++
				w.logger.Trace("reuse ciphertext", slog.String("path", key))

				return s, nil
			}
		}
	}

	enc, err := w.c.Encrypt(plain, w.password)
	if err != nil {
		return "", ErrEncryption.Wrap(err).With(slog.String("path", key))
	}

	w.fresh++
	w.logger.Trace("encrypt", slog.String("path", key))

	return enc, nil
}

func (w *walker) decrypt(path []string, cipher string) (string, error) {
	plain, err := w.c.Decrypt(cipher, w.password)
	if err != nil {
		return "", ErrDecryption.Wrap(err).
			With(slog.String("path", strings.Join(path, ".")))
	}

	return plain, nil
}
