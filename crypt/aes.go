package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// Version prefixes every ciphertext produced by [AES].
const Version = "v1:"

const (
	saltSize = 16
	keySize  = 32
)

// Cost holds scrypt parameters.
type Cost struct {
	N, R, P int
}

// DefaultCost is the scrypt cost recommended for interactive use.
var DefaultCost = Cost{N: 1 << 15, R: 8, P: 1}

// AES implements [Cryptor] with AES-256-GCM under a key derived from the
// password with scrypt.
//
// Derived keys are memoized per salt and password, and one salt is drawn
// per password for all encryptions made by the same AES value. Use a fresh
// AES for each pass.
type AES struct {
	cost Cost
	rand io.Reader

	mu    sync.Mutex
	keys  map[keyID][]byte
	salts map[[sha256.Size]byte][]byte
}

type keyID struct {
	salt     string
	password [sha256.Size]byte
}

// AESOption configures an [AES].
type AESOption func(*AES)

// WithCost sets the scrypt cost.
func WithCost(c Cost) AESOption { return func(a *AES) { a.cost = c } }

// WithRand sets the source of salts and nonces.
func WithRand(r io.Reader) AESOption { return func(a *AES) { a.rand = r } }

// NewAES returns an [AES] using [DefaultCost] and crypto/rand.
func NewAES(opts ...AESOption) *AES {
	a := &AES{
		cost:  DefaultCost,
		rand:  rand.Reader,
		keys:  make(map[keyID][]byte),
		salts: make(map[[sha256.Size]byte][]byte),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Encrypt seals plain and returns [Version] followed by the unpadded
// base64url encoding of salt, nonce and sealed text.
func (a *AES) Encrypt(plain, password string) (string, error) {
	if password == "" {
		return "", ErrPassword.Wrapf("empty password")
	}

	salt, err := a.salt(password)
	if err != nil {
		return "", err
	}

	aead, err := a.aead(salt, password)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(a.rand, nonce); err != nil {
		return "", ErrEncryption.Wrap(err)
	}

	buf := make([]byte, 0, len(salt)+len(nonce)+len(plain)+aead.Overhead())
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	buf = aead.Seal(buf, nonce, []byte(plain), nil)

	return Version + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Decrypt opens a value produced by [AES.Encrypt]. A wrong password or a
// tampered value fails with [ErrDecryption].
func (a *AES) Decrypt(text, password string) (string, error) {
	if password == "" {
		return "", ErrPassword.Wrapf("empty password")
	}

	body, ok := strings.CutPrefix(text, Version)
	if !ok {
		return "", ErrFormat.Wrapf("missing version prefix")
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", ErrFormat.Wrap(err)
	}

	if len(raw) < saltSize {
		return "", ErrFormat.Wrapf("truncated ciphertext").
			With(slog.Int("length", len(raw)))
	}

	salt, rest := raw[:saltSize], raw[saltSize:]

	aead, err := a.aead(salt, password)
	if err != nil {
		return "", err
	}

	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return "", ErrFormat.Wrapf("truncated ciphertext").
			With(slog.Int("length", len(raw)))
	}

	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryption.Wrap(err)
	}

	return string(plain), nil
}

// IsCiphertext reports whether s looks like a value produced by [AES].
func IsCiphertext(s string) bool { return strings.HasPrefix(s, Version) }

func (a *AES) salt(password string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := sha256.Sum256([]byte(password))
	if s, ok := a.salts[id]; ok {
		return s, nil
	}

	s := make([]byte, saltSize)
	if _, err := io.ReadFull(a.rand, s); err != nil {
		return nil, ErrEncryption.Wrap(err)
	}

	a.salts[id] = s

	return s, nil
}

func (a *AES) aead(salt []byte, password string) (cipher.AEAD, error) {
	key, err := a.key(salt, password)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrEncryption.Wrap(err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption.Wrap(err)
	}

	return aead, nil
}

func (a *AES) key(salt []byte, password string) ([]byte, error) {
	id := keyID{salt: string(salt), password: sha256.Sum256([]byte(password))}

	a.mu.Lock()
	defer a.mu.Unlock()

	if k, ok := a.keys[id]; ok {
		return k, nil
	}

	k, err := scrypt.Key([]byte(password), salt, a.cost.N, a.cost.R, a.cost.P, keySize)
	if err != nil {
		return nil, ErrEncryption.Wrap(err).With(slog.Int("n", a.cost.N))
	}

	a.keys[id] = k

	return k, nil
}
