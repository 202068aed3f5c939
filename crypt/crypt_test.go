package crypt

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/stackcomp/config"
)

var testCost = Cost{N: 16, R: 1, P: 1}

func newTestAES() *AES { return NewAES(WithCost(testCost)) }

func TestAESRoundTrip(t *testing.T) {
	a := newTestAES()

	for _, plain := range []string{"", "secret", "ünïcødé", strings.Repeat("x", 1024)} {
		enc, err := a.Encrypt(plain, "pw")
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", plain, err)
		}

		if !IsCiphertext(enc) {
			t.Errorf("Encrypt(%q) = %q, missing version prefix", plain, enc)
		}

		got, err := newTestAES().Decrypt(enc, "pw")
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}

		if got != plain {
			t.Errorf("Decrypt() = %q, want %q", got, plain)
		}
	}
}

func TestAESNonceIsFresh(t *testing.T) {
	a := newTestAES()

	x, _ := a.Encrypt("same", "pw")
	y, _ := a.Encrypt("same", "pw")

	if x == y {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestAESMemoIsPerPassword(t *testing.T) {
	a := newTestAES()

	enc, err := a.Encrypt("secret", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Encrypt("other", "pw2"); err != nil {
		t.Fatal(err)
	}

	if len(a.salts) != 2 {
		t.Errorf("salts = %d, want one per password", len(a.salts))
	}

	if _, err := a.Decrypt(enc, "pw2"); !errors.Is(err, ErrDecryption) {
		t.Errorf("Decrypt() with another memoized password error = %v, want ErrDecryption", err)
	}

	got, err := a.Decrypt(enc, "pw")
	if err != nil || got != "secret" {
		t.Errorf("Decrypt() = %q, %v, want secret", got, err)
	}
}

func TestAESDecryptErrors(t *testing.T) {
	a := newTestAES()

	enc, err := a.Encrypt("secret", "pw")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		text, pw string
		want     error
	}{
		{name: "wrong password", text: enc, pw: "nope", want: ErrDecryption},
		{name: "empty password", text: enc, pw: "", want: ErrPassword},
		{name: "no prefix", text: "secret", pw: "pw", want: ErrFormat},
		{name: "bad base64", text: Version + "!!", pw: "pw", want: ErrFormat},
		{name: "truncated", text: Version + "AAAA", pw: "pw", want: ErrFormat},
		{name: "tampered", text: tamper(t, enc), pw: "pw", want: ErrDecryption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Decrypt(tt.text, tt.pw); !errors.Is(err, tt.want) {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func tamper(t *testing.T, enc string) string {
	t.Helper()

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(enc, Version))
	if err != nil {
		t.Fatal(err)
	}

	raw[len(raw)-1] ^= 0xff

	return Version + base64.RawURLEncoding.EncodeToString(raw)
}

func testConfig() config.Map {
	return config.Map{
		"db": config.Map{
			"user": "admin",
			"pass": "hunter2",
			"port": int64(5432),
		},
		"tokens":  []any{"t1", "t2"},
		"enabled": true,
	}
}

func TestEncryptConfigRoundTrip(t *testing.T) {
	a := newTestAES()
	cfg := testConfig()

	enc, err := EncryptConfig(a, cfg, "pw", nil)
	if err != nil {
		t.Fatalf("EncryptConfig() error = %v", err)
	}

	if diff := cmp.Diff(testConfig(), cfg); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}

	db := enc["db"].(config.Map)
	if !IsCiphertext(db["user"].(string)) || db["port"] != int64(5432) {
		t.Errorf("unexpected encrypted db section: %v", db)
	}

	if enc["enabled"] != true {
		t.Errorf("enabled = %v, want true", enc["enabled"])
	}

	dec, err := DecryptConfig(a, enc, "pw")
	if err != nil {
		t.Fatalf("DecryptConfig() error = %v", err)
	}

	if diff := cmp.Diff(cfg, dec); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncryptConfigReusesReference(t *testing.T) {
	ref, err := EncryptConfig(newTestAES(), testConfig(), "pw", nil)
	if err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg["db"].(config.Map)["pass"] = "changed"

	enc, err := EncryptConfig(newTestAES(), cfg, "pw", ref)
	if err != nil {
		t.Fatalf("EncryptConfig() error = %v", err)
	}

	gotDB, refDB := enc["db"].(config.Map), ref["db"].(config.Map)

	if gotDB["user"] != refDB["user"] {
		t.Error("unchanged leaf db.user was not reused")
	}

	if gotDB["pass"] == refDB["pass"] {
		t.Error("changed leaf db.pass was reused")
	}

	if diff := cmp.Diff(ref["tokens"], enc["tokens"]); diff != "" {
		t.Errorf("unchanged list not reused (-ref +got):\n%s", diff)
	}

	dec, err := DecryptConfig(newTestAES(), enc, "pw")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(cfg, dec); diff != "" {
		t.Errorf("decrypted mismatch (-want +got):\n%s", diff)
	}
}

func TestEncryptConfigReferenceFailure(t *testing.T) {
	ref, err := EncryptConfig(newTestAES(), testConfig(), "old", nil)
	if err != nil {
		t.Fatal(err)
	}

	enc, err := EncryptConfig(newTestAES(), testConfig(), "new", ref)
	if !errors.Is(err, ErrDecryption) {
		t.Errorf("EncryptConfig() error = %v, want ErrDecryption", err)
	}

	if enc != nil {
		t.Errorf("EncryptConfig() = %v, want nil on failure", enc)
	}
}

func TestDecryptConfigAtomic(t *testing.T) {
	enc, err := EncryptConfig(newTestAES(), testConfig(), "pw", nil)
	if err != nil {
		t.Fatal(err)
	}

	enc["db"].(config.Map)["user"] = "plain"

	dec, err := DecryptConfig(newTestAES(), enc, "pw")
	if !errors.Is(err, ErrDecryption) && !errors.Is(err, ErrFormat) {
		t.Errorf("DecryptConfig() error = %v, want decryption failure", err)
	}

	if dec != nil {
		t.Errorf("DecryptConfig() = %v, want nil on failure", dec)
	}
}

func TestEmptyPassword(t *testing.T) {
	if _, err := EncryptConfig(newTestAES(), testConfig(), "", nil); !errors.Is(err, ErrPassword) {
		t.Errorf("EncryptConfig() error = %v, want ErrPassword", err)
	}

	if _, err := DecryptConfig(newTestAES(), testConfig(), ""); !errors.Is(err, ErrPassword) {
		t.Errorf("DecryptConfig() error = %v, want ErrPassword", err)
	}
}
