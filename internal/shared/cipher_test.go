package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestCipher(t *testing.T) *TokenCipher {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	c, err := NewTokenCipher(key, NewLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return c
}

func TestTokenCipher(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		c := newTestCipher(t)
		if !c.Enabled() {
			t.Fatal("expected cipher to be enabled")
		}

		sealed, err := c.Encrypt("BQC-access-token")
		if err != nil {
			t.Fatalf("failed to encrypt: %v", err)
		}
		if sealed == "BQC-access-token" {
			t.Fatal("expected ciphertext to differ from plaintext")
		}
		if !strings.HasPrefix(sealed, cipherPrefix) {
			t.Errorf("expected %q prefix, got %s", cipherPrefix, sealed)
		}

		if got := c.Decrypt(sealed); got != "BQC-access-token" {
			t.Errorf("expected decrypted token, got %s", got)
		}
	})

	t.Run("Nonce Is Random", func(t *testing.T) {
		c := newTestCipher(t)
		a, _ := c.Encrypt("token")
		b, _ := c.Encrypt("token")
		if a == b {
			t.Error("expected distinct ciphertexts for the same plaintext")
		}
	})

	t.Run("Empty Values", func(t *testing.T) {
		c := newTestCipher(t)
		sealed, err := c.Encrypt("")
		if err != nil || sealed != "" {
			t.Errorf("expected empty passthrough, got %q, %v", sealed, err)
		}
		if got := c.Decrypt(""); got != "" {
			t.Errorf("expected empty decrypt, got %q", got)
		}
	})

	t.Run("Legacy Plaintext", func(t *testing.T) {
		var buf bytes.Buffer
		key, _ := GenerateKey()
		c, err := NewTokenCipher(key, NewLogger(&buf))
		if err != nil {
			t.Fatalf("failed to create cipher: %v", err)
		}

		if got := c.Decrypt("plain-legacy-token"); got != "plain-legacy-token" {
			t.Errorf("expected legacy value returned as-is, got %s", got)
		}
		if !strings.Contains(buf.String(), "legacy plaintext") {
			t.Error("expected a warning about legacy plaintext")
		}
	})

	t.Run("Wrong Key", func(t *testing.T) {
		a := newTestCipher(t)
		b := newTestCipher(t)
		sealed, _ := a.Encrypt("secret")
		if got := b.Decrypt(sealed); got != sealed {
			t.Errorf("expected undecryptable value returned unchanged, got %s", got)
		}
	})

	t.Run("No Key Passthrough", func(t *testing.T) {
		var buf bytes.Buffer
		c, err := NewTokenCipher("", NewLogger(&buf))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.Enabled() {
			t.Error("expected cipher to be disabled")
		}

		for i := 0; i < 2; i++ {
			got, err := c.Encrypt("token")
			if err != nil || got != "token" {
				t.Errorf("expected plaintext passthrough, got %q, %v", got, err)
			}
		}
		if n := strings.Count(buf.String(), "TOKEN_ENCRYPTION_KEY"); n != 1 {
			t.Errorf("expected exactly one plaintext warning, got %d", n)
		}
	})

	t.Run("Invalid Key", func(t *testing.T) {
		tt := []string{"not base64 !!", "c2hvcnQ="}
		for _, key := range tt {
			_, err := NewTokenCipher(key, nil)
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("expected ErrInvalidKey for %q, got %v", key, err)
			}
		}
	})
}
