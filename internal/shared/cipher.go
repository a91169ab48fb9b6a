package shared

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/chacha20poly1305"
)

const cipherPrefix = "v1."

// TokenCipher encrypts OAuth tokens before they are written to the database.
//
// A cipher built without a key passes values through unchanged. Values that fail to
// decrypt are returned as stored, so rows written before a key was configured keep
// working until they are rewritten.
type TokenCipher struct {
	key    []byte
	logger *log.Logger
	warn   sync.Once
}

// NewTokenCipher builds a cipher from a base64 encoded 32 byte key.
//
// An empty key yields a passthrough cipher. A key that does not decode to 32 bytes returns [ErrInvalidKey].
func NewTokenCipher(key string, logger *log.Logger) (*TokenCipher, error) {
	if logger == nil {
		logger = NewLogger(nil)
	}

	c := &TokenCipher{logger: logger}

	key = strings.TrimSpace(key)
	if key == "" {
		return c, nil
	}

	raw, err := decodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: key must decode to %d bytes, got %d", ErrInvalidKey, chacha20poly1305.KeySize, len(raw))
	}

	c.key = raw
	return c, nil
}

func decodeKey(key string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(key); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("key is not valid base64")
}

// GenerateKey returns a new random key suitable for [NewTokenCipher].
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// Enabled reports whether values are actually encrypted.
func (c *TokenCipher) Enabled() bool {
	return c != nil && len(c.key) > 0
}

// Encrypt seals plaintext with XChaCha20-Poly1305. Empty input stays empty.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}
	if !c.Enabled() {
		c.warnPlaintext()
		return plaintext, nil
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return cipherPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by [TokenCipher.Encrypt].
//
// Values that cannot be decrypted are returned unchanged.
func (c *TokenCipher) Decrypt(ciphertext string) string {
	if ciphertext == "" || !c.Enabled() {
		return ciphertext
	}

	plaintext, err := c.open(ciphertext)
	if err != nil {
		c.logger.Warn("failed to decrypt token, treating as legacy plaintext", "error", err)
		return ciphertext
	}
	return plaintext
}

func (c *TokenCipher) open(value string) (string, error) {
	if !strings.HasPrefix(value, cipherPrefix) {
		return "", fmt.Errorf("missing %q prefix", cipherPrefix)
	}

	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, cipherPrefix))
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, data := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plaintext), nil
}

func (c *TokenCipher) warnPlaintext() {
	if c == nil {
		return
	}
	c.warn.Do(func() {
		c.logger.Warn("TOKEN_ENCRYPTION_KEY is not set, tokens will be stored in plaintext; generate one with: statify setup key")
	})
}
