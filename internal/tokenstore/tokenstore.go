// Package tokenstore encrypts Slack bot tokens at rest with Fernet
// (AES-128-CBC + HMAC-SHA256). Keys are the standard 32-byte URL-safe
// base64 Fernet keys, so tokens written by other Fernet implementations
// using the same key can be read back.
package tokenstore

import (
	"errors"
	"strings"

	"github.com/fernet/fernet-go"
)

var (
	// ErrNoKey is returned when no encryption key is configured.
	ErrNoKey = errors.New("tokenstore: encryption key is not configured")
	// ErrInvalidToken is returned when a ciphertext fails verification.
	ErrInvalidToken = errors.New("tokenstore: invalid or tampered token")
)

// Cipher encrypts with the primary key and decrypts with any configured key,
// which allows key rotation: prepend the new key, keep the old ones until
// every row has been rewritten.
type Cipher struct {
	keys []*fernet.Key
}

// New parses one or more comma-separated Fernet keys.
func New(encodedKeys string) (*Cipher, error) {
	var keys []*fernet.Key
	for _, part := range strings.Split(encodedKeys, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := fernet.DecodeKey(part)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, ErrNoKey
	}
	return &Cipher{keys: keys}, nil
}

// Encrypt returns the Fernet token for plain.
func (c *Cipher) Encrypt(plain string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plain), c.keys[0])
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a token produced by Encrypt. Tokens never
// expire.
func (c *Cipher) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), -1, c.keys)
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}

// GenerateKey returns a fresh encoded Fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}
