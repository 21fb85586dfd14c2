package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/glowpress/keyline/internal/config"
	"go.uber.org/fx"
)

var (
	ErrNoSecret             = errors.New("vault_secret_not_configured")
	ErrMalformedPayload     = errors.New("malformed_payload")
	ErrAuthenticationFailed = errors.New("authentication_failed")
)

const nonceSize = 12

// Vault provides authenticated encryption and one-way hashing for values at
// rest. The AES-256 key is derived as SHA-256 of the configured secret.
type Vault struct {
	key []byte
}

func New(cfg config.Config) *Vault {
	secret := strings.TrimSpace(cfg.VaultSecret)
	if secret == "" {
		return &Vault{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &Vault{key: sum[:]}
}

// NewWithSecret builds a vault from an explicit secret, for tests.
func NewWithSecret(secret string) *Vault {
	sum := sha256.Sum256([]byte(secret))
	return &Vault{key: sum[:]}
}

// Encrypt seals plaintext with AES-256-GCM under a fresh nonce and encodes
// the result as ivHex:tagHex:ciphertextHex.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if len(v.key) == 0 {
		return "", ErrNoSecret
	}

	aead, err := newAEAD(v.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens a payload produced by Encrypt. Empty input yields empty
// output without error; a tampered tag or ciphertext fails authentication.
func (v *Vault) Decrypt(payload string) (string, error) {
	if strings.TrimSpace(payload) == "" {
		return "", nil
	}
	if len(v.key) == 0 {
		return "", ErrNoSecret
	}

	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return "", ErrMalformedPayload
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrMalformedPayload
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedPayload
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedPayload
	}

	aead, err := newAEAD(v.key)
	if err != nil {
		return "", err
	}
	if len(tag) != aead.Overhead() {
		return "", ErrMalformedPayload
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	return string(plaintext), nil
}

// Hash returns the SHA-256 hex digest of value, for one-way fingerprints of
// sensitive values that never need recovery.
func (v *Vault) Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Module wires the vault.
var Module = fx.Module("vault",
	fx.Provide(New),
)
