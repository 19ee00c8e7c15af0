// Package vault provides authenticated field-level encryption for personal
// data at rest, plus the keyed hashing and token helpers the rest of the
// application uses for non-reversible comparisons.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/hkdf"

	dErrors "paydesk/pkg/domain-errors"
)

const (
	keyLen   = 32
	saltLen  = 16
	nonceLen = 12
	tagLen   = 16

	// minBlobLen is the decoded size of an encrypted empty string; anything
	// shorter cannot be a well-formed blob.
	minBlobLen = saltLen + nonceLen + tagLen
)

// Vault performs authenticated encryption of individual string values with a
// 256-bit master key. Every operation derives a fresh per-call sub-key, so
// the master key never touches a cipher directly.
type Vault struct {
	key    []byte
	logger *slog.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger used by the tolerant read path.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) { v.logger = logger }
}

// New builds a Vault from a base64-encoded 256-bit key. A missing or
// wrong-sized key is fatal: refusing to construct beats silently writing
// plaintext.
func New(base64Key string, opts ...Option) (*Vault, error) {
	if base64Key == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vault key is required")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "vault key is not valid base64")
	}
	if len(key) != keyLen {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "vault key must be %d bytes, got %d", keyLen, len(key))
	}

	v := &Vault{key: key, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Encrypt seals plaintext into a base64 blob of salt‖nonce‖tag‖ciphertext.
// Salt and nonce are freshly random per call; the sub-key is derived from the
// master key and salt via HKDF-SHA256. Empty input yields empty output.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := v.cipherFor(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the blob layout wants the
	// tag first so offsets stay fixed regardless of plaintext length.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	blob := make([]byte, 0, minBlobLen+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt, verifying the authentication tag. A malformed
// blob or failed verification returns an authentication-failure error.
func (v *Vault) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAuthenticationFailure, "blob is not valid base64")
	}
	if len(raw) < minBlobLen {
		return "", dErrors.New(dErrors.CodeAuthenticationFailure, "blob is too short")
	}

	salt := raw[:saltLen]
	nonce := raw[saltLen : saltLen+nonceLen]
	tag := raw[saltLen+nonceLen : minBlobLen]
	ciphertext := raw[minBlobLen:]

	gcm, err := v.cipherFor(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeAuthenticationFailure, "authentication failed")
	}
	return string(plaintext), nil
}

// SafeDecrypt is the tolerant read path. Values that do not look like an
// encrypted blob are returned unchanged: the store holds records written
// before encryption was enabled and they must stay readable without a
// migration. If the value does look encrypted but fails to decrypt, the
// stored value is returned so the record remains inspectable.
func (v *Vault) SafeDecrypt(value string) string {
	if !looksEncrypted(value) {
		return value
	}
	plaintext, err := v.Decrypt(value)
	if err != nil {
		v.logger.Warn("vault: decrypt failed, returning stored value", "error", err)
		return value
	}
	return plaintext
}

// SecureHash returns a hex HMAC-SHA256 of value keyed by the vault key, for
// non-reversible comparisons such as dedup without storing plaintext.
func (v *Vault) SecureHash(value string) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// SecureCompare reports whether a equals b in constant time. The length
// check short-circuits, which leaks only the lengths, not the contents.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return hmac.Equal([]byte(a), []byte(b))
}

// GenerateToken returns n cryptographically random bytes, hex-encoded.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// cipherFor derives the per-call sub-key for salt and returns an AES-GCM AEAD.
func (v *Vault) cipherFor(salt []byte) (cipher.AEAD, error) {
	subKey := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, v.key, salt, nil), subKey); err != nil {
		return nil, fmt.Errorf("derive sub-key: %w", err)
	}
	block, err := aes.NewCipher(subKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}

// looksEncrypted classifies whether value has the framing of an Encrypt
// blob: clean base64 and at least the fixed-header length once decoded.
func looksEncrypted(value string) bool {
	if value == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return len(raw) >= minBlobLen
}
