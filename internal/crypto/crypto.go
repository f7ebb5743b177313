// Package crypto implements authenticated encryption for PII values. All
// identity numbers at rest are EncryptedValue; plaintext exists only for the
// lifetime of a single verification attempt.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"log/slog"

	dErrors "remedia/pkg/domain-errors"
)

const (
	// KeyLength is the AES-256 key size in bytes.
	KeyLength = 32
	// IVLength is the GCM nonce size in bytes.
	IVLength = 16
)

// EncryptedValue is the at-rest form of a sensitive field. The GCM
// authentication tag is appended to the ciphertext before base64 encoding.
type EncryptedValue struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// IsEncrypted reports whether v carries both a ciphertext and IV. Callers use
// it to decide whether a stored field still needs decryption or is legacy
// plaintext awaiting migration.
func (v EncryptedValue) IsEncrypted() bool {
	return v.Ciphertext != "" && v.IV != ""
}

// IsEncrypted is the loose-typed variant of EncryptedValue.IsEncrypted for
// values read out of document stores. It never panics.
func IsEncrypted(v any) bool {
	ev, ok := AsEncrypted(v)
	return ok && ev.IsEncrypted()
}

// AsEncrypted coerces a stored value into an EncryptedValue when possible.
func AsEncrypted(v any) (EncryptedValue, bool) {
	switch t := v.(type) {
	case EncryptedValue:
		return t, true
	case *EncryptedValue:
		if t == nil {
			return EncryptedValue{}, false
		}
		return *t, true
	case map[string]any:
		ct, _ := t["ciphertext"].(string)
		iv, _ := t["iv"].(string)
		if ct == "" && iv == "" {
			return EncryptedValue{}, false
		}
		return EncryptedValue{Ciphertext: ct, IV: iv}, true
	case map[string]string:
		if t["ciphertext"] == "" && t["iv"] == "" {
			return EncryptedValue{}, false
		}
		return EncryptedValue{Ciphertext: t["ciphertext"], IV: t["iv"]}, true
	}
	return EncryptedValue{}, false
}

// Recorder receives best-effort encryption_operation events. Implementations
// must never block or fail the calling operation.
type Recorder interface {
	EncryptionOperation(ctx context.Context, operation, dataType, result string)
}

type noopRecorder struct{}

func (noopRecorder) EncryptionOperation(context.Context, string, string, string) {}

// Box encrypts and decrypts single PII values with AES-256-GCM. Safe for
// concurrent use.
type Box struct {
	aead     cipher.AEAD
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Box.
type Option func(*Box)

// WithLogger sets the logger used by the Box.
func WithLogger(l *slog.Logger) Option {
	return func(b *Box) {
		b.logger = l
	}
}

// WithRecorder sets the audit recorder for encryption_operation events.
func WithRecorder(r Recorder) Option {
	return func(b *Box) {
		b.recorder = r
	}
}

// New builds a Box from a raw 32-byte key.
func New(key []byte, opts ...Option) (*Box, error) {
	if len(key) != KeyLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init cipher")
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVLength)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init gcm")
	}
	b := &Box{
		aead:     aead,
		logger:   slog.Default(),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Encrypt seals plaintext under a fresh random IV. dataType is a label for
// the audit trail ("nin", "bvn") and never influences the ciphertext.
func (b *Box) Encrypt(ctx context.Context, plaintext, dataType string) (EncryptedValue, error) {
	if plaintext == "" {
		return EncryptedValue{}, dErrors.New(dErrors.CodeInvalidInput, "plaintext must not be empty")
	}

	iv := make([]byte, IVLength)
	if _, err := rand.Read(iv); err != nil {
		b.recorder.EncryptionOperation(ctx, "encrypt", dataType, "failure")
		return EncryptedValue{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate iv")
	}

	sealed := b.aead.Seal(nil, iv, []byte(plaintext), nil)
	b.recorder.EncryptionOperation(ctx, "encrypt", dataType, "success")
	return EncryptedValue{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt opens v and returns the plaintext. Tampered or wrong-key data fails
// with CodeIntegrity and never yields altered plaintext.
func (b *Box) Decrypt(ctx context.Context, v EncryptedValue, dataType string) (string, error) {
	if !v.IsEncrypted() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "value is not encrypted")
	}

	sealed, err := base64.StdEncoding.DecodeString(v.Ciphertext)
	if err != nil {
		b.recorder.EncryptionOperation(ctx, "decrypt", dataType, "failure")
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode ciphertext")
	}
	iv, err := base64.StdEncoding.DecodeString(v.IV)
	if err != nil {
		b.recorder.EncryptionOperation(ctx, "decrypt", dataType, "failure")
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode iv")
	}
	if len(iv) != IVLength {
		b.recorder.EncryptionOperation(ctx, "decrypt", dataType, "failure")
		return "", dErrors.New(dErrors.CodeInvalidInput, "iv has wrong length")
	}

	plaintext, err := b.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		b.recorder.EncryptionOperation(ctx, "decrypt", dataType, "failure")
		return "", dErrors.Wrap(err, dErrors.CodeIntegrity, "authentication failed")
	}

	b.recorder.EncryptionOperation(ctx, "decrypt", dataType, "success")
	return string(plaintext), nil
}

// DecryptAny decrypts a stored value that may be an EncryptedValue in any of
// its serialized shapes, or already-plaintext from before encryption was
// rolled out. Plaintext passes through unchanged.
func (b *Box) DecryptAny(ctx context.Context, v any, dataType string) (string, error) {
	if ev, ok := AsEncrypted(v); ok && ev.IsEncrypted() {
		return b.Decrypt(ctx, ev, dataType)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "value is neither encrypted nor a string")
}

// EncryptFields seals each named field of record in place. Fields that are
// absent, empty, or already encrypted are skipped.
func (b *Box) EncryptFields(ctx context.Context, record map[string]any, fields ...string) error {
	for _, name := range fields {
		v, ok := record[name]
		if !ok || IsEncrypted(v) {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		ev, err := b.Encrypt(ctx, s, name)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeOf(err), "encrypt field "+name)
		}
		record[name] = ev
	}
	return nil
}

// DecryptFields opens each named encrypted field of record in place.
func (b *Box) DecryptFields(ctx context.Context, record map[string]any, fields ...string) error {
	for _, name := range fields {
		v, ok := record[name]
		if !ok || !IsEncrypted(v) {
			continue
		}
		plain, err := b.DecryptAny(ctx, v, name)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeOf(err), "decrypt field "+name)
		}
		record[name] = plain
	}
	return nil
}

// ParseKey decodes a 64-hex-character key string into raw key bytes.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "encryption key is not valid hex")
	}
	if len(key) != KeyLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "encryption key must decode to 32 bytes")
	}
	return key, nil
}

// GenerateKey returns a fresh random key in the hex form ParseKey accepts.
func GenerateKey() (string, error) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate key")
	}
	return hex.EncodeToString(key), nil
}
