// Package linktoken issues and redeems the one-time verification links sent
// to customers. A link carries a signed JWT naming the entry plus a random
// secret; only the bcrypt hash of the secret is ever stored, so a leaked
// store cannot mint working links.
package linktoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/platform/sentinel"
)

// Claims is the JWT payload for a verification link.
type Claims struct {
	EntryID string `json:"entry_id"`
	jwt.RegisteredClaims
}

// IssuedLink is handed to the notification boundary. Secret appears only
// here, never in storage.
type IssuedLink struct {
	Token     string
	Secret    string
	ExpiresAt time.Time
}

// Store persists secret hashes per entry. Save overwrites any previous link
// for the entry, which revokes it.
type Store interface {
	Save(ctx context.Context, entryID, secretHash string, expiresAt time.Time) error
	Get(ctx context.Context, entryID string) (secretHash string, expiresAt time.Time, err error)
	Delete(ctx context.Context, entryID string) error
}

// Issuer creates and redeems links.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
	store      Store
	clock      func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock injects the time source for tests.
func WithClock(clock func() time.Time) IssuerOption {
	return func(i *Issuer) { i.clock = clock }
}

func NewIssuer(signingKey string, ttl time.Duration, store Store, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		signingKey: []byte(signingKey),
		ttl:        ttl,
		store:      store,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a fresh link for an entry, revoking any earlier one.
func (i *Issuer) Issue(ctx context.Context, entryID string) (IssuedLink, error) {
	if entryID == "" {
		return IssuedLink{}, dErrors.New(dErrors.CodeInvalidInput, "entry id is required")
	}

	secret, err := generateSecret()
	if err != nil {
		return IssuedLink{}, err
	}
	hash, err := hashSecret(secret)
	if err != nil {
		return IssuedLink{}, err
	}

	now := i.clock()
	expiresAt := now.Add(i.ttl)
	if err := i.store.Save(ctx, entryID, hash, expiresAt); err != nil {
		return IssuedLink{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist link secret")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		EntryID: entryID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return IssuedLink{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign link token")
	}

	return IssuedLink{Token: signed, Secret: secret, ExpiresAt: expiresAt}, nil
}

// Redeem validates a link and consumes it. A second redemption of the same
// link fails with sentinel.ErrAlreadyUsed.
func (i *Issuer) Redeem(ctx context.Context, token, secret string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	}, jwt.WithTimeFunc(i.clock))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			// Claims are still parsed for expired tokens; surface the
			// entry id so the caller can react to the expiry.
			if parsed != nil {
				if claims, ok := parsed.Claims.(*Claims); ok {
					return claims.EntryID, sentinel.ErrExpired
				}
			}
			return "", sentinel.ErrExpired
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid link token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.EntryID == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid link token")
	}

	hash, expiresAt, err := i.store.Get(ctx, claims.EntryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", sentinel.ErrAlreadyUsed
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load link secret")
	}
	if i.clock().After(expiresAt) {
		return claims.EntryID, sentinel.ErrExpired
	}
	if err := verifySecret(secret, hash); err != nil {
		return "", err
	}

	if err := i.store.Delete(ctx, claims.EntryID); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "consume link")
	}
	return claims.EntryID, nil
}

// generateSecret creates a cryptographically secure random secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

func verifySecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid link secret")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}
