package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"remedia/internal/crypto"
	"remedia/internal/identity"
)

// Duplicate describes an already-verified entry carrying the same identity
// number. Enough to attribute the earlier verification without re-reading it.
type Duplicate struct {
	EntryID    string    `json:"entryId"`
	BrokerID   string    `json:"brokerId,omitempty"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// DuplicateChecker answers "has this identity number already been verified?"
// before an entry reaches a paid provider call. Lookups decrypt-compare
// against every verified entry, so results are cached for a short window.
// The checker fails open: any store or decrypt error reads as "no duplicate"
// and the pipeline proceeds to the provider.
type DuplicateChecker struct {
	entries identity.Store
	box     *crypto.Box
	cache   *cache.Cache
	logger  *slog.Logger
}

type DuplicateCheckerOption func(*DuplicateChecker)

func WithDuplicateCheckerLogger(l *slog.Logger) DuplicateCheckerOption {
	return func(c *DuplicateChecker) { c.logger = l }
}

func NewDuplicateChecker(entries identity.Store, box *crypto.Box, opts ...DuplicateCheckerOption) *DuplicateChecker {
	c := &DuplicateChecker{
		entries: entries,
		box:     box,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports whether another entry with the same kind and plaintext
// identity number has already been verified. excludeID keeps an entry from
// matching itself on a re-run.
func (c *DuplicateChecker) Check(ctx context.Context, kind identity.Kind, plaintext, excludeID string) (Duplicate, bool) {
	key := cacheKey(kind, plaintext)
	if cached, found := c.cache.Get(key); found {
		dup := cached.(Duplicate)
		if dup.EntryID == "" || dup.EntryID == excludeID {
			return Duplicate{}, false
		}
		return dup, true
	}

	dup, found := c.scan(ctx, kind, plaintext, excludeID)
	c.cache.Set(key, dup, cache.DefaultExpiration)
	return dup, found
}

// Forget drops the cached answer for one identity number, for use after an
// entry's verification is revoked.
func (c *DuplicateChecker) Forget(kind identity.Kind, plaintext string) {
	c.cache.Delete(cacheKey(kind, plaintext))
}

func (c *DuplicateChecker) scan(ctx context.Context, kind identity.Kind, plaintext, excludeID string) (Duplicate, bool) {
	verified, err := c.entries.ListByStatus(ctx,
		identity.StatusVerified, identity.StatusApproved)
	if err != nil {
		c.logger.WarnContext(ctx, "duplicate scan aborted, proceeding without", "error", err)
		return Duplicate{}, false
	}

	for _, other := range verified {
		if other.ID == excludeID || other.Kind != kind {
			continue
		}
		otherPlain, err := c.box.Decrypt(ctx, other.IdentityNumber, string(other.Kind))
		if err != nil {
			c.logger.WarnContext(ctx, "duplicate scan skipped an undecryptable entry",
				"entry_id", other.ID, "error", err)
			continue
		}
		if otherPlain == plaintext {
			return Duplicate{
				EntryID:    other.ID,
				BrokerID:   other.BrokerID,
				VerifiedAt: other.UpdatedAt,
			}, true
		}
	}
	return Duplicate{}, false
}

// cacheKey hashes the plaintext so identity numbers never sit in cache keys.
func cacheKey(kind identity.Kind, plaintext string) string {
	sum := sha256.Sum256([]byte(string(kind) + ":" + plaintext))
	return hex.EncodeToString(sum[:])
}
