package linktoken_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remedia/internal/verify/linktoken"
	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/platform/sentinel"
)

func testIssuer(clock *time.Time) *linktoken.Issuer {
	return linktoken.NewIssuer("signing-key-for-tests", 72*time.Hour,
		linktoken.NewInMemoryStore(),
		linktoken.WithClock(func() time.Time { return *clock }))
}

func TestIssueRedeem_RoundTrip(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	issuer := testIssuer(&now)
	ctx := context.Background()

	link, err := issuer.Issue(ctx, "e-1")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.NotEmpty(t, link.Secret)
	assert.Equal(t, now.Add(72*time.Hour), link.ExpiresAt)

	entryID, err := issuer.Redeem(ctx, link.Token, link.Secret)
	require.NoError(t, err)
	assert.Equal(t, "e-1", entryID)
}

func TestRedeem_IsOneTime(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	issuer := testIssuer(&now)
	ctx := context.Background()

	link, err := issuer.Issue(ctx, "e-1")
	require.NoError(t, err)

	_, err = issuer.Redeem(ctx, link.Token, link.Secret)
	require.NoError(t, err)

	_, err = issuer.Redeem(ctx, link.Token, link.Secret)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

func TestRedeem_ExpiredLink(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	issuer := testIssuer(&now)
	ctx := context.Background()

	link, err := issuer.Issue(ctx, "e-1")
	require.NoError(t, err)

	now = now.Add(73 * time.Hour)
	_, err = issuer.Redeem(ctx, link.Token, link.Secret)
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestRedeem_WrongSecret(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	issuer := testIssuer(&now)
	ctx := context.Background()

	link, err := issuer.Issue(ctx, "e-1")
	require.NoError(t, err)

	_, err = issuer.Redeem(ctx, link.Token, "not-the-secret")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// The failed attempt must not consume the link.
	_, err = issuer.Redeem(ctx, link.Token, link.Secret)
	assert.NoError(t, err)
}

func TestRedeem_TamperedToken(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	issuer := testIssuer(&now)
	other := linktoken.NewIssuer("different-signing-key", 72*time.Hour,
		linktoken.NewInMemoryStore(),
		linktoken.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	link, err := other.Issue(ctx, "e-1")
	require.NoError(t, err)

	_, err = issuer.Redeem(ctx, link.Token, link.Secret)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestIssue_ReissueRevokesEarlierLink(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	issuer := testIssuer(&now)
	ctx := context.Background()

	first, err := issuer.Issue(ctx, "e-1")
	require.NoError(t, err)
	second, err := issuer.Issue(ctx, "e-1")
	require.NoError(t, err)

	_, err = issuer.Redeem(ctx, first.Token, first.Secret)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = issuer.Redeem(ctx, second.Token, second.Secret)
	assert.NoError(t, err)
}

func TestIssue_RequiresEntryID(t *testing.T) {
	now := time.Now()
	issuer := testIssuer(&now)
	_, err := issuer.Issue(context.Background(), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
