//go:build integration

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remedia/internal/crypto"
	"remedia/internal/identity"
	"remedia/pkg/platform/sentinel"
	"remedia/pkg/testutil/containers"
)

const identitySchema = `
CREATE TABLE IF NOT EXISTS identity_entries (
	id                  TEXT PRIMARY KEY,
	broker_id           TEXT NOT NULL DEFAULT '',
	email               TEXT NOT NULL,
	first_name          TEXT NOT NULL DEFAULT '',
	last_name           TEXT NOT NULL DEFAULT '',
	gender              TEXT NOT NULL DEFAULT '',
	date_of_birth       TEXT NOT NULL DEFAULT '',
	phone_number        TEXT NOT NULL DEFAULT '',
	company_name        TEXT NOT NULL DEFAULT '',
	registration_date   TEXT NOT NULL DEFAULT '',
	kind                TEXT NOT NULL,
	identity_ciphertext TEXT NOT NULL,
	identity_iv         TEXT NOT NULL,
	status              TEXT NOT NULL,
	resend_count        INT NOT NULL DEFAULT 0,
	details             JSONB,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS brokers (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	email TEXT NOT NULL
);
`

func pgEntry(id string, status identity.Status, createdAt time.Time) identity.Entry {
	return identity.Entry{
		ID:          id,
		BrokerID:    "b-1",
		Email:       id + "@example.com",
		FirstName:   "Adaeze",
		LastName:    "Okafor",
		Gender:      "female",
		DateOfBirth: "1969/05/12",
		PhoneNumber: "08031234567",
		Kind:        identity.KindNIN,
		IdentityNumber: crypto.EncryptedValue{
			Ciphertext: "Y2lwaGVydGV4dA==",
			IV:         "aXZpdml2aXZpdml2aXY=",
		},
		Status:    status,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
}

func TestPostgresStore_CreateGetUpdate(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Exec(t, identitySchema)
	store := identity.NewPostgresStore(pg.DB)
	ctx := context.Background()
	now := time.Now()

	entry := pgEntry("pg-1", identity.StatusPending, now)
	require.NoError(t, store.Create(ctx, entry))

	assert.ErrorIs(t, store.Create(ctx, entry), sentinel.ErrConflict)

	got, err := store.Get(ctx, "pg-1")
	require.NoError(t, err)
	assert.Equal(t, entry.IdentityNumber, got.IdentityNumber)
	assert.Equal(t, identity.StatusPending, got.Status)
	assert.Nil(t, got.Details)

	got.Status = identity.StatusVerificationFailed
	got.ResendCount = 2
	got.Details = &identity.VerificationDetails{
		Provider:    "datapro",
		ErrorCode:   "NIN_NOT_FOUND",
		AttemptedAt: now.UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Update(ctx, got))

	updated, err := store.Get(ctx, "pg-1")
	require.NoError(t, err)
	assert.Equal(t, identity.StatusVerificationFailed, updated.Status)
	assert.Equal(t, 2, updated.ResendCount)
	require.NotNil(t, updated.Details)
	assert.Equal(t, "NIN_NOT_FOUND", updated.Details.ErrorCode)

	_, err = store.Get(ctx, "pg-missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, pgEntry("pg-missing", identity.StatusPending, now)), sentinel.ErrNotFound)
}

func TestPostgresStore_Listing(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Exec(t, identitySchema)
	store := identity.NewPostgresStore(pg.DB)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, store.Create(ctx, pgEntry("pg-a", identity.StatusPending, base)))
	require.NoError(t, store.Create(ctx, pgEntry("pg-b", identity.StatusLinkSent, base.Add(time.Second))))
	require.NoError(t, store.Create(ctx, pgEntry("pg-c", identity.StatusEmailSent, base.Add(2*time.Second))))
	require.NoError(t, store.Create(ctx, pgEntry("pg-d", identity.StatusVerified, base.Add(3*time.Second))))

	all, err := store.ListByStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	verified, err := store.ListByStatus(ctx, identity.StatusVerified)
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, "pg-d", verified[0].ID)

	eligible, err := store.ListEligible(ctx, 0)
	require.NoError(t, err)
	require.Len(t, eligible, 3)
	assert.Equal(t, []string{"pg-a", "pg-b", "pg-c"},
		[]string{eligible[0].ID, eligible[1].ID, eligible[2].ID})

	capped, err := store.ListEligible(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestPostgresStore_LookupBroker(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Exec(t, identitySchema)
	pg.Exec(t, `INSERT INTO brokers (id, name, email) VALUES ('b-1', 'Chinwe Okeke', 'chinwe.okeke@example.com')`)
	store := identity.NewPostgresStore(pg.DB)
	ctx := context.Background()

	info, err := store.LookupBroker(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, identity.BrokerInfo{ID: "b-1", Name: "Chinwe Okeke", Email: "chinwe.okeke@example.com"}, info)

	_, err = store.LookupBroker(ctx, "b-missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
