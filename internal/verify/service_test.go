package verify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remedia/internal/audit"
	"remedia/internal/crypto"
	"remedia/internal/identity"
	"remedia/internal/match"
	"remedia/internal/provider"
	"remedia/internal/usage"
	dErrors "remedia/pkg/domain-errors"
)

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func testBox(t *testing.T) *crypto.Box {
	t.Helper()
	box, err := crypto.New(bytes.Repeat([]byte{0x2a}, crypto.KeyLength))
	require.NoError(t, err)
	return box
}

type stubVerifier struct {
	name string
	fn   func(kind identity.Kind, number string) (provider.Result, error)
}

func (v *stubVerifier) Name() string { return v.name }

func (v *stubVerifier) Verify(_ context.Context, kind identity.Kind, number string) (provider.Result, error) {
	return v.fn(kind, number)
}

// providerRecord returns provider-side data that matches the seeded entry
// after normalization: different case, date format and phone prefix.
func providerRecord() map[string]string {
	return map[string]string{
		"firstname": "ADAEZE",
		"surname":   "Okafor",
		"gender":    "F",
		"dob":       "12-May-1969",
		"msisdn":    "2348031234567",
	}
}

func seedEntry(t *testing.T, store *identity.InMemoryStore, box *crypto.Box, id string, status identity.Status) identity.Entry {
	t.Helper()
	enc, err := box.Encrypt(context.Background(), "12345678901", "nin")
	require.NoError(t, err)
	entry := identity.Entry{
		ID:             id,
		BrokerID:       "b-1",
		Email:          "adaeze@example.com",
		FirstName:      "Adaeze",
		LastName:       "okafor",
		Gender:         "female",
		DateOfBirth:    "1969/05/12",
		PhoneNumber:    "08031234567",
		Kind:           identity.KindNIN,
		IdentityNumber: enc,
		Status:         status,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	require.NoError(t, store.Create(context.Background(), entry))
	return entry
}

func testService(t *testing.T, store *identity.InMemoryStore, box *crypto.Box, verifier provider.Verifier, opts ...Option) *Service {
	t.Helper()
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register(identity.KindNIN, verifier))
	require.NoError(t, registry.Register(identity.KindBVN, verifier))
	opts = append(opts, WithClock(func() time.Time { return testNow }))
	return NewService(store, box, registry, Config{BatchSize: 10}, opts...)
}

func TestVerifyEntry_MatchingRecordMovesToVerified(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEntry(t, store, box, "e-1", identity.StatusPending)

	verifier := &stubVerifier{name: "datapro", fn: func(identity.Kind, string) (provider.Result, error) {
		return provider.Result{Data: providerRecord()}, nil
	}}
	svc := testService(t, store, box, verifier)

	entry, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	assert.Equal(t, identity.StatusVerified, entry.Status)
	require.NotNil(t, entry.Details)
	assert.Equal(t, "datapro", entry.Details.Provider)
	assert.True(t, entry.Details.Result.Matched)
	assert.Empty(t, entry.Details.Result.FailedFields)

	stored, err := store.Get(context.Background(), "e-1")
	require.NoError(t, err)
	assert.Equal(t, identity.StatusVerified, stored.Status)
}

func TestVerifyEntry_FieldMismatchFailsWithFriendlyMessage(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEntry(t, store, box, "e-1", identity.StatusPending)

	data := providerRecord()
	data["firstname"] = "Chinwe"
	verifier := &stubVerifier{name: "datapro", fn: func(identity.Kind, string) (provider.Result, error) {
		return provider.Result{Data: data}, nil
	}}
	svc := testService(t, store, box, verifier)

	entry, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	assert.Equal(t, identity.StatusVerificationFailed, entry.Status)
	require.NotNil(t, entry.Details)
	assert.Equal(t, "FIELD_MISMATCH", entry.Details.ErrorCode)
	assert.Equal(t,
		"The information provided does not match our records. Please contact your broker.",
		entry.Details.ErrorMessage)
	assert.Equal(t, []string{match.FieldFirstName}, entry.Details.Result.FailedFields)
}

func TestVerifyEntry_ProviderErrorFailsWithNormalizedCode(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEntry(t, store, box, "e-1", identity.StatusPending)

	verifier := &stubVerifier{name: "datapro", fn: func(identity.Kind, string) (provider.Result, error) {
		return provider.Result{}, provider.NewError(provider.CodeNINNotFound, "datapro", "record not found", nil)
	}}

	usageStore := usage.NewInMemoryStore()
	ledger := usage.NewLedger(usageStore, usage.WithClock(func() time.Time { return testNow }))
	svc := testService(t, store, box, verifier, WithLedger(ledger))

	entry, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	assert.Equal(t, identity.StatusVerificationFailed, entry.Status)
	assert.Equal(t, "NIN_NOT_FOUND", entry.Details.ErrorCode)
	assert.Equal(t,
		"NIN not found in NIMC database. Please verify your NIN and try again.",
		entry.Details.ErrorMessage)

	// the failed call is still counted, at zero cost
	counter, err := usageStore.GetCounter(context.Background(), "datapro", usage.PeriodDaily, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 1, counter.TotalCalls)
	assert.Equal(t, 1, counter.FailedCalls)

	logs, err := usageStore.ListCallLogs(context.Background(), "datapro", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 0, logs[0].Cost)
	assert.Equal(t, "1234*******", logs[0].MaskedIdentifier)
}

func TestVerifyEntry_IneligibleStatusIsConflict(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEntry(t, store, box, "e-1", identity.StatusApproved)

	called := false
	verifier := &stubVerifier{name: "datapro", fn: func(identity.Kind, string) (provider.Result, error) {
		called = true
		return provider.Result{Data: providerRecord()}, nil
	}}
	svc := testService(t, store, box, verifier)

	_, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.False(t, called)
}

func TestVerifyEntry_UnknownEntryIsNotFound(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	svc := testService(t, store, box, &stubVerifier{name: "datapro"})

	_, err := svc.VerifyEntry(context.Background(), "nope", audit.SystemActor())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestVerifyEntry_DecryptionFailureNeverReachesProvider(t *testing.T) {
	box := testBox(t)
	otherBox, err := crypto.New(bytes.Repeat([]byte{0x77}, crypto.KeyLength))
	require.NoError(t, err)

	store := identity.NewInMemoryStore()
	enc, err := otherBox.Encrypt(context.Background(), "12345678901", "nin")
	require.NoError(t, err)
	entry := seedEntry(t, store, box, "seed", identity.StatusPending)
	entry.ID = "e-1"
	entry.IdentityNumber = enc
	require.NoError(t, store.Create(context.Background(), entry))

	called := false
	verifier := &stubVerifier{name: "datapro", fn: func(identity.Kind, string) (provider.Result, error) {
		called = true
		return provider.Result{}, nil
	}}
	svc := testService(t, store, box, verifier)

	got, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	assert.False(t, called)
	assert.Equal(t, identity.StatusVerificationFailed, got.Status)
	assert.Equal(t, "DECRYPTION_FAILED", got.Details.ErrorCode)
}

func TestVerifyEntry_EmitsAuditEvents(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEntry(t, store, box, "e-1", identity.StatusPending)

	verifier := &stubVerifier{name: "datapro", fn: func(identity.Kind, string) (provider.Result, error) {
		return provider.Result{Data: providerRecord()}, nil
	}}
	auditor := audit.NewPublisher(16)
	svc := testService(t, store, box, verifier, WithAuditor(auditor))

	_, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	apiCall := <-auditor.Queue()
	assert.Equal(t, audit.EventAPICall, apiCall.Type)
	assert.Equal(t, "success", apiCall.Result)
	assert.Equal(t, 50, apiCall.Cost)
	assert.Equal(t, "1234*******", apiCall.MaskedIdentifiers["identityNumber"])

	attempt := <-auditor.Queue()
	assert.Equal(t, audit.EventVerificationAttempt, attempt.Type)
	assert.Equal(t, "verified", attempt.Result)
	assert.Equal(t, "1234*******", attempt.MaskedIdentifiers["identityNumber"])
}

func TestApproveAndReject(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEntry(t, store, box, "e-1", identity.StatusVerified)
	seedEntry(t, store, box, "e-2", identity.StatusVerified)
	seedEntry(t, store, box, "e-3", identity.StatusPending)

	svc := testService(t, store, box, &stubVerifier{name: "datapro"})
	actor := audit.Actor{ID: "adm-1", Name: "Ops", Type: "admin"}

	approved, err := svc.Approve(context.Background(), "e-1", actor)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusApproved, approved.Status)

	rejected, err := svc.Reject(context.Background(), "e-2", actor)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusRejected, rejected.Status)

	_, err = svc.Approve(context.Background(), "e-3", actor)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

type notifyCall struct {
	entryID      string
	outcome      Outcome
	failedFields []string
}

type stubNotifier struct {
	calls []notifyCall
}

func (n *stubNotifier) Notify(_ context.Context, entry identity.Entry, outcome Outcome, failedFields []string) error {
	n.calls = append(n.calls, notifyCall{entry.ID, outcome, failedFields})
	return nil
}

func TestVerifyEntry_NotifierReceivesOutcomes(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedEntry(t, store, box, "e-1", identity.StatusPending)
	seedEntry(t, store, box, "e-2", identity.StatusPending)

	data := providerRecord()
	verifier := &stubVerifier{name: "datapro", fn: func(_ identity.Kind, number string) (provider.Result, error) {
		return provider.Result{Data: data}, nil
	}}
	notifier := &stubNotifier{}
	svc := testService(t, store, box, verifier, WithNotifier(notifier))

	_, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	data["firstname"] = "Chinwe"
	_, err = svc.VerifyEntry(context.Background(), "e-2", audit.SystemActor())
	require.NoError(t, err)

	require.Len(t, notifier.calls, 2)
	assert.Equal(t, notifyCall{entryID: "e-1", outcome: OutcomeVerified}, notifier.calls[0])
	assert.Equal(t, notifyCall{
		entryID:      "e-2",
		outcome:      OutcomeFailed,
		failedFields: []string{match.FieldFirstName},
	}, notifier.calls[1])
}

func seedCACEntry(t *testing.T, store *identity.InMemoryStore, box *crypto.Box, id string) identity.Entry {
	t.Helper()
	enc, err := box.Encrypt(context.Background(), "RC-123456", "cac")
	require.NoError(t, err)
	entry := identity.Entry{
		ID:               id,
		BrokerID:         "b-1",
		Email:            "filings@acme.example.com",
		FirstName:        "Adaeze",
		LastName:         "Okafor",
		CompanyName:      "Acme Holdings Limited",
		RegistrationDate: "03/02/2015",
		Kind:             identity.KindCAC,
		IdentityNumber:   enc,
		Status:           identity.StatusPending,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	require.NoError(t, store.Create(context.Background(), entry))
	return entry
}

func TestVerifyEntry_CACEntryMatchesOnCompanyFields(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedCACEntry(t, store, box, "e-1")

	verifier := &stubVerifier{name: "verifydata", fn: func(_ identity.Kind, number string) (provider.Result, error) {
		assert.Equal(t, "RC-123456", number)
		return provider.Result{Data: map[string]string{
			"name":               "ACME HOLDINGS LTD",
			"registrationNumber": "123456",
			"registrationDate":   "03-Feb-2015",
			"companyStatus":      "active",
		}}, nil
	}}
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register(identity.KindCAC, verifier))
	svc := NewService(store, box, registry, Config{BatchSize: 10},
		WithClock(func() time.Time { return testNow }))

	entry, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	assert.Equal(t, identity.StatusVerified, entry.Status)
	require.NotNil(t, entry.Details)
	assert.True(t, entry.Details.Result.Matched)
	assert.Empty(t, entry.Details.Result.FailedFields)
}

func TestVerifyEntry_CACInactiveCompanyFailsOnStatus(t *testing.T) {
	box := testBox(t)
	store := identity.NewInMemoryStore()
	seedCACEntry(t, store, box, "e-1")

	verifier := &stubVerifier{name: "verifydata", fn: func(identity.Kind, string) (provider.Result, error) {
		return provider.Result{Data: map[string]string{
			"name":               "ACME HOLDINGS LTD",
			"registrationNumber": "123456",
			"registrationDate":   "03-Feb-2015",
			"companyStatus":      "inactive",
		}}, nil
	}}
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register(identity.KindCAC, verifier))
	svc := NewService(store, box, registry, Config{BatchSize: 10},
		WithClock(func() time.Time { return testNow }))

	entry, err := svc.VerifyEntry(context.Background(), "e-1", audit.SystemActor())
	require.NoError(t, err)

	assert.Equal(t, identity.StatusVerificationFailed, entry.Status)
	assert.Equal(t, []string{match.FieldCompanyStatus}, entry.Details.Result.FailedFields)
}
