package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remedia/internal/audit"
	"remedia/internal/crypto"
	"remedia/internal/identity"
	"remedia/internal/provider"
	"remedia/internal/usage"
	"remedia/internal/verify"
	"remedia/internal/verify/linktoken"
	"remedia/pkg/testutil"
)

const testAdminToken = "test-admin-token"

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	router     http.Handler
	entries    *identity.InMemoryStore
	auditStore *audit.InMemoryStore
	auditor    *audit.Publisher
}

type stubVerifier struct {
	fn func(number string) (provider.Result, error)
}

func (stubVerifier) Name() string { return "datapro" }

func (v stubVerifier) Verify(_ context.Context, _ identity.Kind, number string) (provider.Result, error) {
	return v.fn(number)
}

// matching returns provider data that lines up with createBody's fields.
func matching(string) (provider.Result, error) {
	return provider.Result{Data: map[string]string{
		"firstname": "ADAEZE",
		"surname":   "Okafor",
		"gender":    "F",
		"dob":       "12-May-1969",
	}}, nil
}

func newFixture(t *testing.T, verifierFn func(string) (provider.Result, error)) *fixture {
	t.Helper()

	box, err := crypto.New(bytes.Repeat([]byte{0x2a}, crypto.KeyLength))
	require.NoError(t, err)

	entries := identity.NewInMemoryStore()
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register(identity.KindNIN, stubVerifier{fn: verifierFn}))

	auditor := audit.NewPublisher(64)
	issuer := linktoken.NewIssuer("test-signing-key", 72*time.Hour, linktoken.NewInMemoryStore())

	verifySvc := verify.NewService(entries, box, registry, verify.Config{BatchSize: 10},
		verify.WithAuditor(auditor),
		verify.WithLedger(usage.NewLedger(usage.NewInMemoryStore())),
		verify.WithLinkIssuer(issuer),
	)

	f := &fixture{
		entries:    entries,
		auditStore: audit.NewInMemoryStore(),
		auditor:    auditor,
	}
	f.router = NewRouter(Deps{
		Entries:    identity.NewService(entries, box),
		Verify:     verifySvc,
		Runner:     verify.NewRunner(verifySvc),
		Audit:      audit.NewService(f.auditStore),
		Usage:      usage.NewLedger(usage.NewInMemoryStore()),
		Limiter:    provider.NewRateLimiter(50, time.Minute),
		Auditor:    auditor,
		Logger:     slogDiscard(),
		AdminToken: testAdminToken,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	if admin {
		req.Header.Set("X-Admin-Token", testAdminToken)
	}
	return testutil.DoRequest(f.router, req)
}

func createBody() CreateEntryRequest {
	return CreateEntryRequest{
		BrokerID:       "b-1",
		Email:          "adaeze@example.com",
		FirstName:      "Adaeze",
		LastName:       "okafor",
		Gender:         "female",
		DateOfBirth:    "1969/05/12",
		Kind:           "nin",
		IdentityNumber: "12345678901",
	}
}

func TestCreateEntry(t *testing.T) {
	f := newFixture(t, matching)

	w := f.do(t, http.MethodPost, "/entries", createBody(), true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp EntryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "nin", resp.Kind)
}

func TestCreateEntry_ResponseNeverCarriesIdentityNumber(t *testing.T) {
	f := newFixture(t, matching)

	w := f.do(t, http.MethodPost, "/entries", createBody(), true)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "12345678901")
	assert.NotContains(t, w.Body.String(), "identityNumber")
}

func TestCreateEntry_InvalidNumberRejected(t *testing.T) {
	f := newFixture(t, matching)

	body := createBody()
	body.IdentityNumber = "12345"
	w := f.do(t, http.MethodPost, "/entries", body, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_input")
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	f := newFixture(t, matching)

	w := f.do(t, http.MethodPost, "/entries", createBody(), false)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// the rejection is recorded as a security event
	event := <-f.auditor.Queue()
	assert.Equal(t, audit.EventSecurityEvent, event.Type)
}

func TestGetEntry_NotFound(t *testing.T) {
	f := newFixture(t, matching)

	w := f.do(t, http.MethodGet, "/entries/nope", nil, true)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestVerifyEntryEndpoint(t *testing.T) {
	f := newFixture(t, matching)

	w := f.do(t, http.MethodPost, "/entries", createBody(), true)
	require.Equal(t, http.StatusCreated, w.Code)
	var created EntryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	w = f.do(t, http.MethodPost, "/entries/"+created.ID+"/verify", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp EntryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "verified", resp.Status)
	require.NotNil(t, resp.Details)
	assert.True(t, resp.Details.Matched)
}

func TestListEntriesByStatus(t *testing.T) {
	f := newFixture(t, matching)

	for i := 0; i < 3; i++ {
		body := createBody()
		body.Email = fmt.Sprintf("a%d@example.com", i)
		w := f.do(t, http.MethodPost, "/entries", body, true)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/entries?status=pending", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)

	w = f.do(t, http.MethodGet, "/entries?status=bogus", nil, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkRunEndpoint(t *testing.T) {
	f := newFixture(t, matching)

	for i := 0; i < 5; i++ {
		body := createBody()
		body.Email = fmt.Sprintf("a%d@example.com", i)
		w := f.do(t, http.MethodPost, "/entries", body, true)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodPost, "/verify/bulk-runs", BulkRunRequest{}, true)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started verify.Run
	require.NoError(t, json.NewDecoder(w.Body).Decode(&started))
	require.NotEmpty(t, started.ID)

	var run verify.Run
	require.Eventually(t, func() bool {
		w := f.do(t, http.MethodGet, "/verify/bulk-runs/"+started.ID, nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
		return run.State != verify.RunStateRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, verify.RunStateCompleted, run.State)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 5, run.Summary.Total)
	assert.Equal(t, 5, run.Summary.Verified)
	assert.Equal(t, float64(100), run.Progress.Percentage)

	w = f.do(t, http.MethodPost, "/verify/bulk-runs/"+started.ID+"/cancel", nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/verify/bulk-runs/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitEndpoints(t *testing.T) {
	f := newFixture(t, matching)

	w := f.do(t, http.MethodGet, "/ratelimit/status", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	status := testutil.UnmarshalResponse[provider.LimiterStatus](t, w)
	assert.Equal(t, 50, status.Capacity)
	assert.Equal(t, 50, status.Remaining)

	w = f.do(t, http.MethodPost, "/ratelimit/reset", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	reset := testutil.UnmarshalResponse[provider.LimiterStatus](t, w)
	assert.Equal(t, 50, reset.Remaining)
}

func TestLinkFlowEndToEnd(t *testing.T) {
	f := newFixture(t, matching)

	var created EntryResponse
	var issued IssuedLinkResponse

	testutil.Given(t, "an entry with a verification link", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/entries", createBody(), true)
		require.Equal(t, http.StatusCreated, w.Code)
		created = *testutil.UnmarshalResponse[EntryResponse](t, w)

		w = f.do(t, http.MethodPost, "/entries/"+created.ID+"/send-link", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		issued = *testutil.UnmarshalResponse[IssuedLinkResponse](t, w)
		assert.NotEmpty(t, issued.Token)
		assert.NotEmpty(t, issued.Secret)
		assert.Equal(t, "link_sent", issued.Entry.Status)
	})

	testutil.When(t, "the customer redeems the link without an admin token", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/verify/link",
			RedeemLinkRequest{Token: issued.Token, Secret: issued.Secret}, false)
		require.Equal(t, http.StatusOK, w.Code)
		resp := testutil.UnmarshalResponse[EntryResponse](t, w)
		assert.Equal(t, "verified", resp.Status)
	})

	testutil.Then(t, "a second redemption is rejected", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/verify/link",
			RedeemLinkRequest{Token: issued.Token, Secret: issued.Secret}, false)
		require.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAuditEndpoints(t *testing.T) {
	f := newFixture(t, matching)
	ctx := context.Background()

	require.NoError(t, f.auditStore.Append(ctx, audit.Entry{
		ID: "a-1", Type: audit.EventAPICall, Result: "success", Timestamp: time.Now(),
	}))
	require.NoError(t, f.auditStore.Append(ctx, audit.Entry{
		ID: "a-2", Type: audit.EventSecurityEvent, Result: "failed", Timestamp: time.Now(),
	}))

	w := f.do(t, http.MethodGet, "/audit/events?limit=10", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)

	w = f.do(t, http.MethodGet, "/audit/events/security_event", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)

	w = f.do(t, http.MethodGet, "/audit/events/bogus", nil, true)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/audit/stats", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUsageEndpoints(t *testing.T) {
	f := newFixture(t, matching)

	w := f.do(t, http.MethodPost, "/usage/check-limit",
		CheckLimitRequest{Provider: "datapro", Limit: 1000}, true)
	require.Equal(t, http.StatusOK, w.Code)
	var alert usage.Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&alert))
	assert.Equal(t, usage.AlertNormal, alert.Level)

	w = f.do(t, http.MethodPost, "/usage/check-limit",
		CheckLimitRequest{Provider: "datapro"}, true)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/usage/datapro/summary", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/usage/datapro/range?from=2026-09-01&to=2026-09-02", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/usage/datapro/range?from=bad", nil, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, matching)
	w := f.do(t, http.MethodGet, "/healthz", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
