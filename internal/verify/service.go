// Package verify orchestrates identity verification: decrypt, provider call,
// field match, status update, audit and usage recording. Bulk runs throttle
// the pipeline to the external rate limits.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"remedia/internal/audit"
	"remedia/internal/crypto"
	"remedia/internal/identity"
	"remedia/internal/mask"
	"remedia/internal/match"
	"remedia/internal/platform/metrics"
	"remedia/internal/provider"
	"remedia/internal/usage"
	"remedia/internal/verify/linktoken"
	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/platform/sentinel"
)

// Outcome classifies one entry's trip through the pipeline.
type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// errorCode used when decryption fails before any provider is reached.
const codeDecryptionFailed = "DECRYPTION_FAILED"

// Notifier delivers verification outcomes to customers. Implementations own
// the message content; the service only reports what happened. Delivery
// failures are logged, never surfaced.
type Notifier interface {
	Notify(ctx context.Context, entry identity.Entry, outcome Outcome, failedFields []string) error
}

// Config carries the bulk throttling knobs.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Service runs verifications. All collaborators beyond the three mandatory
// ones are optional; a nil auditor or ledger simply records nothing.
type Service struct {
	entries   identity.Store
	box       *crypto.Box
	providers *provider.Registry
	cfg       Config

	auditor    *audit.Publisher
	ledger     *usage.Ledger
	links      *linktoken.Issuer
	notifier   Notifier
	duplicates *DuplicateChecker
	logger     *slog.Logger
	metrics    *metrics.Metrics
	clock      func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

func WithAuditor(a *audit.Publisher) Option {
	return func(s *Service) { s.auditor = a }
}

func WithLedger(l *usage.Ledger) Option {
	return func(s *Service) { s.ledger = l }
}

func WithLinkIssuer(i *linktoken.Issuer) Option {
	return func(s *Service) { s.links = i }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithDuplicateChecker short-circuits the provider call for identity numbers
// that are already verified on another entry.
func WithDuplicateChecker(c *DuplicateChecker) Option {
	return func(s *Service) { s.duplicates = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock injects the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func NewService(entries identity.Store, box *crypto.Box, providers *provider.Registry, cfg Config, opts ...Option) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	s := &Service{
		entries:   entries,
		box:       box,
		providers: providers,
		cfg:       cfg,
		logger:    slog.Default(),
		clock:     time.Now,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyEntry runs the pipeline for a single entry by id.
func (s *Service) VerifyEntry(ctx context.Context, entryID string, actor audit.Actor) (identity.Entry, error) {
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.Entry{}, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return identity.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "load entry")
	}

	updated, outcome, _ := s.verifyOne(ctx, entry, actor)
	if outcome == OutcomeSkipped {
		return updated, dErrors.New(dErrors.CodeConflict, "entry is not eligible for verification")
	}
	return updated, nil
}

// verifyOne is the per-entry pipeline. It never returns an error: every
// failure mode is folded into the outcome so one bad entry cannot abort a
// bulk batch.
func (s *Service) verifyOne(ctx context.Context, entry identity.Entry, actor audit.Actor) (identity.Entry, Outcome, string) {
	if !entry.Status.BulkEligible() {
		return entry, OutcomeSkipped, ""
	}

	plaintext, err := s.box.Decrypt(ctx, entry.IdentityNumber, string(entry.Kind))
	if err != nil {
		s.logger.ErrorContext(ctx, "identity number decryption failed",
			"entry_id", entry.ID, "error", err)
		return s.fail(ctx, entry, actor, codeDecryptionFailed,
			"stored identity number could not be decrypted", nil)
	}
	masked := mask.Default(plaintext)

	if s.duplicates != nil {
		if dup, found := s.duplicates.Check(ctx, entry.Kind, plaintext, entry.ID); found {
			return s.verifyAsDuplicate(ctx, entry, actor, masked, dup)
		}
	}

	verifier, err := s.providers.For(entry.Kind)
	if err != nil {
		return s.fail(ctx, entry, actor, string(provider.CodeOf(err)),
			provider.FriendlyMessage(provider.CodeOf(err)), nil)
	}

	result, err := verifier.Verify(ctx, entry.Kind, plaintext)
	success := err == nil
	s.recordCall(ctx, verifier.Name(), success, masked, entry.BrokerID)

	if err != nil {
		code := provider.CodeOf(err)
		s.logger.WarnContext(ctx, "provider verification failed",
			"entry_id", entry.ID, "provider", verifier.Name(),
			"error_code", code, "detail", provider.TechnicalDetail(err))
		return s.fail(ctx, entry, actor, string(code), provider.FriendlyMessage(code), nil)
	}

	var matchRes match.Result
	if entry.Kind == identity.KindCAC {
		matchRes = match.CompareCompany(result.Data, entry.SubmittedCompanyRecord(plaintext))
	} else {
		matchRes = match.Compare(result.Data, entry.SubmittedRecord())
	}
	if !matchRes.Matched {
		return s.fail(ctx, entry, actor, string(provider.CodeFieldMismatch),
			provider.FriendlyMessage(provider.CodeFieldMismatch), &matchRes)
	}

	entry.Details = &identity.VerificationDetails{
		Provider:    verifier.Name(),
		Result:      matchRes,
		AttemptedAt: s.clock(),
	}
	if err := entry.Transition(identity.StatusVerified); err != nil {
		s.logger.ErrorContext(ctx, "verified transition rejected", "entry_id", entry.ID, "error", err)
		return entry, OutcomeSkipped, ""
	}
	s.persist(ctx, &entry)

	s.audit(ctx, actor, "verified", "", map[string]string{"identityNumber": masked}, map[string]any{
		"provider": verifier.Name(),
		"entryId":  entry.ID,
	})
	s.observe(entry.Kind, OutcomeVerified)
	s.notify(ctx, entry, OutcomeVerified, nil)
	return entry, OutcomeVerified, ""
}

// verifyAsDuplicate settles an entry against an earlier verification of the
// same identity number. No provider is called and no usage is recorded, so
// the duplicate costs nothing.
func (s *Service) verifyAsDuplicate(ctx context.Context, entry identity.Entry, actor audit.Actor, masked string, dup Duplicate) (identity.Entry, Outcome, string) {
	entry.Details = &identity.VerificationDetails{
		Result:      match.Result{Matched: true, FailedFields: []string{}},
		DuplicateOf: dup.EntryID,
		AttemptedAt: s.clock(),
	}
	if err := entry.Transition(identity.StatusVerified); err != nil {
		s.logger.ErrorContext(ctx, "verified transition rejected", "entry_id", entry.ID, "error", err)
		return entry, OutcomeSkipped, ""
	}
	s.persist(ctx, &entry)

	s.audit(ctx, actor, "verified", "", map[string]string{"identityNumber": masked}, map[string]any{
		"entryId":     entry.ID,
		"duplicateOf": dup.EntryID,
	})
	s.observe(entry.Kind, OutcomeVerified)
	s.notify(ctx, entry, OutcomeVerified, nil)
	return entry, OutcomeVerified, ""
}

// fail moves an entry to verification_failed and records everything.
func (s *Service) fail(ctx context.Context, entry identity.Entry, actor audit.Actor, errorCode, message string, matchRes *match.Result) (identity.Entry, Outcome, string) {
	details := identity.VerificationDetails{
		ErrorCode:    errorCode,
		ErrorMessage: message,
		AttemptedAt:  s.clock(),
	}
	if matchRes != nil {
		details.Result = *matchRes
	}
	entry.Details = &details

	if err := entry.Transition(identity.StatusVerificationFailed); err != nil {
		s.logger.ErrorContext(ctx, "failed transition rejected", "entry_id", entry.ID, "error", err)
		return entry, OutcomeSkipped, ""
	}
	s.persist(ctx, &entry)

	metadata := map[string]any{"entryId": entry.ID}
	if matchRes != nil {
		metadata["failedFields"] = matchRes.FailedFields
	}
	s.audit(ctx, actor, "failed", errorCode, nil, metadata)
	s.observe(entry.Kind, OutcomeFailed)
	var failedFields []string
	if matchRes != nil {
		failedFields = matchRes.FailedFields
	}
	s.notify(ctx, entry, OutcomeFailed, failedFields)
	return entry, OutcomeFailed, errorCode
}

func (s *Service) persist(ctx context.Context, entry *identity.Entry) {
	entry.UpdatedAt = s.clock()
	if err := s.entries.Update(ctx, *entry); err != nil {
		s.logger.ErrorContext(ctx, "entry update failed", "entry_id", entry.ID, "error", err)
	}
}

func (s *Service) recordCall(ctx context.Context, providerName string, success bool, masked, brokerID string) {
	if s.ledger != nil {
		s.ledger.RecordCall(ctx, providerName, success, masked, brokerID)
	}
	if s.auditor != nil {
		result := "failed"
		if success {
			result = "success"
		}
		s.auditor.APICall(ctx, providerName, result, usage.Cost(providerName, success),
			map[string]string{"identityNumber": masked})
	}
}

func (s *Service) audit(ctx context.Context, actor audit.Actor, result, errorCode string, masked map[string]string, metadata map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.VerificationAttempt(ctx, actor, result, errorCode, masked, metadata)
}

func (s *Service) notify(ctx context.Context, entry identity.Entry, outcome Outcome, failedFields []string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, entry, outcome, failedFields); err != nil {
		s.logger.WarnContext(ctx, "outcome notification failed",
			"entry_id", entry.ID, "error", err)
	}
}

func (s *Service) observe(kind identity.Kind, outcome Outcome) {
	if s.metrics != nil {
		s.metrics.VerificationAttempts.WithLabelValues(string(kind), string(outcome)).Inc()
	}
}

// Approve moves a reviewed or verified entry to approved.
func (s *Service) Approve(ctx context.Context, entryID string, actor audit.Actor) (identity.Entry, error) {
	return s.adminTransition(ctx, entryID, identity.StatusApproved, actor)
}

// Reject moves a reviewed or verified entry to rejected.
func (s *Service) Reject(ctx context.Context, entryID string, actor audit.Actor) (identity.Entry, error) {
	return s.adminTransition(ctx, entryID, identity.StatusRejected, actor)
}

func (s *Service) adminTransition(ctx context.Context, entryID string, to identity.Status, actor audit.Actor) (identity.Entry, error) {
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.Entry{}, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return identity.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "load entry")
	}
	if err := entry.Transition(to); err != nil {
		return identity.Entry{}, err
	}
	entry.UpdatedAt = s.clock()
	if err := s.entries.Update(ctx, entry); err != nil {
		return identity.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "update entry")
	}
	s.audit(ctx, actor, string(to), "", nil, map[string]any{"entryId": entry.ID})
	return entry, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
