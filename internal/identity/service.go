package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"remedia/internal/crypto"
	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/platform/sentinel"
)

// NewEntryInput is the intake shape for a verification entry. The identity
// number arrives in plaintext and is encrypted before it touches the store.
type NewEntryInput struct {
	BrokerID       string
	Email          string
	FirstName      string
	LastName       string
	Gender         string
	DateOfBirth    string
	PhoneNumber    string
	Kind           Kind
	IdentityNumber string

	// Company fields, required for CAC entries.
	CompanyName      string
	RegistrationDate string
}

// Service handles entry intake and reads.
type Service struct {
	store  Store
	box    *crypto.Box
	logger *slog.Logger
	clock  func() time.Time
	newID  func() string
}

type ServiceOption func(*Service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock injects the time source for tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

func NewService(store Store, box *crypto.Box, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		box:    box,
		logger: slog.Default(),
		clock:  time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the intake, encrypts the identity number and stores the
// entry as pending.
func (s *Service) Create(ctx context.Context, in NewEntryInput) (Entry, error) {
	if err := validateInput(in); err != nil {
		return Entry{}, err
	}
	if err := ValidateNumber(in.Kind, in.IdentityNumber); err != nil {
		return Entry{}, err
	}

	enc, err := s.box.Encrypt(ctx, in.IdentityNumber, string(in.Kind))
	if err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt identity number")
	}

	now := s.clock()
	entry := Entry{
		ID:               s.newID(),
		BrokerID:         in.BrokerID,
		Email:            strings.TrimSpace(in.Email),
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		Gender:           strings.TrimSpace(in.Gender),
		DateOfBirth:      strings.TrimSpace(in.DateOfBirth),
		PhoneNumber:      strings.TrimSpace(in.PhoneNumber),
		CompanyName:      strings.TrimSpace(in.CompanyName),
		RegistrationDate: strings.TrimSpace(in.RegistrationDate),
		Kind:             in.Kind,
		IdentityNumber:   enc,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Entry{}, dErrors.New(dErrors.CodeConflict, "entry already exists")
		}
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "store entry")
	}

	s.logger.InfoContext(ctx, "verification entry created",
		"entry_id", entry.ID, "kind", entry.Kind, "broker_id", entry.BrokerID)
	return entry, nil
}

// Get loads one entry by id.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Entry{}, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "load entry")
	}
	return entry, nil
}

// ListByStatus returns entries in any of the given statuses, oldest first.
// With no statuses it returns everything.
func (s *Service) ListByStatus(ctx context.Context, statuses ...Status) ([]Entry, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status "+string(st))
		}
	}
	entries, err := s.store.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list entries")
	}
	return entries, nil
}

func validateInput(in NewEntryInput) error {
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "first name is required")
	case strings.TrimSpace(in.LastName) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "last name is required")
	case strings.TrimSpace(in.Email) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "email is not valid")
	}
	if in.Kind == KindCAC && strings.TrimSpace(in.CompanyName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "company name is required for CAC entries")
	}
	return nil
}
