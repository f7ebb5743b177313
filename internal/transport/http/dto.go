package httptransport

import (
	"time"

	"remedia/internal/identity"
	dErrors "remedia/pkg/domain-errors"
)

// CreateEntryRequest is the intake payload for a new verification entry.
type CreateEntryRequest struct {
	BrokerID       string `json:"brokerId"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"dateOfBirth"`
	PhoneNumber    string `json:"phoneNumber"`
	Kind           string `json:"kind"`
	IdentityNumber string `json:"identityNumber"`

	// Company fields, used by CAC entries.
	CompanyName      string `json:"companyName,omitempty"`
	RegistrationDate string `json:"registrationDate,omitempty"`
}

func (r CreateEntryRequest) Validate() error {
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "kind is required")
	}
	if r.IdentityNumber == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identityNumber is required")
	}
	return nil
}

func (r CreateEntryRequest) input() identity.NewEntryInput {
	return identity.NewEntryInput{
		BrokerID:       r.BrokerID,
		Email:          r.Email,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Gender:         r.Gender,
		DateOfBirth:    r.DateOfBirth,
		PhoneNumber:    r.PhoneNumber,
		Kind:           identity.Kind(r.Kind),
		IdentityNumber: r.IdentityNumber,

		CompanyName:      r.CompanyName,
		RegistrationDate: r.RegistrationDate,
	}
}

// EntryResponse is the external view of an entry. The identity number never
// appears, not even in encrypted form.
type EntryResponse struct {
	ID               string           `json:"id"`
	BrokerID         string           `json:"brokerId,omitempty"`
	Email            string           `json:"email"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	Gender           string           `json:"gender,omitempty"`
	DateOfBirth      string           `json:"dateOfBirth,omitempty"`
	PhoneNumber      string           `json:"phoneNumber,omitempty"`
	CompanyName      string           `json:"companyName,omitempty"`
	RegistrationDate string           `json:"registrationDate,omitempty"`
	Kind             string           `json:"kind"`
	Status           string           `json:"status"`
	ResendCount      int              `json:"resendCount"`
	Details          *DetailsResponse `json:"details,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type DetailsResponse struct {
	Provider     string    `json:"provider,omitempty"`
	Matched      bool      `json:"matched"`
	FailedFields []string  `json:"failedFields,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	AttemptedAt  time.Time `json:"attemptedAt"`
}

func fromEntry(e identity.Entry) EntryResponse {
	resp := EntryResponse{
		ID:               e.ID,
		BrokerID:         e.BrokerID,
		Email:            e.Email,
		FirstName:        e.FirstName,
		LastName:         e.LastName,
		Gender:           e.Gender,
		DateOfBirth:      e.DateOfBirth,
		PhoneNumber:      e.PhoneNumber,
		CompanyName:      e.CompanyName,
		RegistrationDate: e.RegistrationDate,
		Kind:             string(e.Kind),
		Status:           string(e.Status),
		ResendCount:      e.ResendCount,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	if e.Details != nil {
		resp.Details = &DetailsResponse{
			Provider:     e.Details.Provider,
			Matched:      e.Details.Result.Matched,
			FailedFields: e.Details.Result.FailedFields,
			ErrorCode:    e.Details.ErrorCode,
			ErrorMessage: e.Details.ErrorMessage,
			AttemptedAt:  e.Details.AttemptedAt,
		}
	}
	return resp
}

func fromEntries(entries []identity.Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = fromEntry(e)
	}
	return out
}

// IssuedLinkResponse returns the link material exactly once, at issue time.
type IssuedLinkResponse struct {
	Entry     EntryResponse `json:"entry"`
	Token     string        `json:"token"`
	Secret    string        `json:"secret"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// RedeemLinkRequest carries the link material back from the customer.
type RedeemLinkRequest struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
}

func (r RedeemLinkRequest) Validate() error {
	if r.Token == "" || r.Secret == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "token and secret are required")
	}
	return nil
}

// BulkRunRequest tunes one bulk verification run.
type BulkRunRequest struct {
	Limit int `json:"limit"`
}

// CheckLimitRequest asks whether a provider is nearing its monthly budget.
type CheckLimitRequest struct {
	Provider     string `json:"provider"`
	Limit        int    `json:"limit"`
	ThresholdPct int    `json:"thresholdPct"`
}

func (r CheckLimitRequest) Validate() error {
	if r.Provider == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "provider is required")
	}
	return nil
}
