// Package identity holds the identity entry model: the record a customer
// submits for verification, its lifecycle state machine, and its stores.
package identity

import (
	"regexp"
	"time"

	"remedia/internal/crypto"
	"remedia/internal/match"
	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/email"
)

// Kind names the identity document being verified.
type Kind string

const (
	KindNIN Kind = "nin"
	KindBVN Kind = "bvn"
	KindCAC Kind = "cac"
)

var (
	elevenDigits = regexp.MustCompile(`^\d{11}$`)
	cacNumber    = regexp.MustCompile(`^[A-Za-z0-9-]{5,}$`)
)

// ValidateNumber checks the plaintext identity number format for a kind.
// NIN and BVN are exactly 11 digits; CAC is at least 5 alphanumeric or
// hyphen characters.
func ValidateNumber(kind Kind, number string) error {
	switch kind {
	case KindNIN:
		if !elevenDigits.MatchString(number) {
			return dErrors.New(dErrors.CodeInvalidInput, "nin must be exactly 11 digits")
		}
	case KindBVN:
		if !elevenDigits.MatchString(number) {
			return dErrors.New(dErrors.CodeInvalidInput, "bvn must be exactly 11 digits")
		}
	case KindCAC:
		if !cacNumber.MatchString(number) {
			return dErrors.New(dErrors.CodeInvalidInput, "cac number must be at least 5 alphanumeric characters")
		}
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "unknown identity kind")
	}
	return nil
}

// VerificationDetails captures the outcome of the most recent provider
// attempt. Immutable once written to an entry.
type VerificationDetails struct {
	Provider     string       `json:"provider"`
	Result       match.Result `json:"result"`
	ErrorCode    string       `json:"errorCode,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	DuplicateOf  string       `json:"duplicateOf,omitempty"`
	AttemptedAt  time.Time    `json:"attemptedAt"`
}

// Entry is one identity verification record. The identity number is stored
// only in encrypted form; submitted demographic fields stay plaintext for
// matching.
type Entry struct {
	ID          string
	BrokerID    string
	Email       string
	FirstName   string
	LastName    string
	Gender      string
	DateOfBirth string
	PhoneNumber string

	// Company fields, populated for CAC entries only.
	CompanyName      string
	RegistrationDate string

	Kind           Kind
	IdentityNumber crypto.EncryptedValue
	Status         Status
	ResendCount    int
	Details        *VerificationDetails
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubmittedRecord exposes the entry's demographic fields under the canonical
// key spellings the matcher resolves.
func (e Entry) SubmittedRecord() map[string]string {
	return map[string]string{
		"firstName":   e.FirstName,
		"lastName":    e.LastName,
		"gender":      e.Gender,
		"dateOfBirth": e.DateOfBirth,
		"phoneNumber": e.PhoneNumber,
	}
}

// SubmittedCompanyRecord exposes the CAC fields the registry matcher
// resolves. The RC number is the entry's identity number, so the decrypted
// plaintext comes from the caller.
func (e Entry) SubmittedCompanyRecord(rcNumber string) map[string]string {
	return map[string]string{
		"companyName":      e.CompanyName,
		"rcNumber":         rcNumber,
		"registrationDate": e.RegistrationDate,
	}
}

// BrokerInfo identifies the broker who sourced an entry. Always fully
// populated: lookups that miss fall back to the defaults rather than
// returning partial records.
type BrokerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnknownBroker is the fallback attribution for entries whose broker cannot
// be resolved.
func UnknownBroker() BrokerInfo {
	return BrokerInfo{ID: "unknown", Name: "Unknown User", Email: "unknown"}
}

// Complete fills any blank field so callers never see a partially populated
// record. A missing name is derived from the email before falling back to
// the unknown defaults.
func (b BrokerInfo) Complete() BrokerInfo {
	u := UnknownBroker()
	if b.ID == "" {
		b.ID = u.ID
	}
	if b.Name == "" && b.Email != "" && b.Email != u.Email {
		first, last := email.DeriveNameFromEmail(b.Email)
		b.Name = first + " " + last
	}
	if b.Name == "" {
		b.Name = u.Name
	}
	if b.Email == "" {
		b.Email = u.Email
	}
	return b
}
