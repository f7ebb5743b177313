package provider

import (
	"errors"
	"fmt"
)

// Code is the normalized provider failure taxonomy. Codes double as the
// errorCode recorded on verification details and audit entries.
type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidFormat      Code = "INVALID_FORMAT"
	CodeNotConfigured      Code = "NOT_CONFIGURED"
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidServiceID   Code = "INVALID_SERVICE_ID"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeNINNotFound        Code = "NIN_NOT_FOUND"
	CodeCACNotFound        Code = "CAC_NOT_FOUND"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
	CodeFieldMismatch      Code = "FIELD_MISMATCH"
	CodeUnexpectedStatus   Code = "UNEXPECTED_STATUS"
	CodeParseError         Code = "PARSE_ERROR"
	CodeInvalidResponse    Code = "INVALID_RESPONSE"
	CodeMaxRetriesExceeded Code = "MAX_RETRIES_EXCEEDED"
)

// Error wraps a provider failure with its normalized code. Retryable marks
// transient failures worth another attempt within the retry budget.
type Error struct {
	Code       Code
	Provider   string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Provider, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// NewError builds a provider error, deriving retryability from the code.
func NewError(code Code, providerName, message string, underlying error) *Error {
	retryable := code == CodeNetworkError ||
		code == CodeUnexpectedStatus ||
		code == CodeRateLimitExceeded
	return &Error{
		Code:       code,
		Provider:   providerName,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CodeOf extracts the normalized code, defaulting to UNEXPECTED_STATUS for
// uncoded errors.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnexpectedStatus
}

// friendlyMessages maps codes to customer-facing text. Internal codes are
// deliberately absent: nothing here may leak status codes, credentials, or
// header names.
var friendlyMessages = map[Code]string{
	CodeInvalidInput:      "Invalid identity number. Please check and try again.",
	CodeInvalidFormat:     "Invalid NIN format. Please check and try again.",
	CodeBadRequest:        "Invalid NIN format. Please check and try again.",
	CodeUnauthorized:      "Verification service unavailable. Please contact support.",
	CodeInvalidServiceID:  "Verification service unavailable. Please contact support.",
	CodeNotConfigured:     "Verification service unavailable. Please contact support.",
	CodeNetworkError:      "Network error. Please try again later.",
	CodeNINNotFound:       "NIN not found in NIMC database. Please verify your NIN and try again.",
	CodeCACNotFound:       "CAC number not found. Please verify your registration number and try again.",
	CodeRateLimitExceeded: "Too many requests. Please try again shortly.",
	CodeFieldMismatch:     "The information provided does not match our records. Please contact your broker.",
}

const genericFriendlyMessage = "Verification could not be completed. Please try again later."

// FriendlyMessage returns the customer-facing text for a code.
func FriendlyMessage(code Code) string {
	if msg, ok := friendlyMessages[code]; ok {
		return msg
	}
	return genericFriendlyMessage
}

// TechnicalDetail renders the full error for operator logs and the audit
// trail. Never shown to customers.
func TechnicalDetail(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
