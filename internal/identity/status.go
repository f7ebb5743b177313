package identity

import (
	dErrors "remedia/pkg/domain-errors"
)

// Status is the lifecycle state of an identity entry.
type Status string

const (
	StatusPending            Status = "pending"
	StatusLinkSent           Status = "link_sent"
	StatusEmailSent          Status = "email_sent"
	StatusVerified           Status = "verified"
	StatusVerificationFailed Status = "verification_failed"
	StatusLinkExpired        Status = "link_expired"
	StatusReviewRequired     Status = "review_required"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
)

// allowedTransitions is the explicit transition table. Every status mutation
// goes through Transition; callers are not trusted to know the rules.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusLinkSent:           true,
		StatusEmailSent:          true,
		StatusVerified:           true,
		StatusVerificationFailed: true,
		StatusReviewRequired:     true,
	},
	StatusLinkSent: {
		StatusEmailSent:          true,
		StatusVerified:           true,
		StatusVerificationFailed: true,
		StatusLinkExpired:        true,
		StatusReviewRequired:     true,
	},
	StatusEmailSent: {
		StatusVerified:           true,
		StatusVerificationFailed: true,
		StatusLinkExpired:        true,
		StatusReviewRequired:     true,
	},
	StatusVerificationFailed: {
		StatusEmailSent: true,
	},
	StatusLinkExpired: {
		StatusEmailSent: true,
	},
	StatusReviewRequired: {
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusVerified: {
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusApproved: {},
	StatusRejected: {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether no automatic transition leaves s. Terminal entries
// are only movable by administrative action.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// BulkEligible reports whether a bulk verification run may pick up an entry
// in this status.
func (s Status) BulkEligible() bool {
	return s == StatusPending || s == StatusLinkSent || s == StatusEmailSent
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// Transition validates and applies a status change on the entry.
func (e *Entry) Transition(to Status) error {
	if !to.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown status "+string(to))
	}
	if !CanTransition(e.Status, to) {
		return dErrors.New(dErrors.CodeConflict,
			"illegal status transition "+string(e.Status)+" -> "+string(to))
	}
	e.Status = to
	return nil
}
