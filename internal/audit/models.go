// Package audit is the append-only event sink for the verification pipeline.
// Every event is masked before it leaves this package; persistence failures
// never propagate to the business flow that emitted the event.
package audit

import (
	"time"
)

// EventType names the kind of action being recorded.
type EventType string

const (
	EventVerificationAttempt EventType = "verification_attempt"
	EventAPICall             EventType = "api_call"
	EventEncryptionOperation EventType = "encryption_operation"
	EventSecurityEvent       EventType = "security_event"
	EventBulkOperation       EventType = "bulk_operation"
)

// Category classifies events for retention and routing. Compliance events
// require tamper-proof storage and at least seven years of retention; no
// store implementation may TTL or delete them.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategorySecurity   Category = "security"
	CategoryOperations Category = "operations"
)

var eventCategories = map[EventType]Category{
	EventVerificationAttempt: CategoryCompliance,
	EventBulkOperation:       CategoryCompliance,
	EventSecurityEvent:       CategorySecurity,
	EventEncryptionOperation: CategorySecurity,
	EventAPICall:             CategoryOperations,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventCategories[t]
	return ok
}

// Category derives the routing category for an event type.
func (t EventType) Category() Category {
	if c, ok := eventCategories[t]; ok {
		return c
	}
	return CategoryOperations
}

// Actor identifies who triggered an event. For background runs the actor is
// the system itself.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

// SystemActor is the attribution used by scheduled and bulk work.
func SystemActor() Actor {
	return Actor{ID: "system", Name: "System", Type: "system"}
}

// Entry is one audit record. Once appended it is never mutated or deleted.
// Metadata and MaskedIdentifiers must already be masked when the entry is
// built; stores persist them verbatim.
type Entry struct {
	ID                string            `json:"id"`
	Timestamp         time.Time         `json:"timestamp"`
	Type              EventType         `json:"eventType"`
	Actor             Actor             `json:"actor"`
	Result            string            `json:"result"`
	ErrorCode         string            `json:"errorCode,omitempty"`
	MaskedIdentifiers map[string]string `json:"maskedIdentifiers,omitempty"`
	Cost              int               `json:"cost,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
}

// Stats aggregates the trail for dashboards.
type Stats struct {
	Total    int               `json:"total"`
	ByType   map[EventType]int `json:"byType"`
	ByResult map[string]int    `json:"byResult"`
	Oldest   time.Time         `json:"oldest"`
	Newest   time.Time         `json:"newest"`
}
