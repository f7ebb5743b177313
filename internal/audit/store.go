package audit

import "context"

// Store persists audit entries. Append-only: implementations must not expose
// update or delete paths, and must not apply TTLs.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	ListByType(ctx context.Context, eventType EventType, limit int) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
}

// Sink receives a secondary copy of every entry, typically a message broker
// for downstream compliance consumers. Delivery is best-effort.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}
