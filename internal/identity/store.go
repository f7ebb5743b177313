package identity

import (
	"context"
)

// Store persists identity entries. Update implementations must persist the
// whole entry; partial writes are composed by the service layer.
type Store interface {
	Create(ctx context.Context, entry Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	Update(ctx context.Context, entry Entry) error
	ListByStatus(ctx context.Context, statuses ...Status) ([]Entry, error)
	ListEligible(ctx context.Context, limit int) ([]Entry, error)
}

// BrokerDirectory resolves broker attribution for entries. Implementations
// return sentinel.ErrNotFound on a miss; callers that need an
// always-complete record go through ResolveBroker.
type BrokerDirectory interface {
	LookupBroker(ctx context.Context, id string) (BrokerInfo, error)
}

// ResolveBroker looks up a broker and guarantees a fully populated result,
// substituting the unknown defaults on any miss or error.
func ResolveBroker(ctx context.Context, dir BrokerDirectory, id string) BrokerInfo {
	if dir == nil || id == "" {
		return UnknownBroker()
	}
	info, err := dir.LookupBroker(ctx, id)
	if err != nil {
		return UnknownBroker()
	}
	return info.Complete()
}
