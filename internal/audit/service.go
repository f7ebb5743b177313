package audit

import (
	"context"

	dErrors "remedia/pkg/domain-errors"
)

// Service is the query side of the audit trail, used by the admin surface.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries")
	}
	return entries, nil
}

func (s *Service) ByType(ctx context.Context, eventType EventType, limit int) ([]Entry, error) {
	if !eventType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown event type")
	}
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.store.ListByType(ctx, eventType, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries by type")
	}
	return entries, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "aggregate audit stats")
	}
	return stats, nil
}
