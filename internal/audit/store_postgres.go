package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists the trail in an append-only table. The schema has no
// update or delete path and no TTL: compliance retention is at least seven
// years.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	actor, err := json.Marshal(entry.Actor)
	if err != nil {
		return fmt.Errorf("encode audit actor: %w", err)
	}
	identifiers, err := marshalNullable(entry.MaskedIdentifiers)
	if err != nil {
		return fmt.Errorf("encode masked identifiers: %w", err)
	}
	metadata, err := marshalNullable(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(id, created_at, event_type, category, actor, result, error_code,
			 masked_identifiers, cost, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Timestamp, string(entry.Type), string(entry.Type.Category()),
		actor, entry.Result, entry.ErrorCode, identifiers, entry.Cost, metadata,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, event_type, actor, result, error_code,
		       masked_identifiers, cost, metadata
		FROM audit_entries
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return collectAuditRows(rows)
}

func (s *PostgresStore) ListByType(ctx context.Context, eventType EventType, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, event_type, actor, result, error_code,
		       masked_identifiers, cost, metadata
		FROM audit_entries
		WHERE event_type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, string(eventType), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries by type: %w", err)
	}
	defer rows.Close()
	return collectAuditRows(rows)
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByType:   make(map[EventType]int),
		ByResult: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, result, COUNT(*)
		FROM audit_entries
		GROUP BY event_type, result`)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate audit stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			eventType, result string
			count             int
		)
		if err := rows.Scan(&eventType, &result, &count); err != nil {
			return Stats{}, fmt.Errorf("scan audit stats: %w", err)
		}
		stats.ByType[EventType(eventType)] += count
		stats.ByResult[result] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate audit stats: %w", err)
	}

	var oldest, newest sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT MIN(created_at), MAX(created_at) FROM audit_entries`).
		Scan(&oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("audit stats range: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = oldest.Time
	}
	if newest.Valid {
		stats.Newest = newest.Time
	}
	return stats, nil
}

func collectAuditRows(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			entry       Entry
			eventType   string
			timestamp   time.Time
			actor       []byte
			identifiers []byte
			metadata    []byte
		)
		err := rows.Scan(&entry.ID, &timestamp, &eventType, &actor, &entry.Result,
			&entry.ErrorCode, &identifiers, &entry.Cost, &metadata)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Timestamp = timestamp
		entry.Type = EventType(eventType)
		if err := json.Unmarshal(actor, &entry.Actor); err != nil {
			return nil, fmt.Errorf("decode audit actor: %w", err)
		}
		if len(identifiers) > 0 {
			if err := json.Unmarshal(identifiers, &entry.MaskedIdentifiers); err != nil {
				return nil, fmt.Errorf("decode masked identifiers: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]string:
		if t == nil {
			return nil, nil
		}
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
