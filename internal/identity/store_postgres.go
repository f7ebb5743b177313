package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"remedia/pkg/platform/sentinel"
)

// PostgresStore persists identity entries in PostgreSQL. The identity number
// is stored as its encrypted parts; the schema never sees plaintext.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entryColumns = `
	id, broker_id, email, first_name, last_name, gender, date_of_birth,
	phone_number, company_name, registration_date, kind, identity_ciphertext,
	identity_iv, status, resend_count, details, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, entry Entry) error {
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identity_entries (`+entryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		entry.ID, entry.BrokerID, entry.Email, entry.FirstName, entry.LastName,
		entry.Gender, entry.DateOfBirth, entry.PhoneNumber, entry.CompanyName,
		entry.RegistrationDate, string(entry.Kind),
		entry.IdentityNumber.Ciphertext, entry.IdentityNumber.IV,
		string(entry.Status), entry.ResendCount, details,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create identity entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM identity_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get identity entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Update(ctx context.Context, entry Entry) error {
	details, err := marshalDetails(entry.Details)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE identity_entries SET
			broker_id = $2, email = $3, first_name = $4, last_name = $5,
			gender = $6, date_of_birth = $7, phone_number = $8,
			company_name = $9, registration_date = $10, kind = $11,
			identity_ciphertext = $12, identity_iv = $13, status = $14,
			resend_count = $15, details = $16, updated_at = $17
		WHERE id = $1`,
		entry.ID, entry.BrokerID, entry.Email, entry.FirstName, entry.LastName,
		entry.Gender, entry.DateOfBirth, entry.PhoneNumber, entry.CompanyName,
		entry.RegistrationDate, string(entry.Kind),
		entry.IdentityNumber.Ciphertext, entry.IdentityNumber.IV,
		string(entry.Status), entry.ResendCount, details, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...Status) ([]Entry, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	// empty filter means every status
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM identity_entries
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1)
		ORDER BY created_at, id`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list identity entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PostgresStore) ListEligible(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1 // LIMIT ALL
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM identity_entries
		WHERE status = ANY($1)
		ORDER BY created_at, id
		LIMIT NULLIF($2, -1)`,
		pq.Array([]string{string(StatusPending), string(StatusLinkSent), string(StatusEmailSent)}),
		limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *PostgresStore) LookupBroker(ctx context.Context, id string) (BrokerInfo, error) {
	var info BrokerInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email FROM brokers WHERE id = $1`, id).
		Scan(&info.ID, &info.Name, &info.Email)
	if err == sql.ErrNoRows {
		return BrokerInfo{}, sentinel.ErrNotFound
	}
	if err != nil {
		return BrokerInfo{}, fmt.Errorf("lookup broker: %w", err)
	}
	return info, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry   Entry
		kind    string
		status  string
		details []byte
	)
	err := row.Scan(
		&entry.ID, &entry.BrokerID, &entry.Email, &entry.FirstName,
		&entry.LastName, &entry.Gender, &entry.DateOfBirth, &entry.PhoneNumber,
		&entry.CompanyName, &entry.RegistrationDate, &kind,
		&entry.IdentityNumber.Ciphertext, &entry.IdentityNumber.IV,
		&status, &entry.ResendCount, &details,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	entry.Kind = Kind(kind)
	entry.Status = Status(status)
	if len(details) > 0 {
		var d VerificationDetails
		if err := json.Unmarshal(details, &d); err != nil {
			return Entry{}, fmt.Errorf("decode verification details: %w", err)
		}
		entry.Details = &d
	}
	return entry, nil
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity entries: %w", err)
	}
	return out, nil
}

func marshalDetails(d *VerificationDetails) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode verification details: %w", err)
	}
	return b, nil
}
