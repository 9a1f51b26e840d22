package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/lib/pq"
)

// Schema creates the audit table; idempotent.
//
//go:embed schema.sql
var Schema string

// PostgresStore persists audit entries with database/sql. Schema lives in
// schema.sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres wraps an existing database handle.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects via the pq driver.
func OpenPostgres(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (event_id, event_type, proposal_id, payload_json, at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.EventID, e.EventType, e.ProposalID, e.PayloadJSON, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, proposalID *int64, limit, offset int) ([]Entry, int, error) {
	where := ""
	args := []any{}
	if proposalID != nil {
		where = ` WHERE proposal_id = $1`
		args = append(args, *proposalID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM audit_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, event_id, event_type, proposal_id, payload_json, at
		FROM audit_entries%s
		ORDER BY id LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.ProposalID, &e.PayloadJSON, &e.At); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	return out, total, nil
}
