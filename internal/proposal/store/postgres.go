package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ipm/internal/proposal/models"
	"ipm/pkg/platform/sentinel"
)

// Schema creates the proposal tables. Applied by deployments and by the
// integration tests; idempotent.
//
//go:embed schema.sql
var Schema string

// PostgresStore persists proposals with pgx. Update takes a row lock
// (SELECT ... FOR UPDATE) so concurrent submit/approve/reject calls on the
// same proposal serialize at the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool. Schema lives in schema.sql.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Proposal) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO proposals (title, applicant_name, amount, description, status, current_step_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.Title, p.ApplicantName, p.Amount.String(), p.Description,
		string(p.Status), p.CurrentStepIndex, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.Proposal, error) {
	row := s.pool.QueryRow(ctx, selectProposal+` WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		return nil, err
	}
	if p.Steps, err = s.loadSteps(ctx, s.pool, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]*models.Proposal, int, error) {
	where := ""
	args := []any{}
	if f.Status != nil {
		where = ` WHERE status = $1`
		args = append(args, string(*f.Status))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM proposals`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count proposals: %w", err)
	}

	query := selectProposal + where + fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []*models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list proposals: %w", err)
	}
	for _, p := range out {
		if p.Steps, err = s.loadSteps(ctx, s.pool, p.ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (s *PostgresStore) Update(ctx context.Context, id int64, fn UpdateFn) (*models.Proposal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, selectProposal+` WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProposal(row)
	if err != nil {
		return nil, err
	}
	if p.Steps, err = s.loadSteps(ctx, tx, id); err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE proposals
		SET status = $2, current_step_index = $3, updated_at = $4, submitted_at = $5
		WHERE id = $1`,
		id, string(p.Status), p.CurrentStepIndex, p.UpdatedAt, p.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update proposal %d: %w", id, err)
	}

	// Steps are rebuilt wholesale; submissions replace the chain and
	// decisions rewrite a handful of rows at most.
	if _, err := tx.Exec(ctx, `DELETE FROM approval_steps WHERE proposal_id = $1`, id); err != nil {
		return nil, fmt.Errorf("clear steps for %d: %w", id, err)
	}
	for _, st := range p.Steps {
		_, err := tx.Exec(ctx, `
			INSERT INTO approval_steps (proposal_id, step_order, role, approver, decision, comments, decided_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, st.StepOrder, st.Role, st.Approver, string(st.Decision), st.Comments, st.DecidedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert step %d for %d: %w", st.StepOrder, id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update for %d: %w", id, err)
	}
	return p, nil
}

const selectProposal = `
	SELECT id, title, applicant_name, amount::text, description, status,
	       current_step_index, created_at, updated_at, submitted_at
	FROM proposals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var (
		p           models.Proposal
		amount      string
		status      string
		submittedAt *time.Time
	)
	err := row.Scan(&p.ID, &p.Title, &p.ApplicantName, &amount, &p.Description,
		&status, &p.CurrentStepIndex, &p.CreatedAt, &p.UpdatedAt, &submittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan proposal: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	p.Status = models.Status(status)
	p.SubmittedAt = submittedAt
	return &p, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) loadSteps(ctx context.Context, q querier, proposalID int64) ([]models.ApprovalStep, error) {
	rows, err := q.Query(ctx, `
		SELECT step_order, role, COALESCE(approver, ''), decision, COALESCE(comments, ''), decided_at
		FROM approval_steps
		WHERE proposal_id = $1
		ORDER BY step_order`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("load steps for %d: %w", proposalID, err)
	}
	defer rows.Close()

	var steps []models.ApprovalStep
	for rows.Next() {
		var (
			st       models.ApprovalStep
			decision string
		)
		if err := rows.Scan(&st.StepOrder, &st.Role, &st.Approver, &decision, &st.Comments, &st.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Decision = models.Decision(decision)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load steps for %d: %w", proposalID, err)
	}
	return steps, nil
}
