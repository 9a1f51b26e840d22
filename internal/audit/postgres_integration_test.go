//go:build integration

package audit_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ipm/internal/audit"
	"ipm/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	db    *sql.DB
	store *audit.PostgresStore
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	pg := containers.NewPostgresContainer(s.T())

	db, err := audit.OpenPostgres(pg.DSN)
	s.Require().NoError(err)
	s.db = db

	_, err = db.ExecContext(context.Background(), audit.Schema)
	s.Require().NoError(err)

	s.store = audit.NewPostgres(db)
}

func (s *PostgresAuditSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), `TRUNCATE audit_entries RESTART IDENTITY`)
	s.Require().NoError(err)
}

func (s *PostgresAuditSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *PostgresAuditSuite) TestAppendAndList() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := int64(1); i <= 3; i++ {
		err := s.store.Append(ctx, audit.Entry{
			EventID:     "e" + string(rune('0'+i)),
			EventType:   "PROPOSAL_SUBMITTED",
			ProposalID:  i,
			PayloadJSON: `{"chain":["PEER_REVIEW"]}`,
			At:          now,
		})
		s.Require().NoError(err)
	}

	all, total, err := s.store.List(ctx, nil, 10, 0)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(all, 3)

	two := int64(2)
	filtered, total, err := s.store.List(ctx, &two, 10, 0)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(filtered, 1)
	s.Equal(int64(2), filtered[0].ProposalID)
	s.JSONEq(`{"chain":["PEER_REVIEW"]}`, filtered[0].PayloadJSON)
}

// Duplicate event ids append additional rows; the log records deliveries,
// not events.
func (s *PostgresAuditSuite) TestRedeliveryAppends() {
	ctx := context.Background()
	e := audit.Entry{
		EventID:     "dup",
		EventType:   "STEP_APPROVED",
		ProposalID:  9,
		PayloadJSON: "{}",
		At:          time.Now().UTC(),
	}
	s.Require().NoError(s.store.Append(ctx, e))
	s.Require().NoError(s.store.Append(ctx, e))

	nine := int64(9)
	_, total, err := s.store.List(ctx, &nine, 10, 0)
	s.Require().NoError(err)
	s.Equal(2, total)
}
