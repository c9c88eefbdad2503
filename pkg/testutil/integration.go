package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/query"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/warehouse"
)

// SQLiteDialect compares replication keys stored as
// "2006-01-02 15:04:05.000000" text, which sorts chronologically.
var SQLiteDialect = query.Dialect{
	Name:    "sqlite",
	Literal: func(ts string) string { return "'" + ts + "'" },
	Cast:    func(c string) string { return c },
}

// IntegrationTestSuite runs against a SQLite file behind the database/sql
// warehouse. The database lives for the whole suite; tests reset the
// tables they use in SetupTest.
type IntegrationTestSuite struct {
	suite.Suite

	ctx    context.Context
	cancel context.CancelFunc

	DB        *sql.DB
	Warehouse *warehouse.SQL
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)

	path := filepath.Join(s.T().TempDir(), "warehouse.db")
	db, err := sql.Open("sqlite", path)
	s.Require().NoError(err)
	// one connection so every statement sees the same file state
	db.SetMaxOpenConns(1)

	s.DB = db
	s.Warehouse = warehouse.NewSQL(db, nil)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.Warehouse != nil {
		s.NoError(s.Warehouse.Close())
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Context is cancelled when the suite finishes or after five minutes.
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// Exec runs statements in order, failing the test on the first error.
func (s *IntegrationTestSuite) Exec(statements ...string) {
	for _, stmt := range statements {
		_, err := s.DB.ExecContext(s.ctx, stmt)
		s.Require().NoError(err, stmt)
	}
}

// IntegrationTest skips t under -short.
func IntegrationTest(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
}
