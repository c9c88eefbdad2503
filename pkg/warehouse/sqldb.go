package warehouse

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"

	// database/sql drivers for the non-BigQuery warehouses
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/snowflakedb/gosnowflake"
)

// driverNames maps a warehouse type to its registered database/sql driver.
var driverNames = map[Type]string{
	TypeSnowflake: "snowflake",
	TypePostgres:  "pgx",
	TypeMySQL:     "mysql",
}

// DriverName returns the database/sql driver for t. Unknown types are
// returned unchanged so any registered driver can be used by name.
func DriverName(t Type) string {
	if d, ok := driverNames[t]; ok {
		return d
	}
	return string(t)
}

// SQL is a Warehouse backed by database/sql.
type SQL struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQL opens and pings a database/sql connection for the warehouse type.
func OpenSQL(ctx context.Context, t Type, dsn string, logger *zap.Logger) (*SQL, error) {
	if dsn == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "warehouse.dsn is required for %s", t)
	}

	db, err := sql.Open(DriverName(t), dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database").
			WithDetail("warehouse", string(t))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to database").
			WithDetail("warehouse", string(t))
	}

	return NewSQL(db, logger), nil
}

// NewSQL wraps an already opened database.
func NewSQL(db *sql.DB, logger *zap.Logger) *SQL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQL{db: db, logger: logger}
}

// Query executes q and streams its rows.
func (s *SQL) Query(ctx context.Context, q string) (RowIterator, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to execute query").
			WithDetail("query", q)
	}

	names, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read result columns")
	}

	return &sqlRows{rows: rows, cols: newColumnIndex(names)}, nil
}

// Close closes the database.
func (s *SQL) Close() error {
	return s.db.Close()
}

type sqlRows struct {
	rows      *sql.Rows
	cols      *columnIndex
	closeOnce sync.Once
	closeErr  error
}

func (r *sqlRows) Next() (Row, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return Row{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read next row")
		}
		return Row{}, Done
	}

	n := len(r.cols.names)
	values := make([]any, n)
	dest := make([]any, n)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		return Row{}, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan row")
	}

	// Text columns arrive as []byte from several drivers.
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}

	return Row{cols: r.cols, values: values}, nil
}

func (r *sqlRows) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.rows.Close()
	})
	return r.closeErr
}
