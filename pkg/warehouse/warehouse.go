// Package warehouse defines the query-execution capability the tap needs
// from a data warehouse and provides BigQuery and database/sql backed
// implementations.
//
// A Warehouse executes one SQL statement and hands back a streaming
// RowIterator; nothing is buffered beyond the row being read.
package warehouse

import (
	"context"

	"google.golang.org/api/iterator"
)

// Done is returned by RowIterator.Next when the result set is exhausted.
var Done = iterator.Done

// Warehouse executes SQL text.
type Warehouse interface {
	// Query runs sql and returns an iterator over its rows. Errors are
	// reported as errors.ErrorTypeQuery.
	Query(ctx context.Context, sql string) (RowIterator, error)
	// Close releases the underlying client.
	Close() error
}

// RowIterator streams the rows of a result set in order.
type RowIterator interface {
	// Next returns the next row, or Done after the last one.
	Next() (Row, error)
	// Close stops iteration and releases resources. It is safe to call
	// more than once.
	Close() error
}

// Type identifies a warehouse backend in configuration.
type Type string

const (
	TypeBigQuery  Type = "bigquery"
	TypeSnowflake Type = "snowflake"
	TypePostgres  Type = "postgres"
	TypeMySQL     Type = "mysql"
)
