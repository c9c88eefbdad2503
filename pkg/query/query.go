// Package query compiles a stream definition and a time window into the SQL
// text sent to the warehouse.
//
// Clause order is fixed so identical inputs always produce byte-identical
// queries:
//
//	SELECT <columns> FROM <table> WHERE 1=1
//	  [AND <filter>]...
//	  [AND <start> <= key] [AND key < <end>]
//	  [ORDER BY key] [LIMIT n]
//
// Filters and table names are trusted configuration and are embedded
// verbatim.
package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/instant"
)

// Window is the time range a sync pass selects. End is exclusive.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// NewWindow returns a window with the given bounds. A nil bound is open.
func NewWindow(start, end *time.Time) Window {
	return Window{Start: start, End: end}
}

// Dialect controls how time literals and casts are written.
type Dialect struct {
	Name string
	// Literal renders a time literal from its SQL text form
	Literal func(ts string) string
	// Cast converts the replication key column to a comparable timestamp
	Cast func(column string) string
}

var (
	// BigQuery is the default dialect.
	BigQuery = Dialect{
		Name:    "bigquery",
		Literal: func(ts string) string { return "datetime '" + ts + "'" },
		Cast:    func(c string) string { return "CAST(" + c + " as datetime)" },
	}

	// ANSI serves Snowflake and PostgreSQL.
	ANSI = Dialect{
		Name:    "ansi",
		Literal: func(ts string) string { return "TIMESTAMP '" + ts + "'" },
		Cast:    func(c string) string { return "CAST(" + c + " AS TIMESTAMP)" },
	}

	// MySQL serves MySQL and MariaDB.
	MySQL = Dialect{
		Name:    "mysql",
		Literal: func(ts string) string { return "TIMESTAMP '" + ts + "'" },
		Cast:    func(c string) string { return "CAST(" + c + " AS DATETIME)" },
	}
)

// DialectFor returns the dialect for a warehouse type name.
func DialectFor(warehouseType string) Dialect {
	switch strings.ToLower(warehouseType) {
	case "snowflake", "postgres":
		return ANSI
	case "mysql":
		return MySQL
	default:
		return BigQuery
	}
}

// Builder builds queries in one dialect. The zero value uses BigQuery.
type Builder struct {
	Dialect Dialect
}

// NewBuilder creates a builder for the dialect.
func NewBuilder(d Dialect) *Builder {
	return &Builder{Dialect: d}
}

// Build uses the BigQuery dialect. limit may be nil.
func Build(stream config.Stream, w Window, inclusiveStart bool, limit *int) string {
	return (&Builder{}).Build(stream, w, inclusiveStart, limit)
}

// Build renders the query for stream. It never modifies stream.
func (b *Builder) Build(stream config.Stream, w Window, inclusiveStart bool, limit *int) string {
	d := b.Dialect
	if d.Literal == nil || d.Cast == nil {
		d = BigQuery
	}
	key := stream.DatetimeKey

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(SelectColumns(stream), ","))
	sb.WriteString(" FROM ")
	sb.WriteString(stream.Table)
	sb.WriteString(" WHERE 1=1")

	for _, f := range stream.Filters {
		sb.WriteString(" AND ")
		sb.WriteString(f)
	}

	if key != "" {
		if w.Start != nil {
			op := " <= "
			if !inclusiveStart {
				op = " < "
			}
			sb.WriteString(" AND ")
			sb.WriteString(d.Literal(instant.SQLLiteral(*w.Start)))
			sb.WriteString(op)
			sb.WriteString(d.Cast(key))
		}
		if w.End != nil {
			sb.WriteString(" AND ")
			sb.WriteString(d.Cast(key))
			sb.WriteString(" < ")
			sb.WriteString(d.Literal(instant.SQLLiteral(*w.End)))
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(key)
	}

	if limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*limit))
	}

	return sb.String()
}

// SelectColumns returns the projected columns: the configured ones plus the
// replication key when it is missing and no column is a wildcard. The
// result is a fresh slice.
func SelectColumns(stream config.Stream) []string {
	cols := make([]string, len(stream.Columns), len(stream.Columns)+1)
	copy(cols, stream.Columns)

	if stream.DatetimeKey == "" {
		return cols
	}
	for _, c := range cols {
		if c == stream.DatetimeKey || strings.Contains(c, "*") {
			return cols
		}
	}
	return append(cols, stream.DatetimeKey)
}
