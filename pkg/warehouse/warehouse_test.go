package warehouse

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
)

func TestRow(t *testing.T) {
	row := NewRow([]string{"b", "a", "c"}, []any{int64(1), "x", nil})

	assert.Equal(t, []string{"b", "a", "c"}, row.Keys())
	assert.Equal(t, 3, row.Len())

	v, ok := row.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	v, ok = row.Get("c")
	assert.True(t, ok, "NULL columns are present")
	assert.Nil(t, v)

	_, ok = row.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{"a": "x", "b": int64(1), "c": nil}, row.Map())
}

func TestRowFromMap(t *testing.T) {
	row := RowFromMap(map[string]any{"z": 1, "m": 2, "a": 3})
	assert.Equal(t, []string{"a", "m", "z"}, row.Keys())

	var zero Row
	assert.Empty(t, zero.Keys())
	_, ok := zero.Get("a")
	assert.False(t, ok)
}

func drain(t *testing.T, it RowIterator) []Row {
	t.Helper()
	var rows []Row
	for {
		row, err := it.Next()
		if stderrors.Is(err, Done) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestMemory(t *testing.T) {
	wh := NewMemory(
		RowFromMap(map[string]any{"id": int64(1)}),
		RowFromMap(map[string]any{"id": int64(2)}),
	)

	it, err := wh.Query(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)
	rows := drain(t, it)
	require.Len(t, rows, 2)
	v, _ := rows[1].Get("id")
	assert.Equal(t, int64(2), v)

	// Done is sticky
	_, err = it.Next()
	assert.ErrorIs(t, err, Done)

	assert.Equal(t, []string{"SELECT id FROM t"}, wh.Queries())
}

func TestMemory_TrailingError(t *testing.T) {
	boom := stderrors.New("connection reset")
	wh := &Memory{Handler: func(string) (*MemoryResult, error) {
		return &MemoryResult{Rows: []Row{RowFromMap(map[string]any{"id": 1})}, Err: boom}, nil
	}}

	it, err := wh.Query(context.Background(), "q")
	require.NoError(t, err)
	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	assert.ErrorIs(t, err, boom)
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Query(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func openSQLite(t *testing.T) *SQL {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE events (id INTEGER, name TEXT, score REAL, created_at TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO events VALUES
		(1, 'a', 1.5, '2020-01-01 00:00:00'),
		(2, NULL, 2.0, '2020-01-02 00:00:00'),
		(3, 'c', NULL, '2020-01-03 00:00:00')`)
	require.NoError(t, err)

	return NewSQL(db, nil)
}

func TestSQL_Query(t *testing.T) {
	wh := openSQLite(t)

	it, err := wh.Query(context.Background(), "SELECT id,name,score,created_at FROM events WHERE 1=1 ORDER BY created_at")
	require.NoError(t, err)
	defer it.Close()

	rows := drain(t, it)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name", "score", "created_at"}, rows[0].Keys())

	id, _ := rows[0].Get("id")
	assert.Equal(t, int64(1), id)
	name, _ := rows[0].Get("name")
	assert.Equal(t, "a", name)
	score, _ := rows[0].Get("score")
	assert.Equal(t, 1.5, score)

	name, ok := rows[1].Get("name")
	assert.True(t, ok)
	assert.Nil(t, name)

	assert.NoError(t, it.Close())
	assert.NoError(t, it.Close(), "Close is idempotent")
}

func TestSQL_QueryError(t *testing.T) {
	wh := openSQLite(t)

	_, err := wh.Query(context.Background(), "SELECT nope FROM missing_table")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
	q, ok := errors.DetailOf(err, "query")
	assert.True(t, ok)
	assert.Equal(t, "SELECT nope FROM missing_table", q)
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "snowflake", DriverName(TypeSnowflake))
	assert.Equal(t, "pgx", DriverName(TypePostgres))
	assert.Equal(t, "mysql", DriverName(TypeMySQL))
	assert.Equal(t, "sqlite", DriverName("sqlite"))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), config.WarehouseConfig{Type: "oracle"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(context.Background(), config.WarehouseConfig{Type: "postgres"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "dsn is required")
}

func TestOpen_TypeIsCaseInsensitive(t *testing.T) {
	_, err := Open(context.Background(), config.WarehouseConfig{Type: "Snowflake"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse.dsn is required for snowflake")
	assert.NotContains(t, err.Error(), "unsupported")
}
