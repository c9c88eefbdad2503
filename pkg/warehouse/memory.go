package warehouse

import (
	"context"
	"sync"
)

// MemoryResult is the canned response of a Memory warehouse. Err, when set,
// is returned by Next after all Rows have been read.
type MemoryResult struct {
	Rows []Row
	Err  error
}

// Memory is an in-process Warehouse that answers every query through
// Handler. It records the SQL it receives, which makes it the standard
// collaborator for engine tests and dry runs.
type Memory struct {
	Handler func(sql string) (*MemoryResult, error)

	mu      sync.Mutex
	queries []string
}

// NewMemory returns a warehouse that answers every query with rows.
func NewMemory(rows ...Row) *Memory {
	return &Memory{
		Handler: func(string) (*MemoryResult, error) {
			return &MemoryResult{Rows: rows}, nil
		},
	}
}

// Query records sql and returns the handler's result.
func (m *Memory) Query(ctx context.Context, sql string) (RowIterator, error) {
	m.mu.Lock()
	m.queries = append(m.queries, sql)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := m.Handler(sql)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &MemoryResult{}
	}
	return &memoryRows{res: res}, nil
}

// Queries returns the SQL received so far, in order.
func (m *Memory) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

type memoryRows struct {
	res *MemoryResult
	pos int
}

func (r *memoryRows) Next() (Row, error) {
	if r.pos < len(r.res.Rows) {
		row := r.res.Rows[r.pos]
		r.pos++
		return row, nil
	}
	if r.res.Err != nil {
		return Row{}, r.res.Err
	}
	return Row{}, Done
}

func (r *memoryRows) Close() error { return nil }
