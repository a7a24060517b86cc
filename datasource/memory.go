package datasource

import (
	"context"
	"sync"
	"time"
)

// MemorySource is an in-memory DataSource, used in tests and for running the service without a
// database backend. Safe for concurrent use.
type MemorySource struct {
	lock sync.RWMutex
	rows []Row
}

func NewMemorySource(rows ...Row) *MemorySource {
	return &MemorySource{rows: rows}
}

func (source *MemorySource) AddRows(rows ...Row) {
	source.lock.Lock()
	defer source.lock.Unlock()

	source.rows = append(source.rows, rows...)
}

func (source *MemorySource) FetchRows(
	ctx context.Context,
	start time.Time,
	end time.Time,
) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source.lock.RLock()
	defer source.lock.RUnlock()

	var matching []Row
	for _, row := range source.rows {
		if !row.Timestamp.Before(start) && row.Timestamp.Before(end) {
			matching = append(matching, row)
		}
	}

	return matching, nil
}
