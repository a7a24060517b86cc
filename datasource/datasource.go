// Package datasource defines the read-only boundary to the underlying event/metric store, and
// provides an in-memory implementation. Database-backed implementations live in the clickhouse
// and elasticsearch subpackages.
package datasource

import (
	"context"
	"time"

	"hermannm.dev/analytics/query"
)

// Row is a single timestamped event as returned by a data source: dimension values keyed by
// dimension name, and metric values keyed by metric name.
type Row struct {
	Timestamp  time.Time              `json:"timestamp"`
	Dimensions map[string]query.Value `json:"dimensions"`
	Metrics    map[string]float64     `json:"metrics"`
}

// DataSource is a read-only accessor to the underlying event store. FetchRows returns all rows
// with timestamps in [start, end), in no particular order. Implementations may block on I/O and
// must respect cancellation of the given context. The engine treats fetch failures as retryable.
type DataSource interface {
	FetchRows(ctx context.Context, start time.Time, end time.Time) ([]Row, error)
}
