package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"hermannm.dev/analytics/cache"
	"hermannm.dev/devlog/log"
)

type CacheOutcome string

const (
	CacheOutcomeMiss    CacheOutcome = "miss"
	CacheOutcomeBypass  CacheOutcome = "bypass"
	CacheOutcomeUnknown CacheOutcome = "unknown"
)

// ExecutionRecord describes a single query execution, for the observability collaborator.
type ExecutionRecord struct {
	ID              uuid.UUID     `json:"id"`
	Duration        time.Duration `json:"duration"`
	RowsFetched     int           `json:"rowsFetched"`
	RowsAfterFilter int           `json:"rowsAfterFilter"`
	RowsReturned    int           `json:"rowsReturned"`
	CacheOutcome    CacheOutcome  `json:"cacheOutcome"`
	Failed          bool          `json:"failed"`
}

// Observer receives execution and cache-statistics records. Records are emitted fire-and-forget
// on their own goroutine: a slow or panicking observer never blocks or fails a query.
type Observer interface {
	ObserveExecution(record ExecutionRecord)
	ObserveCacheStats(stats cache.Stats)
}

// LogObserver logs observability records at debug level.
type LogObserver struct{}

func (LogObserver) ObserveExecution(record ExecutionRecord) {
	log.Debug(
		"query executed",
		slog.String("executionId", record.ID.String()),
		slog.Duration("duration", record.Duration),
		slog.Int("rowsFetched", record.RowsFetched),
		slog.Int("rowsAfterFilter", record.RowsAfterFilter),
		slog.Int("rowsReturned", record.RowsReturned),
		slog.String("cacheOutcome", string(record.CacheOutcome)),
		slog.Bool("failed", record.Failed),
	)
}

func (LogObserver) ObserveCacheStats(stats cache.Stats) {
	log.Debug(
		"cache stats",
		slog.Uint64("hits", stats.Hits),
		slog.Uint64("misses", stats.Misses),
		slog.Uint64("evictions", stats.Evictions),
		slog.Int("size", stats.Size),
		slog.Float64("hitRate", stats.HitRate),
	)
}

func emit(observer Observer, record ExecutionRecord) {
	if observer == nil {
		return
	}

	go func() {
		defer func() {
			// A panicking observer must never take the query down with it
			_ = recover()
		}()
		observer.ObserveExecution(record)
	}()
}
