// Package engine executes analytics queries against a data source and composes the result
// cache in front of that execution. Executor is the pure query pipeline; Engine is the cached
// facade most callers want.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"hermannm.dev/analytics/config"
	"hermannm.dev/analytics/datasource"
	"hermannm.dev/analytics/query"
	"hermannm.dev/wrap"
)

// QueryResult is the ordered output of a query. TotalRows counts rows before pagination, for
// caller-side paging. Results are immutable once produced; they may be shared between cache
// readers and must not be modified.
type QueryResult struct {
	Rows      []ResultRow `json:"rows"`
	TotalRows int         `json:"totalRows"`
}

// ResultRow maps the grouped dimension values and the aggregated value of every metric in one
// time bucket. Bucket is nil when the query has no granularity.
type ResultRow struct {
	Bucket     *time.Time             `json:"bucket,omitempty"`
	Dimensions map[string]query.Value `json:"dimensions,omitempty"`
	Metrics    map[string]float64     `json:"metrics"`
}

// Executor runs the query pipeline: filter evaluation, time range filter, granularity
// aggregation, dimension grouping, then sorting and pagination. Execution is deterministic
// given an identical data source snapshot.
type Executor struct {
	source       datasource.DataSource
	metrics      MetricRegistry
	observer     Observer
	fetchRetries int
	retryBackoff time.Duration
}

func NewExecutor(
	source datasource.DataSource,
	metrics MetricRegistry,
	observer Observer,
	engineConfig config.Engine,
) *Executor {
	retryBackoff := engineConfig.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = 100 * time.Millisecond
	}

	return &Executor{
		source:       source,
		metrics:      metrics,
		observer:     observer,
		fetchRetries: engineConfig.FetchRetries,
		retryBackoff: retryBackoff,
	}
}

// Execute validates and resolves the query, then runs it uncached against the data source.
func (executor *Executor) Execute(
	ctx context.Context,
	analyticsQuery query.AnalyticsQuery,
) (QueryResult, error) {
	resolved, err := executor.ValidateAndResolve(analyticsQuery, time.Now())
	if err != nil {
		return QueryResult{}, err
	}

	return executor.Run(ctx, resolved, CacheOutcomeUnknown)
}

// ValidateAndResolve checks the query shape and resolves its time range against the given
// instant, returning a ValidationError on any failure. No data source access happens here.
func (executor *Executor) ValidateAndResolve(
	analyticsQuery query.AnalyticsQuery,
	now time.Time,
) (query.AnalyticsQuery, error) {
	if err := analyticsQuery.Validate(); err != nil {
		return query.AnalyticsQuery{}, validationError(err)
	}

	resolved, err := analyticsQuery.Resolve(now)
	if err != nil {
		return query.AnalyticsQuery{}, validationError(err)
	}

	if err := executor.validateFieldReferences(resolved); err != nil {
		return query.AnalyticsQuery{}, validationError(err)
	}

	return resolved, nil
}

// validateFieldReferences rejects orderBy fields that cannot appear in the result: the field
// must be the timestamp, a grouped dimension, or a metric. Metric names are only checked
// against the registry when one is configured, since unregistered metrics are legal (they
// default to SUM).
func (executor *Executor) validateFieldReferences(resolved query.AnalyticsQuery) error {
	orderBy := resolved.OrderBy
	if orderBy == nil || orderBy.FieldName == timestampField {
		return nil
	}

	for _, dimension := range resolved.GroupBy {
		if orderBy.FieldName == dimension {
			return nil
		}
	}

	if len(executor.metrics.aggregations) == 0 || executor.metrics.Contains(orderBy.FieldName) {
		return nil
	}

	return fmt.Errorf(
		"orderBy references unknown field '%s' (must be '%s', a grouped dimension or a metric)",
		orderBy.FieldName,
		timestampField,
	)
}

// Run executes an already-validated, resolved query. The cache outcome is only used for the
// emitted execution record.
func (executor *Executor) Run(
	ctx context.Context,
	resolved query.AnalyticsQuery,
	outcome CacheOutcome,
) (QueryResult, error) {
	startTime := time.Now()
	record := ExecutionRecord{ID: uuid.New(), CacheOutcome: outcome}

	rows, err := executor.fetchWithRetries(ctx, resolved.TimeRange)
	if err != nil {
		record.Failed = true
		record.Duration = time.Since(startTime)
		emit(executor.observer, record)
		return QueryResult{}, QueryExecutionError{err: err}
	}
	record.RowsFetched = len(rows)

	filtered := filterRows(resolved, rows)
	record.RowsAfterFilter = len(filtered)

	resultRows := aggregateRows(resolved, filtered, executor.metrics)
	sortResultRows(resolved, resultRows)

	totalRows := len(resultRows)
	resultRows = paginateResultRows(resolved, resultRows)

	record.RowsReturned = len(resultRows)
	record.Duration = time.Since(startTime)
	emit(executor.observer, record)

	return QueryResult{Rows: resultRows, TotalRows: totalRows}, nil
}

// fetchWithRetries reads rows for the resolved time range, retrying transient data source
// failures with exponential backoff before giving up.
func (executor *Executor) fetchWithRetries(
	ctx context.Context,
	timeRange query.TimeRange,
) ([]datasource.Row, error) {
	var lastErr error
	backoff := executor.retryBackoff

	for attempt := 0; attempt <= executor.fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return nil, wrap.Error(ctx.Err(), "query cancelled while retrying data source")
			}
		}

		rows, err := executor.source.FetchRows(ctx, timeRange.Start, timeRange.End)
		if err == nil {
			return rows, nil
		}

		lastErr = DataSourceError{err: err}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, wrap.Errorf(
		lastErr,
		"data source failed after %d attempts",
		executor.fetchRetries+1,
	)
}
