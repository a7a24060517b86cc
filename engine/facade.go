package engine

import (
	"context"
	"errors"
	"time"

	"hermannm.dev/analytics/cache"
	"hermannm.dev/analytics/config"
	"hermannm.dev/analytics/query"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// Engine is the cached query entry point: it fingerprints each query, serves repeats from the
// cache store, and bounds how many executions run concurrently on a worker pool independent of
// request concurrency. Construct with New; the caller owns the store's lifecycle and must
// Close it on shutdown.
type Engine struct {
	executor *Executor
	store    *cache.Store[QueryResult]
	observer Observer
	ttl      time.Duration
	timeout  time.Duration
	workers  chan struct{}
}

func New(
	executor *Executor,
	store *cache.Store[QueryResult],
	observer Observer,
	cacheConfig config.Cache,
	engineConfig config.Engine,
) *Engine {
	workerCount := engineConfig.Workers
	if workerCount <= 0 {
		workerCount = 8
	}

	return &Engine{
		executor: executor,
		store:    store,
		observer: observer,
		ttl:      cacheConfig.TTL,
		timeout:  engineConfig.QueryTimeout,
		workers:  make(chan struct{}, workerCount),
	}
}

// Execute runs the query, serving it from the cache when an identical query was executed within
// the TTL window. Concurrent calls for the same uncached query share a single execution. If the
// cache store has been closed, execution degrades to uncached rather than failing the request.
func (engine *Engine) Execute(
	ctx context.Context,
	analyticsQuery query.AnalyticsQuery,
) (QueryResult, error) {
	resolved, err := engine.executor.ValidateAndResolve(analyticsQuery, time.Now())
	if err != nil {
		return QueryResult{}, err
	}

	key, err := query.Fingerprint(resolved)
	if err != nil {
		return QueryResult{}, wrap.Error(err, "failed to fingerprint query")
	}

	ctx, cancel := engine.withQueryTimeout(ctx)
	defer cancel()

	result, err := engine.store.GetOrCompute(
		ctx,
		key,
		engine.ttl,
		cacheTags(resolved),
		func(ctx context.Context) (QueryResult, error) {
			return engine.run(ctx, resolved, CacheOutcomeMiss)
		},
	)
	if err != nil {
		if errors.Is(err, cache.ErrClosed) {
			log.Warn("cache store closed, degrading to uncached query execution")
			return engine.run(ctx, resolved, CacheOutcomeBypass)
		}
		return QueryResult{}, err
	}

	return result, nil
}

// BypassCache executes the query directly, for callers that need guaranteed freshness (e.g.
// post-write verification). The result is not cached.
func (engine *Engine) BypassCache(
	ctx context.Context,
	analyticsQuery query.AnalyticsQuery,
) (QueryResult, error) {
	resolved, err := engine.executor.ValidateAndResolve(analyticsQuery, time.Now())
	if err != nil {
		return QueryResult{}, err
	}

	ctx, cancel := engine.withQueryTimeout(ctx)
	defer cancel()

	return engine.run(ctx, resolved, CacheOutcomeBypass)
}

// Invalidate removes all cached results carrying the given tag (or matching the given glob
// pattern), returning the number of entries removed.
func (engine *Engine) Invalidate(tagOrPattern string) int {
	return engine.store.Invalidate(tagOrPattern)
}

// CacheStats snapshots the cache counters, also emitting them to the observability collaborator.
func (engine *Engine) CacheStats() cache.Stats {
	stats := engine.store.Stats()

	if observer := engine.observer; observer != nil {
		go func() {
			defer func() {
				_ = recover()
			}()
			observer.ObserveCacheStats(stats)
		}()
	}

	return stats
}

// run executes on the worker pool: it blocks until a worker slot frees up (or the context is
// cancelled), so that request concurrency never translates directly into execution concurrency.
func (engine *Engine) run(
	ctx context.Context,
	resolved query.AnalyticsQuery,
	outcome CacheOutcome,
) (QueryResult, error) {
	select {
	case engine.workers <- struct{}{}:
		defer func() { <-engine.workers }()
	case <-ctx.Done():
		return QueryResult{}, QueryExecutionError{
			err: wrap.Error(ctx.Err(), "query cancelled while waiting for worker"),
		}
	}

	return engine.executor.Run(ctx, resolved, outcome)
}

func (engine *Engine) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if engine.timeout > 0 {
		return context.WithTimeout(ctx, engine.timeout)
	}
	return context.WithCancel(ctx)
}

// cacheTags derives invalidation tags from a query's equality filters, so that entries can be
// invalidated by the identifiers they were filtered on (e.g. "organizationId:42") without a
// full scan.
func cacheTags(resolved query.AnalyticsQuery) []string {
	var tags []string

	for i := range resolved.Filters {
		filter := &resolved.Filters[i]

		switch filter.Operator {
		case query.OperatorEquals:
			tags = append(tags, filter.FieldName+":"+filter.Value.String())
		case query.OperatorIn:
			for _, value := range filter.Values {
				tags = append(tags, filter.FieldName+":"+value.String())
			}
		}
	}

	return tags
}
