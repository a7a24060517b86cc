// Package query defines the closed shape of analytics queries: filter predicates, a time range,
// aggregation granularity, grouping, ordering and pagination. It also provides the deterministic
// fingerprint function used to key cached query results.
package query

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"hermannm.dev/wrap"
)

// AnalyticsQuery describes a single analytics request over a store of timestamped events.
// Filter order and GroupBy order carry no semantic meaning; both are normalized before
// fingerprinting.
type AnalyticsQuery struct {
	Filters     []Filter    `json:"filters,omitempty"`
	TimeRange   TimeRange   `json:"timeRange"`
	Granularity Granularity `json:"granularity,omitempty"`
	GroupBy     []string    `json:"groupBy,omitempty"`
	OrderBy     *OrderBy    `json:"orderBy,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	Offset      int         `json:"offset,omitempty"`
}

type OrderBy struct {
	FieldName string    `json:"fieldName"`
	Order     SortOrder `json:"order"`
}

// Validate checks the query's shape without touching any data source. It does not resolve the
// time range; Resolve does that (and validates the resolved range).
func (analyticsQuery *AnalyticsQuery) Validate() error {
	var errs []error

	for i := range analyticsQuery.Filters {
		if err := analyticsQuery.Filters[i].Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if analyticsQuery.Granularity != 0 && !analyticsQuery.Granularity.IsValid() {
		errs = append(errs, errors.New("invalid granularity"))
	}

	for _, dimension := range analyticsQuery.GroupBy {
		if dimension == "" {
			errs = append(errs, errors.New("groupBy contains empty dimension name"))
		}
	}

	if orderBy := analyticsQuery.OrderBy; orderBy != nil {
		if orderBy.FieldName == "" {
			errs = append(errs, errors.New("orderBy is missing field name"))
		}
		if !orderBy.Order.IsValid() {
			errs = append(errs, fmt.Errorf("invalid sort order for orderBy '%s'", orderBy.FieldName))
		}
	}

	if analyticsQuery.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit cannot be negative (got %d)", analyticsQuery.Limit))
	}
	if analyticsQuery.Offset < 0 {
		errs = append(errs, fmt.Errorf("offset cannot be negative (got %d)", analyticsQuery.Offset))
	}

	if len(errs) != 0 {
		return wrap.Errors("invalid analytics query", errs...)
	}

	return nil
}

// Resolve returns a copy of the query with its time range resolved to absolute instants,
// anchored to the given instant, and with an unset granularity defaulted to NONE.
func (analyticsQuery AnalyticsQuery) Resolve(now time.Time) (AnalyticsQuery, error) {
	resolvedRange, err := analyticsQuery.TimeRange.Resolve(now)
	if err != nil {
		return AnalyticsQuery{}, wrap.Error(err, "invalid time range")
	}

	resolved := analyticsQuery
	resolved.TimeRange = resolvedRange
	resolved.Filters = slices.Clone(analyticsQuery.Filters)
	resolved.GroupBy = slices.Clone(analyticsQuery.GroupBy)
	if resolved.Granularity == 0 {
		resolved.Granularity = GranularityNone
	}

	return resolved, nil
}
