package engine

import (
	"slices"
	"strings"
	"time"

	"hermannm.dev/analytics/datasource"
	"hermannm.dev/analytics/query"
)

// timestampField is the field name that orderBy uses to sort on the time bucket.
const timestampField = "timestamp"

// filterRows applies every filter (logical AND) and the resolved time range [start, end) to the
// fetched rows. A row missing a filtered field is a non-match, not an error.
func filterRows(resolved query.AnalyticsQuery, rows []datasource.Row) []datasource.Row {
	filtered := make([]datasource.Row, 0, len(rows))

rowLoop:
	for _, row := range rows {
		if !resolved.TimeRange.Contains(row.Timestamp) {
			continue
		}

		for i := range resolved.Filters {
			filter := &resolved.Filters[i]
			fieldValue, fieldPresent := rowFieldValue(row, filter.FieldName)
			if !filter.Matches(fieldValue, fieldPresent) {
				continue rowLoop
			}
		}

		filtered = append(filtered, row)
	}

	return filtered
}

// rowFieldValue looks a field up on a row, checking dimensions first, then metrics (exposed to
// filters as numbers).
func rowFieldValue(row datasource.Row, fieldName string) (query.Value, bool) {
	if value, ok := row.Dimensions[fieldName]; ok {
		return value, true
	}
	if metricValue, ok := row.Metrics[fieldName]; ok {
		return query.NumberValue(metricValue), true
	}
	return query.Value{}, false
}

// metricAccumulator accumulates one metric's values within a single bucket/dimension group.
type metricAccumulator struct {
	sum   float64
	min   float64
	max   float64
	count int
}

func (accumulator *metricAccumulator) add(value float64) {
	if accumulator.count == 0 || value < accumulator.min {
		accumulator.min = value
	}
	if accumulator.count == 0 || value > accumulator.max {
		accumulator.max = value
	}
	accumulator.sum += value
	accumulator.count++
}

func (accumulator *metricAccumulator) finalize(kind AggregationKind) float64 {
	switch kind {
	case AggregationSum:
		return accumulator.sum
	case AggregationAverage:
		if accumulator.count == 0 {
			return 0
		}
		return accumulator.sum / float64(accumulator.count)
	case AggregationMin:
		return accumulator.min
	case AggregationMax:
		return accumulator.max
	case AggregationCount:
		return float64(accumulator.count)
	default:
		return accumulator.sum
	}
}

type resultGroup struct {
	bucket     time.Time
	dimensions map[string]query.Value
	sortKey    string
	metrics    map[string]*metricAccumulator
}

// aggregateRows merges rows into granularity buckets and dimension groups, aggregating each
// metric with its registered function. Only populated bucket/dimension combinations appear in
// the output (no zero-filling). Output is ordered by bucket, then by ascending lexical order of
// concatenated dimension values, which both makes results deterministic and serves as the
// tie-break order after sorting.
func aggregateRows(
	resolved query.AnalyticsQuery,
	rows []datasource.Row,
	metrics MetricRegistry,
) []ResultRow {
	groups := make(map[string]*resultGroup)

	for _, row := range rows {
		bucket := resolved.Granularity.Bucket(row.Timestamp)

		var sortKeyBuilder strings.Builder
		dimensions := make(map[string]query.Value, len(resolved.GroupBy))
		for _, dimension := range resolved.GroupBy {
			value, ok := row.Dimensions[dimension]
			if !ok {
				value = query.NullValue()
			}
			dimensions[dimension] = value

			sortKeyBuilder.WriteString(value.String())
			sortKeyBuilder.WriteByte(0x1f) // Unit separator, to keep adjacent values distinct
		}
		sortKey := sortKeyBuilder.String()

		groupKey := bucket.Format(time.RFC3339Nano) + "\x00" + sortKey
		group, ok := groups[groupKey]
		if !ok {
			group = &resultGroup{
				bucket:     bucket,
				dimensions: dimensions,
				sortKey:    sortKey,
				metrics:    make(map[string]*metricAccumulator),
			}
			groups[groupKey] = group
		}

		for metric, metricValue := range row.Metrics {
			accumulator, ok := group.metrics[metric]
			if !ok {
				accumulator = &metricAccumulator{}
				group.metrics[metric] = accumulator
			}
			accumulator.add(metricValue)
		}
	}

	ordered := make([]*resultGroup, 0, len(groups))
	for _, group := range groups {
		ordered = append(ordered, group)
	}
	slices.SortFunc(ordered, func(group1 *resultGroup, group2 *resultGroup) int {
		if comparison := group1.bucket.Compare(group2.bucket); comparison != 0 {
			return comparison
		}
		return strings.Compare(group1.sortKey, group2.sortKey)
	})

	resultRows := make([]ResultRow, 0, len(ordered))
	for _, group := range ordered {
		resultRow := ResultRow{
			Metrics: make(map[string]float64, len(group.metrics)),
		}
		if resolved.Granularity != query.GranularityNone {
			bucket := group.bucket
			resultRow.Bucket = &bucket
		}
		if len(resolved.GroupBy) > 0 {
			resultRow.Dimensions = group.dimensions
		}

		for metric, accumulator := range group.metrics {
			resultRow.Metrics[metric] = accumulator.finalize(metrics.AggregationFor(metric))
		}

		resultRows = append(resultRows, resultRow)
	}

	return resultRows
}

// sortResultRows applies the query's orderBy with a stable sort, so that tied rows keep the
// deterministic bucket/dimension order from aggregation.
func sortResultRows(resolved query.AnalyticsQuery, resultRows []ResultRow) {
	orderBy := resolved.OrderBy
	if orderBy == nil {
		return
	}

	descending := orderBy.Order == query.SortOrderDescending

	slices.SortStableFunc(resultRows, func(row1 ResultRow, row2 ResultRow) int {
		comparison := compareResultRows(row1, row2, orderBy.FieldName)
		if descending {
			comparison = -comparison
		}
		return comparison
	})
}

func compareResultRows(row1 ResultRow, row2 ResultRow, fieldName string) int {
	if fieldName == timestampField {
		return compareBuckets(row1.Bucket, row2.Bucket)
	}

	if value1, ok := row1.Dimensions[fieldName]; ok {
		value2, ok := row2.Dimensions[fieldName]
		if !ok {
			return 1
		}
		if comparison, err := value1.Compare(value2); err == nil {
			return comparison
		}
		return 0
	}

	metric1, ok1 := row1.Metrics[fieldName]
	metric2, ok2 := row2.Metrics[fieldName]
	switch {
	case !ok1 && !ok2:
		return 0
	case !ok1:
		return -1
	case !ok2:
		return 1
	case metric1 < metric2:
		return -1
	case metric1 > metric2:
		return 1
	default:
		return 0
	}
}

func compareBuckets(bucket1 *time.Time, bucket2 *time.Time) int {
	switch {
	case bucket1 == nil && bucket2 == nil:
		return 0
	case bucket1 == nil:
		return -1
	case bucket2 == nil:
		return 1
	default:
		return bucket1.Compare(*bucket2)
	}
}

// paginateResultRows skips offset rows and caps the output at limit rows. Limit 0 means no
// limit. Pagination always applies after aggregation, grouping and sorting.
func paginateResultRows(resolved query.AnalyticsQuery, resultRows []ResultRow) []ResultRow {
	if resolved.Offset >= len(resultRows) {
		return []ResultRow{}
	}
	resultRows = resultRows[resolved.Offset:]

	if resolved.Limit > 0 && resolved.Limit < len(resultRows) {
		resultRows = resultRows[:resolved.Limit]
	}

	return resultRows
}
