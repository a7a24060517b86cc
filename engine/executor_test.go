package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/analytics/cache"
	"hermannm.dev/analytics/config"
	"hermannm.dev/analytics/datasource"
	"hermannm.dev/analytics/engine"
	"hermannm.dev/analytics/query"
)

var baseTime = time.Date(2023, time.September, 12, 0, 0, 0, 0, time.UTC)

func eventRow(
	offset time.Duration,
	country string,
	device string,
	views float64,
) datasource.Row {
	return datasource.Row{
		Timestamp: baseTime.Add(offset),
		Dimensions: map[string]query.Value{
			"country": query.StringValue(country),
			"device":  query.StringValue(device),
		},
		Metrics: map[string]float64{"views": views},
	}
}

func testSource() *datasource.MemorySource {
	return datasource.NewMemorySource(
		eventRow(5*time.Minute, "US", "mobile", 10),
		eventRow(45*time.Minute, "US", "desktop", 20),
		eventRow(70*time.Minute, "CA", "mobile", 5),
		eventRow(90*time.Minute, "NO", "desktop", 7),
		eventRow(25*time.Hour, "US", "mobile", 3),
	)
}

func newTestExecutor(source datasource.DataSource) *engine.Executor {
	return engine.NewExecutor(
		source,
		engine.NewMetricRegistry(),
		nil,
		config.Engine{FetchRetries: 0, RetryBackoff: time.Millisecond},
	)
}

func dayRange() query.TimeRange {
	return query.TimeRange{Start: baseTime, End: baseTime.Add(24 * time.Hour)}
}

func TestExecuteFiltersAndAggregates(t *testing.T) {
	executor := newTestExecutor(testSource())

	result, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		Filters: []query.Filter{
			{
				FieldName: "country",
				Operator:  query.OperatorIn,
				Values: []query.Value{
					query.StringValue("US"),
					query.StringValue("CA"),
				},
			},
		},
		TimeRange: dayRange(),
	})
	require.NoError(t, err)

	// The NO row is filtered out and the 25h row falls outside the range; the remaining three
	// rows collapse into a single result with no granularity or grouping
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 1, result.TotalRows)
	assert.Nil(t, result.Rows[0].Bucket)
	assert.Nil(t, result.Rows[0].Dimensions)
	assert.Equal(t, float64(35), result.Rows[0].Metrics["views"])
}

func TestExecuteBucketsByHour(t *testing.T) {
	executor := newTestExecutor(testSource())

	result, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange:   dayRange(),
		Granularity: query.GranularityHour,
	})
	require.NoError(t, err)

	// 00:05 and 00:45 merge into the 00:00 bucket; 01:10 and 01:30 into the 01:00 bucket
	require.Len(t, result.Rows, 2)

	require.NotNil(t, result.Rows[0].Bucket)
	assert.Equal(t, baseTime, *result.Rows[0].Bucket)
	assert.Equal(t, float64(30), result.Rows[0].Metrics["views"])

	require.NotNil(t, result.Rows[1].Bucket)
	assert.Equal(t, baseTime.Add(time.Hour), *result.Rows[1].Bucket)
	assert.Equal(t, float64(12), result.Rows[1].Metrics["views"])
}

func TestExecuteGroupsByDimension(t *testing.T) {
	executor := newTestExecutor(testSource())

	analyticsQuery := query.AnalyticsQuery{
		TimeRange: dayRange(),
		GroupBy:   []string{"country"},
	}

	result, err := executor.Execute(context.Background(), analyticsQuery)
	require.NoError(t, err)

	require.Len(t, result.Rows, 3)

	viewsByCountry := make(map[string]float64, len(result.Rows))
	var groupOrder []string
	for _, row := range result.Rows {
		country, ok := row.Dimensions["country"].StringValue()
		require.True(t, ok)
		viewsByCountry[country] = row.Metrics["views"]
		groupOrder = append(groupOrder, country)
	}

	assert.Equal(t, map[string]float64{"US": 30, "CA": 5, "NO": 7}, viewsByCountry)

	// Without an explicit orderBy, group order is deterministic across executions
	for i := 0; i < 5; i++ {
		repeated, err := executor.Execute(context.Background(), analyticsQuery)
		require.NoError(t, err)

		var repeatedOrder []string
		for _, row := range repeated.Rows {
			country, _ := row.Dimensions["country"].StringValue()
			repeatedOrder = append(repeatedOrder, country)
		}
		assert.Equal(t, groupOrder, repeatedOrder)
	}
}

func TestExecuteOrdersByMetric(t *testing.T) {
	executor := newTestExecutor(testSource())

	result, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange: dayRange(),
		GroupBy:   []string{"country"},
		OrderBy:   &query.OrderBy{FieldName: "views", Order: query.SortOrderDescending},
	})
	require.NoError(t, err)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, float64(30), result.Rows[0].Metrics["views"])
	assert.Equal(t, float64(7), result.Rows[1].Metrics["views"])
	assert.Equal(t, float64(5), result.Rows[2].Metrics["views"])
}

func TestExecutePaginatesAfterAggregation(t *testing.T) {
	source := datasource.NewMemorySource()
	for i := 0; i < 100; i++ {
		source.AddRows(datasource.Row{
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Dimensions: map[string]query.Value{
				"page": query.StringValue(fmt.Sprintf("page%03d", i)),
			},
			Metrics: map[string]float64{"views": float64(i)},
		})
	}

	executor := newTestExecutor(source)

	result, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange: dayRange(),
		GroupBy:   []string{"page"},
		OrderBy:   &query.OrderBy{FieldName: "page", Order: query.SortOrderAscending},
		Limit:     10,
		Offset:    20,
	})
	require.NoError(t, err)

	// Pagination applies after aggregation: rows 20-29 of 100 groups, with the full group count
	// reported for caller-side paging
	require.Len(t, result.Rows, 10)
	assert.Equal(t, 100, result.TotalRows)

	first, _ := result.Rows[0].Dimensions["page"].StringValue()
	last, _ := result.Rows[9].Dimensions["page"].StringValue()
	assert.Equal(t, "page020", first)
	assert.Equal(t, "page029", last)
}

func TestExecuteOffsetBeyondResults(t *testing.T) {
	executor := newTestExecutor(testSource())

	result, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange: dayRange(),
		GroupBy:   []string{"country"},
		Offset:    50,
	})
	require.NoError(t, err)

	assert.Empty(t, result.Rows)
	assert.Equal(t, 3, result.TotalRows)
}

func TestExecuteAggregationKinds(t *testing.T) {
	source := datasource.NewMemorySource(
		datasource.Row{
			Timestamp: baseTime.Add(time.Minute),
			Metrics:   map[string]float64{"latency": 100, "errors": 1},
		},
		datasource.Row{
			Timestamp: baseTime.Add(2 * time.Minute),
			Metrics:   map[string]float64{"latency": 300, "errors": 0},
		},
		datasource.Row{
			Timestamp: baseTime.Add(3 * time.Minute),
			Metrics:   map[string]float64{"latency": 200, "errors": 2},
		},
	)

	testCases := []struct {
		aggregation engine.AggregationKind
		expected    float64
	}{
		{engine.AggregationSum, 600},
		{engine.AggregationAverage, 200},
		{engine.AggregationMin, 100},
		{engine.AggregationMax, 300},
		{engine.AggregationCount, 3},
	}

	for _, testCase := range testCases {
		t.Run(testCase.aggregation.String(), func(t *testing.T) {
			executor := engine.NewExecutor(
				source,
				engine.NewMetricRegistry(engine.MetricDefinition{
					Name:        "latency",
					Aggregation: testCase.aggregation,
				}),
				nil,
				config.Engine{},
			)

			result, err := executor.Execute(context.Background(), query.AnalyticsQuery{
				TimeRange: dayRange(),
			})
			require.NoError(t, err)

			require.Len(t, result.Rows, 1)
			assert.Equal(t, testCase.expected, result.Rows[0].Metrics["latency"])
			// Unregistered metrics default to SUM
			assert.Equal(t, float64(3), result.Rows[0].Metrics["errors"])
		})
	}
}

func TestExecuteValidationErrors(t *testing.T) {
	executor := newTestExecutor(testSource())

	testCases := []struct {
		name           string
		analyticsQuery query.AnalyticsQuery
	}{
		{
			name:           "missing time range",
			analyticsQuery: query.AnalyticsQuery{},
		},
		{
			name: "end before start",
			analyticsQuery: query.AnalyticsQuery{
				TimeRange: query.TimeRange{Start: baseTime.Add(time.Hour), End: baseTime},
			},
		},
		{
			name: "invalid relative duration",
			analyticsQuery: query.AnalyticsQuery{
				TimeRange: query.TimeRange{Last: "24x"},
			},
		},
		{
			name: "filter with malformed operands",
			analyticsQuery: query.AnalyticsQuery{
				Filters: []query.Filter{
					{FieldName: "country", Operator: query.OperatorBetween},
				},
				TimeRange: dayRange(),
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := executor.Execute(context.Background(), testCase.analyticsQuery)

			var validationErr engine.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestExecuteRejectsUnknownOrderByField(t *testing.T) {
	executor := engine.NewExecutor(
		testSource(),
		engine.NewMetricRegistry(engine.MetricDefinition{
			Name:        "views",
			Aggregation: engine.AggregationSum,
		}),
		nil,
		config.Engine{},
	)

	_, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange: dayRange(),
		OrderBy:   &query.OrderBy{FieldName: "nonexistent", Order: query.SortOrderAscending},
	})

	var validationErr engine.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	// Ordering by the timestamp or a registered metric is always valid
	_, err = executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange:   dayRange(),
		Granularity: query.GranularityHour,
		OrderBy:     &query.OrderBy{FieldName: "timestamp", Order: query.SortOrderDescending},
	})
	assert.NoError(t, err)
}

// flakySource fails its first N fetches before succeeding.
type flakySource struct {
	failuresLeft int
	fetchCalls   int
}

func (source *flakySource) FetchRows(
	ctx context.Context,
	start time.Time,
	end time.Time,
) ([]datasource.Row, error) {
	source.fetchCalls++
	if source.failuresLeft > 0 {
		source.failuresLeft--
		return nil, errors.New("connection reset")
	}
	return []datasource.Row{eventRow(time.Minute, "US", "mobile", 1)}, nil
}

func TestExecuteRetriesTransientFetchFailures(t *testing.T) {
	source := &flakySource{failuresLeft: 2}
	executor := engine.NewExecutor(
		source,
		engine.NewMetricRegistry(),
		nil,
		config.Engine{FetchRetries: 3, RetryBackoff: time.Millisecond},
	)

	result, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange: dayRange(),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, source.fetchCalls)
	assert.Equal(t, 1, result.TotalRows)
}

func TestExecuteFailsAfterExhaustingRetries(t *testing.T) {
	source := &flakySource{failuresLeft: 10}
	executor := engine.NewExecutor(
		source,
		engine.NewMetricRegistry(),
		nil,
		config.Engine{FetchRetries: 2, RetryBackoff: time.Millisecond},
	)

	_, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		TimeRange: dayRange(),
	})

	var executionErr engine.QueryExecutionError
	require.ErrorAs(t, err, &executionErr)
	var sourceErr engine.DataSourceError
	assert.ErrorAs(t, err, &sourceErr)
	assert.Equal(t, 3, source.fetchCalls)
}

// recordingObserver captures emitted execution records for assertions.
type recordingObserver struct {
	records chan engine.ExecutionRecord
}

func (observer *recordingObserver) ObserveExecution(record engine.ExecutionRecord) {
	observer.records <- record
}

func (observer *recordingObserver) ObserveCacheStats(stats cache.Stats) {}

func TestExecuteEmitsExecutionRecord(t *testing.T) {
	observer := &recordingObserver{records: make(chan engine.ExecutionRecord, 1)}
	executor := engine.NewExecutor(
		testSource(),
		engine.NewMetricRegistry(),
		observer,
		config.Engine{},
	)

	_, err := executor.Execute(context.Background(), query.AnalyticsQuery{
		Filters: []query.Filter{
			{
				FieldName: "country",
				Operator:  query.OperatorEquals,
				Value:     query.StringValue("US"),
			},
		},
		TimeRange: dayRange(),
		GroupBy:   []string{"device"},
	})
	require.NoError(t, err)

	select {
	case record := <-observer.records:
		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.Equal(t, 4, record.RowsFetched)
		assert.Equal(t, 2, record.RowsAfterFilter)
		assert.Equal(t, 2, record.RowsReturned)
		assert.False(t, record.Failed)
	case <-time.After(time.Second):
		t.Fatal("no execution record emitted")
	}
}

func BenchmarkExecute(b *testing.B) {
	source := datasource.NewMemorySource()
	for i := 0; i < 10000; i++ {
		source.AddRows(eventRow(
			time.Duration(i)*time.Second,
			[]string{"US", "CA", "NO", "DE"}[i%4],
			[]string{"mobile", "desktop"}[i%2],
			float64(i%100),
		))
	}

	executor := newTestExecutor(source)
	analyticsQuery := query.AnalyticsQuery{
		TimeRange:   dayRange(),
		Granularity: query.GranularityHour,
		GroupBy:     []string{"country"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := executor.Execute(context.Background(), analyticsQuery); err != nil {
			b.Fatal(err)
		}
	}
}
