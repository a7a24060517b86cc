package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelativeDuration(t *testing.T) {
	tests := []struct {
		relative string
		want     time.Duration
		wantErr  bool
	}{
		{"30m", 30 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"-24h", 24 * time.Hour, false},
		{"+1d", 24 * time.Hour, false},
		{"", 0, true},
		{"h", 0, true},
		{"24", 0, true},
		{"24x", 0, true},
		{"0h", 0, true},
		{"one-hour", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.relative, func(t *testing.T) {
			duration, err := ParseRelativeDuration(tt.relative)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, duration)
			}
		})
	}
}

func TestResolveRelativeRange(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	resolved, err := TimeRange{Last: "24h"}.Resolve(now)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-24*time.Hour), resolved.Start)
	assert.Equal(t, now, resolved.End)
	assert.False(t, resolved.IsRelative())
}

func TestResolveAbsoluteRange(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	resolved, err := TimeRange{Start: start, End: end}.Resolve(time.Now())
	require.NoError(t, err)
	assert.Equal(t, start, resolved.Start)
	assert.Equal(t, end, resolved.End)
}

func TestResolveErrors(t *testing.T) {
	now := time.Now()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		timeRange TimeRange
	}{
		{"empty range", TimeRange{}},
		{"missing end", TimeRange{Start: start}},
		{"end equals start", TimeRange{Start: start, End: start}},
		{"end before start", TimeRange{Start: start, End: start.Add(-time.Hour)}},
		{"both relative and absolute", TimeRange{Start: start, End: start.Add(time.Hour), Last: "1h"}},
		{"invalid relative syntax", TimeRange{Last: "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.timeRange.Resolve(now)
			assert.Error(t, err)
		})
	}
}

func TestContainsIsHalfOpen(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	timeRange := TimeRange{Start: start, End: end}

	assert.True(t, timeRange.Contains(start))
	assert.True(t, timeRange.Contains(end.Add(-time.Second)))
	assert.False(t, timeRange.Contains(end))
	assert.False(t, timeRange.Contains(start.Add(-time.Second)))
}
