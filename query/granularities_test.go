package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketAlignment(t *testing.T) {
	tests := []struct {
		name        string
		granularity Granularity
		timestamp   time.Time
		want        time.Time
	}{
		{
			"minute truncates seconds",
			GranularityMinute,
			time.Date(2024, time.January, 1, 0, 5, 42, 0, time.UTC),
			time.Date(2024, time.January, 1, 0, 5, 0, 0, time.UTC),
		},
		{
			"hour bucket starts on the hour",
			GranularityHour,
			time.Date(2024, time.January, 1, 0, 5, 0, 0, time.UTC),
			time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"day bucket starts at UTC midnight",
			GranularityDay,
			time.Date(2024, time.March, 15, 23, 59, 59, 0, time.UTC),
			time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			"week bucket starts on Monday",
			// 2024-03-15 is a Friday; the preceding Monday is 2024-03-11
			GranularityWeek,
			time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			"week bucket keeps Monday as-is",
			GranularityWeek,
			time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			"week bucket wraps Sunday back to previous Monday",
			GranularityWeek,
			time.Date(2024, time.March, 17, 23, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			"month bucket starts on the 1st",
			GranularityMonth,
			time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC),
			time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"non-UTC timestamps convert to UTC first",
			GranularityDay,
			time.Date(2024, time.March, 15, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60)),
			time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			"none granularity has no bucket",
			GranularityNone,
			time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
			time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.granularity.Bucket(tt.timestamp))
		})
	}
}

// Events within the same hour map to the same bucket boundary.
func TestHourBucketMergesEvents(t *testing.T) {
	event1 := time.Date(2024, time.January, 1, 0, 5, 0, 0, time.UTC)
	event2 := time.Date(2024, time.January, 1, 0, 45, 0, 0, time.UTC)

	bucket := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, bucket, GranularityHour.Bucket(event1))
	assert.Equal(t, bucket, GranularityHour.Bucket(event2))
}
