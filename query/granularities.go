package query

import (
	"time"

	"hermannm.dev/enumnames"
)

type Granularity uint8

const (
	GranularityNone Granularity = iota + 1
	GranularityMinute
	GranularityHour
	GranularityDay
	GranularityWeek
	GranularityMonth
)

var granularityMap = enumnames.NewMap(map[Granularity]string{
	GranularityNone:   "NONE",
	GranularityMinute: "MINUTE",
	GranularityHour:   "HOUR",
	GranularityDay:    "DAY",
	GranularityWeek:   "WEEK",
	GranularityMonth:  "MONTH",
})

func (granularity Granularity) IsValid() bool {
	return granularityMap.ContainsEnumValue(granularity)
}

func (granularity Granularity) String() string {
	return granularityMap.GetNameOrFallback(granularity, "INVALID_GRANULARITY")
}

func (granularity Granularity) MarshalJSON() ([]byte, error) {
	return granularityMap.MarshalToNameJSON(granularity)
}

func (granularity *Granularity) UnmarshalJSON(bytes []byte) error {
	return granularityMap.UnmarshalFromNameJSON(bytes, granularity)
}

// Bucket maps the given timestamp to its calendar-aligned bucket boundary in UTC: hour buckets
// start on the hour, day buckets at UTC midnight, week buckets on Monday, month buckets on the
// 1st. GranularityNone returns the zero time, as no bucketing applies.
func (granularity Granularity) Bucket(timestamp time.Time) time.Time {
	timestamp = timestamp.UTC()

	switch granularity {
	case GranularityMinute:
		return timestamp.Truncate(time.Minute)
	case GranularityHour:
		return timestamp.Truncate(time.Hour)
	case GranularityDay:
		year, month, day := timestamp.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		year, month, day := timestamp.Date()
		midnight := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

		// time.Weekday numbers Sunday as 0, but our weeks start on Monday
		daysSinceMonday := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -daysSinceMonday)
	case GranularityMonth:
		year, month, _ := timestamp.Date()
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}
