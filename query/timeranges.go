package query

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TimeRange bounds a query to [Start, End) (start inclusive, end exclusive). It is either
// absolute (Start and End set) or relative (Last set, e.g. "24h" for the last 24 hours,
// anchored to the instant of execution). Relative ranges must be resolved to absolute instants
// with Resolve before execution.
type TimeRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
	Last  string    `json:"last,omitempty"`
}

func (timeRange TimeRange) IsRelative() bool {
	return timeRange.Last != ""
}

// Resolve turns the time range into an absolute one, anchoring relative ranges to the given
// instant. Resolution is a pure function of that instant, so identical relative ranges resolved
// at different times produce different absolute ranges (which keeps stale relative-range cache
// entries from outliving their TTL).
func (timeRange TimeRange) Resolve(now time.Time) (TimeRange, error) {
	if timeRange.IsRelative() {
		if !timeRange.Start.IsZero() || !timeRange.End.IsZero() {
			return TimeRange{}, errors.New(
				"time range cannot set both 'last' and absolute 'start'/'end'",
			)
		}

		duration, err := ParseRelativeDuration(timeRange.Last)
		if err != nil {
			return TimeRange{}, err
		}

		now = now.UTC()
		return TimeRange{Start: now.Add(-duration), End: now}, nil
	}

	if timeRange.Start.IsZero() || timeRange.End.IsZero() {
		return TimeRange{}, errors.New("time range must set either 'last' or both 'start'/'end'")
	}
	if !timeRange.End.After(timeRange.Start) {
		return TimeRange{}, fmt.Errorf(
			"time range end '%v' must be after start '%v'",
			timeRange.End,
			timeRange.Start,
		)
	}

	return TimeRange{Start: timeRange.Start.UTC(), End: timeRange.End.UTC()}, nil
}

// Contains checks if the given timestamp falls within [Start, End).
func (timeRange TimeRange) Contains(timestamp time.Time) bool {
	return !timestamp.Before(timeRange.Start) && timestamp.Before(timeRange.End)
}

var relativeDurationUnits = map[byte]time.Duration{
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseRelativeDuration parses the relative time range grammar: an optional sign, an integer,
// and a unit letter ('m' for minutes, 'h' for hours, 'd' for days, 'w' for weeks), e.g. "30m"
// or "7d". The sign is accepted for symmetry but the duration is always interpreted as reaching
// back from the anchor instant, so "-24h" and "24h" are equivalent.
func ParseRelativeDuration(relative string) (time.Duration, error) {
	if len(relative) < 2 {
		return 0, fmt.Errorf("invalid relative time range '%s'", relative)
	}

	unit, ok := relativeDurationUnits[relative[len(relative)-1]]
	if !ok {
		return 0, fmt.Errorf(
			"invalid unit '%c' in relative time range '%s' (must be one of 'm', 'h', 'd', 'w')",
			relative[len(relative)-1],
			relative,
		)
	}

	count, err := strconv.Atoi(relative[:len(relative)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number in relative time range '%s'", relative)
	}
	if count < 0 {
		count = -count
	}
	if count == 0 {
		return 0, fmt.Errorf("relative time range '%s' must span a non-zero duration", relative)
	}

	return time.Duration(count) * unit, nil
}
