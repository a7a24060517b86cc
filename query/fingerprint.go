package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"hermannm.dev/wrap"
)

// Fingerprint hashes a resolved query into a deterministic cache key. Queries that are
// semantically identical but differ in filter or groupBy ordering produce the same key:
// filters are sorted by field name and operator, groupBy is sorted lexically, and the time
// range is truncated to whole seconds before hashing. The query must have been resolved with
// AnalyticsQuery.Resolve first, so that relative time ranges key on their absolute instants.
func Fingerprint(analyticsQuery AnalyticsQuery) (string, error) {
	canonical := canonicalQuery{
		Filters:     make([]canonicalFilter, 0, len(analyticsQuery.Filters)),
		RangeStart:  analyticsQuery.TimeRange.Start.UTC().Truncate(time.Second),
		RangeEnd:    analyticsQuery.TimeRange.End.UTC().Truncate(time.Second),
		Granularity: analyticsQuery.Granularity.String(),
		GroupBy:     slices.Clone(analyticsQuery.GroupBy),
		Limit:       analyticsQuery.Limit,
		Offset:      analyticsQuery.Offset,
	}

	for _, filter := range analyticsQuery.Filters {
		canonical.Filters = append(canonical.Filters, canonicalFilter{
			FieldName: filter.FieldName,
			Operator:  filter.Operator.String(),
			Value:     filter.Value,
			Values:    filter.Values,
			Pattern:   filter.Pattern,
		})
	}
	slices.SortFunc(canonical.Filters, func(filter1 canonicalFilter, filter2 canonicalFilter) int {
		if comparison := strings.Compare(filter1.FieldName, filter2.FieldName); comparison != 0 {
			return comparison
		}
		return strings.Compare(filter1.Operator, filter2.Operator)
	})

	slices.Sort(canonical.GroupBy)

	if orderBy := analyticsQuery.OrderBy; orderBy != nil {
		canonical.OrderByField = orderBy.FieldName
		canonical.OrderByOrder = orderBy.Order.String()
	}

	serialized, err := json.Marshal(canonical)
	if err != nil {
		return "", wrap.Error(err, "failed to serialize query for fingerprinting")
	}

	hash := sha256.Sum256(serialized)
	return hex.EncodeToString(hash[:]), nil
}

// canonicalQuery is the normalized serialization form hashed by Fingerprint. Enums are
// serialized by name, so that renumbering enum values never silently changes fingerprints.
type canonicalQuery struct {
	Filters      []canonicalFilter `json:"filters"`
	RangeStart   time.Time         `json:"rangeStart"`
	RangeEnd     time.Time         `json:"rangeEnd"`
	Granularity  string            `json:"granularity"`
	GroupBy      []string          `json:"groupBy"`
	OrderByField string            `json:"orderByField,omitempty"`
	OrderByOrder string            `json:"orderByOrder,omitempty"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

type canonicalFilter struct {
	FieldName string  `json:"fieldName"`
	Operator  string  `json:"operator"`
	Value     Value   `json:"value"`
	Values    []Value `json:"values,omitempty"`
	Pattern   string  `json:"pattern,omitempty"`
}
