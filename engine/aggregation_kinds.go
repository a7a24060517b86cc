package engine

import (
	"fmt"

	"hermannm.dev/enumnames"
)

type AggregationKind int8

const (
	AggregationSum AggregationKind = iota + 1
	AggregationAverage
	AggregationMin
	AggregationMax
	AggregationCount
)

var aggregationMap = enumnames.NewMap(map[AggregationKind]string{
	AggregationSum:     "SUM",
	AggregationAverage: "AVERAGE",
	AggregationMin:     "MIN",
	AggregationMax:     "MAX",
	AggregationCount:   "COUNT",
})

func (kind AggregationKind) IsValid() bool {
	return aggregationMap.ContainsEnumValue(kind)
}

func (kind AggregationKind) String() string {
	return aggregationMap.GetNameOrFallback(kind, "INVALID_AGGREGATION")
}

func (kind AggregationKind) MarshalJSON() ([]byte, error) {
	return aggregationMap.MarshalToNameJSON(kind)
}

func (kind *AggregationKind) UnmarshalJSON(bytes []byte) error {
	return aggregationMap.UnmarshalFromNameJSON(bytes, kind)
}

// ParseAggregationKind maps an aggregation name from config (e.g. "SUM") to its enum value.
func ParseAggregationKind(name string) (AggregationKind, error) {
	for _, kind := range []AggregationKind{
		AggregationSum,
		AggregationAverage,
		AggregationMin,
		AggregationMax,
		AggregationCount,
	} {
		if kind.String() == name {
			return kind, nil
		}
	}

	return 0, fmt.Errorf("unrecognized aggregation kind '%s'", name)
}
