package engine

import (
	"hermannm.dev/analytics/config"
	"hermannm.dev/wrap"
)

// MetricDefinition ties a metric name to its aggregation function. Which function applies to a
// metric is a property of the metric itself, not of any single query.
type MetricDefinition struct {
	Name        string          `json:"name"`
	Aggregation AggregationKind `json:"aggregation"`
}

// MetricRegistry resolves the aggregation function for each metric. Metrics without a
// registered definition aggregate with SUM.
type MetricRegistry struct {
	aggregations map[string]AggregationKind
}

func NewMetricRegistry(definitions ...MetricDefinition) MetricRegistry {
	aggregations := make(map[string]AggregationKind, len(definitions))
	for _, definition := range definitions {
		aggregations[definition.Name] = definition.Aggregation
	}

	return MetricRegistry{aggregations: aggregations}
}

// MetricRegistryFromConfig builds a registry from the METRIC_AGGREGATIONS env map.
func MetricRegistryFromConfig(config config.Engine) (MetricRegistry, error) {
	definitions := make([]MetricDefinition, 0, len(config.MetricAggregations))

	for metric, aggregationName := range config.MetricAggregations {
		kind, err := ParseAggregationKind(aggregationName)
		if err != nil {
			return MetricRegistry{}, wrap.Errorf(
				err,
				"invalid aggregation for metric '%s' in config",
				metric,
			)
		}

		definitions = append(definitions, MetricDefinition{Name: metric, Aggregation: kind})
	}

	return NewMetricRegistry(definitions...), nil
}

func (registry MetricRegistry) AggregationFor(metric string) AggregationKind {
	if kind, ok := registry.aggregations[metric]; ok {
		return kind
	}
	return AggregationSum
}

func (registry MetricRegistry) Contains(metric string) bool {
	_, ok := registry.aggregations[metric]
	return ok
}
