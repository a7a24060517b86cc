// Package elasticsearch implements the datasource boundary against an Elasticsearch index of
// event documents, with configured timestamp, dimension and metric fields.
package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	elastictypes "github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/analytics/config"
	"hermannm.dev/analytics/datasource"
	"hermannm.dev/analytics/query"
	"hermannm.dev/wrap"
)

type EventSource struct {
	client *elasticsearch.TypedClient
	config config.Elasticsearch
}

func NewEventSource(config config.Config) (EventSource, error) {
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses:         []string{config.Elasticsearch.Address},
		EnableDebugLogger: config.Elasticsearch.Debug,
	})
	if err != nil {
		return EventSource{}, wrap.Error(err, "failed to connect to Elasticsearch")
	}

	return EventSource{client: client, config: config.Elasticsearch}, nil
}

func (source EventSource) FetchRows(
	ctx context.Context,
	start time.Time,
	end time.Time,
) ([]datasource.Row, error) {
	conf := source.config

	rangeStart := start.UTC().Format(time.RFC3339Nano)
	rangeEnd := end.UTC().Format(time.RFC3339Nano)
	maxDocuments := conf.MaxDocuments

	response, err := source.client.Search().Index(conf.Index).Request(&search.Request{
		Size: &maxDocuments,
		Query: &elastictypes.Query{
			Range: map[string]elastictypes.RangeQuery{
				conf.TimestampField: elastictypes.DateRangeQuery{
					Gte: &rangeStart,
					Lt:  &rangeEnd,
				},
			},
		},
	}).Do(ctx)
	if err != nil {
		return nil, wrapElasticError(err, "events search request failed")
	}

	rows := make([]datasource.Row, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		row, err := source.documentToRow(hit.Source_)
		if err != nil {
			return nil, wrap.Errorf(err, "failed to parse event document '%s'", hit.Id_)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func (source EventSource) documentToRow(document json.RawMessage) (datasource.Row, error) {
	conf := source.config

	var fields map[string]any
	if err := json.Unmarshal(document, &fields); err != nil {
		return datasource.Row{}, wrap.Error(err, "failed to decode document JSON")
	}

	timestampField, ok := fields[conf.TimestampField].(string)
	if !ok {
		return datasource.Row{}, fmt.Errorf(
			"document is missing timestamp field '%s'",
			conf.TimestampField,
		)
	}
	timestamp, err := time.Parse(time.RFC3339, timestampField)
	if err != nil {
		return datasource.Row{}, wrap.Errorf(
			err,
			"failed to parse timestamp field '%s'",
			conf.TimestampField,
		)
	}

	row := datasource.Row{
		Timestamp:  timestamp,
		Dimensions: make(map[string]query.Value, len(conf.DimensionFields)),
		Metrics:    make(map[string]float64, len(conf.MetricFields)),
	}

	for _, field := range conf.DimensionFields {
		fieldValue, ok := fields[field]
		if !ok {
			continue
		}

		value, ok := scalarToValue(fieldValue)
		if !ok {
			return datasource.Row{}, fmt.Errorf(
				"dimension field '%s' holds non-scalar value",
				field,
			)
		}
		row.Dimensions[field] = value
	}

	for _, field := range conf.MetricFields {
		fieldValue, ok := fields[field].(float64)
		if !ok {
			continue
		}
		row.Metrics[field] = fieldValue
	}

	return row, nil
}

func scalarToValue(fieldValue any) (query.Value, bool) {
	switch fieldValue := fieldValue.(type) {
	case nil:
		return query.NullValue(), true
	case string:
		return query.StringValue(fieldValue), true
	case float64:
		return query.NumberValue(fieldValue), true
	case bool:
		return query.BooleanValue(fieldValue), true
	default:
		return query.Value{}, false
	}
}
