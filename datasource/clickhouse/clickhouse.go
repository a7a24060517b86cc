// Package clickhouse implements the datasource boundary against a ClickHouse events table,
// with a configured timestamp column, dimension columns (String) and metric columns (Float64).
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"hermannm.dev/analytics/config"
	"hermannm.dev/analytics/datasource"
	"hermannm.dev/analytics/query"
	"hermannm.dev/wrap"
)

type EventSource struct {
	conn   driver.Conn
	config config.ClickHouse
}

func NewEventSource(config config.Config) (EventSource, error) {
	// Options docs: https://clickhouse.com/docs/en/integrations/go#connection-settings
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.ClickHouse.Address},
		Auth: clickhouse.Auth{
			Database: config.ClickHouse.DatabaseName,
			Username: config.ClickHouse.Username,
			Password: config.ClickHouse.Password,
		},
		Debug: config.ClickHouse.Debug,
		Debugf: func(format string, v ...any) {
			fmt.Printf(format+"\n", v...)
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return EventSource{}, wrap.Error(err, "failed to connect to ClickHouse")
	}

	if err := conn.Ping(context.Background()); err != nil {
		return EventSource{}, wrap.Error(err, "failed to ping ClickHouse connection")
	}

	return EventSource{conn: conn, config: config.ClickHouse}, nil
}

func (source EventSource) FetchRows(
	ctx context.Context,
	start time.Time,
	end time.Time,
) ([]datasource.Row, error) {
	queryString, err := source.buildFetchQueryString()
	if err != nil {
		return nil, wrap.Error(err, "failed to build events query")
	}

	dbRows, err := source.conn.Query(ctx, queryString, start, end)
	if err != nil {
		return nil, wrap.Error(err, "events query failed")
	}
	defer dbRows.Close()

	return source.scanRows(dbRows)
}

func (source EventSource) buildFetchQueryString() (string, error) {
	conf := source.config

	if err := ValidateIdentifiers(conf.Table, conf.TimestampColumn); err != nil {
		return "", wrap.Error(err, "invalid table/timestamp column name")
	}
	if err := ValidateIdentifiers(conf.DimensionColumns...); err != nil {
		return "", wrap.Error(err, "invalid dimension column name")
	}
	if err := ValidateIdentifiers(conf.MetricColumns...); err != nil {
		return "", wrap.Error(err, "invalid metric column name")
	}

	var builder QueryBuilder
	builder.WriteString("SELECT ")
	builder.WriteIdentifier(conf.TimestampColumn)
	for _, column := range conf.DimensionColumns {
		builder.WriteString(", ")
		builder.WriteIdentifier(column)
	}
	for _, column := range conf.MetricColumns {
		builder.WriteString(", ")
		builder.WriteIdentifier(column)
	}
	builder.WriteString(" FROM ")
	builder.WriteIdentifier(conf.Table)
	builder.WriteString(" WHERE ")
	builder.WriteIdentifier(conf.TimestampColumn)
	builder.WriteString(" >= ? AND ")
	builder.WriteIdentifier(conf.TimestampColumn)
	builder.WriteString(" < ?")

	return builder.String(), nil
}

func (source EventSource) scanRows(dbRows driver.Rows) ([]datasource.Row, error) {
	conf := source.config
	var rows []datasource.Row

	for dbRows.Next() {
		var timestamp time.Time
		dimensionValues := make([]string, len(conf.DimensionColumns))
		metricValues := make([]float64, len(conf.MetricColumns))

		scanTargets := make([]any, 0, 1+len(dimensionValues)+len(metricValues))
		scanTargets = append(scanTargets, &timestamp)
		for i := range dimensionValues {
			scanTargets = append(scanTargets, &dimensionValues[i])
		}
		for i := range metricValues {
			scanTargets = append(scanTargets, &metricValues[i])
		}

		if err := dbRows.Scan(scanTargets...); err != nil {
			return nil, wrap.Error(err, "failed to scan event row")
		}

		row := datasource.Row{
			Timestamp:  timestamp,
			Dimensions: make(map[string]query.Value, len(conf.DimensionColumns)),
			Metrics:    make(map[string]float64, len(conf.MetricColumns)),
		}
		for i, column := range conf.DimensionColumns {
			row.Dimensions[column] = query.StringValue(dimensionValues[i])
		}
		for i, column := range conf.MetricColumns {
			row.Metrics[column] = metricValues[i]
		}

		rows = append(rows, row)
	}

	if err := dbRows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read event rows")
	}

	return rows, nil
}
