package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"hermannm.dev/wrap"
)

type Config struct {
	BaseConfig
	ClickHouse    ClickHouse
	Elasticsearch Elasticsearch
}

type BaseConfig struct {
	IsProduction bool        `env:"PRODUCTION"`
	DB           SupportedDB `env:"DATABASE"`
	API          API
	Cache        Cache
	Engine       Engine
}

type API struct {
	Port string `env:"API_PORT"`
}

type Cache struct {
	Capacity      int           `env:"CACHE_CAPACITY"       envDefault:"1000"`
	TTL           time.Duration `env:"CACHE_TTL"            envDefault:"5m"`
	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"1m"`
}

type Engine struct {
	Workers      int           `env:"QUERY_WORKERS"             envDefault:"8"`
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT"             envDefault:"30s"`
	FetchRetries int           `env:"DATA_SOURCE_FETCH_RETRIES" envDefault:"3"`
	RetryBackoff time.Duration `env:"DATA_SOURCE_RETRY_BACKOFF" envDefault:"100ms"`
	// Aggregation function per metric name, e.g. "revenue:SUM,latencyMs:AVERAGE".
	// Metrics not listed here aggregate with SUM.
	MetricAggregations map[string]string `env:"METRIC_AGGREGATIONS" envDefault:""`
}

type ClickHouse struct {
	Address          string   `env:"CLICKHOUSE_ADDRESS"`
	DatabaseName     string   `env:"CLICKHOUSE_DB_NAME"`
	Username         string   `env:"CLICKHOUSE_USERNAME"`
	Password         string   `env:"CLICKHOUSE_PASSWORD"`
	Table            string   `env:"CLICKHOUSE_TABLE"`
	TimestampColumn  string   `env:"CLICKHOUSE_TIMESTAMP_COLUMN"  envDefault:"timestamp"`
	DimensionColumns []string `env:"CLICKHOUSE_DIMENSION_COLUMNS" envSeparator:","`
	MetricColumns    []string `env:"CLICKHOUSE_METRIC_COLUMNS"    envSeparator:","`
	Debug            bool     `env:"CLICKHOUSE_DEBUG_ENABLED"     envDefault:"false"`
}

type Elasticsearch struct {
	Address         string   `env:"ELASTICSEARCH_ADDRESS"`
	Index           string   `env:"ELASTICSEARCH_INDEX"`
	TimestampField  string   `env:"ELASTICSEARCH_TIMESTAMP_FIELD"  envDefault:"timestamp"`
	DimensionFields []string `env:"ELASTICSEARCH_DIMENSION_FIELDS" envSeparator:","`
	MetricFields    []string `env:"ELASTICSEARCH_METRIC_FIELDS"    envSeparator:","`
	MaxDocuments    int      `env:"ELASTICSEARCH_MAX_DOCUMENTS"    envDefault:"10000"`
	Debug           bool     `env:"ELASTICSEARCH_DEBUG_ENABLED"    envDefault:"false"`
}

type SupportedDB string

const (
	DBClickHouse    SupportedDB = "clickhouse"
	DBElasticsearch SupportedDB = "elasticsearch"
	DBMemory        SupportedDB = "memory"
)

func ReadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil {
		return Config{}, wrap.Error(err, "failed to load .env file")
	}

	parseOptions := env.Options{RequiredIfNoDef: true}

	var config Config

	if err := env.ParseWithOptions(&config.BaseConfig, parseOptions); err != nil {
		return Config{}, err
	}

	switch config.DB {
	case DBClickHouse:
		if err := env.ParseWithOptions(&config.ClickHouse, parseOptions); err != nil {
			return Config{}, err
		}
	case DBElasticsearch:
		if err := env.ParseWithOptions(&config.Elasticsearch, parseOptions); err != nil {
			return Config{}, err
		}
	case DBMemory:
		// No backend config to parse
	default:
		err := fmt.Errorf(
			"must be one of: '%s', '%s', '%s'",
			DBClickHouse,
			DBElasticsearch,
			DBMemory,
		)
		return Config{}, wrap.Errorf(err, "unsupported value '%s' for DATABASE in env", config.DB)
	}

	return config, nil
}
