package main

import (
	"log/slog"
	"net/http"
	"os"

	"hermannm.dev/analytics/api"
	"hermannm.dev/analytics/cache"
	"hermannm.dev/analytics/config"
	"hermannm.dev/analytics/datasource"
	"hermannm.dev/analytics/datasource/clickhouse"
	"hermannm.dev/analytics/datasource/elasticsearch"
	"hermannm.dev/analytics/engine"
	"hermannm.dev/devlog"
	"hermannm.dev/devlog/log"
)

func main() {
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logHandler))

	conf, err := config.ReadFromEnv()
	if err != nil {
		log.ErrorCause(err, "failed to read config from env")
		os.Exit(1)
	}

	source, err := initializeDataSource(conf)
	if err != nil {
		log.ErrorCause(err, "failed to initialize data source")
		os.Exit(1)
	}

	metrics, err := engine.MetricRegistryFromConfig(conf.Engine)
	if err != nil {
		log.ErrorCause(err, "failed to read metric definitions from config")
		os.Exit(1)
	}

	store := cache.NewStore[engine.QueryResult](cache.Options{
		Capacity:      conf.Cache.Capacity,
		SweepInterval: conf.Cache.SweepInterval,
	})
	defer store.Close()

	observer := engine.LogObserver{}
	executor := engine.NewExecutor(source, metrics, observer, conf.Engine)
	analyticsEngine := engine.New(executor, store, observer, conf.Cache, conf.Engine)

	analyticsAPI := api.NewAnalyticsAPI(analyticsEngine, http.NewServeMux(), conf)

	log.Infof("Listening on port %s...", conf.API.Port)
	if err := analyticsAPI.ListenAndServe(); err != nil {
		log.ErrorCause(err, "server stopped")
		os.Exit(1)
	}
}

func initializeDataSource(conf config.Config) (datasource.DataSource, error) {
	switch conf.DB {
	case config.DBClickHouse:
		log.Info("Connecting to ClickHouse...")
		source, err := clickhouse.NewEventSource(conf)
		return source, err
	case config.DBElasticsearch:
		log.Info("Connecting to Elasticsearch...")
		source, err := elasticsearch.NewEventSource(conf)
		return source, err
	default:
		log.Info("Using in-memory data source")
		return datasource.NewMemorySource(), nil
	}
}
