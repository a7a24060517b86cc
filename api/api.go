package api

import (
	"fmt"
	"net/http"

	"hermannm.dev/analytics/config"
	"hermannm.dev/analytics/engine"
)

type AnalyticsAPI struct {
	engine *engine.Engine
	router *http.ServeMux
	config config.API
}

func NewAnalyticsAPI(
	engine *engine.Engine,
	router *http.ServeMux,
	config config.Config,
) AnalyticsAPI {
	api := AnalyticsAPI{engine: engine, router: router, config: config.API}

	api.router.HandleFunc("/query", api.Query)
	api.router.HandleFunc("/query/fresh", api.QueryFresh)
	api.router.HandleFunc("/invalidate", api.Invalidate)
	api.router.HandleFunc("/cache/stats", api.CacheStats)

	return api
}

func (api AnalyticsAPI) ListenAndServe() error {
	return http.ListenAndServe(fmt.Sprintf(":%s", api.config.Port), api.router)
}
