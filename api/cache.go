package api

import (
	"net/http"
)

// Expects:
//   - query parameter 'tag': invalidation tag or glob pattern (e.g. "organizationId:42")
//
// Returns:
//   - JSON object with the number of cache entries removed
func (api AnalyticsAPI) Invalidate(res http.ResponseWriter, req *http.Request) {
	tag := req.URL.Query().Get("tag")
	if tag == "" {
		sendClientError(res, nil, "missing 'tag' query parameter in request")
		return
	}

	removed := api.engine.Invalidate(tag)
	sendJSON(res, struct {
		Removed int `json:"removed"`
	}{Removed: removed})
}

// Returns the cache's hit/miss statistics as JSON.
func (api AnalyticsAPI) CacheStats(res http.ResponseWriter, req *http.Request) {
	sendJSON(res, api.engine.CacheStats())
}
