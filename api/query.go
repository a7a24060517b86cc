package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"hermannm.dev/analytics/engine"
	"hermannm.dev/analytics/query"
)

// Expects:
//   - body: JSON-encoded query.AnalyticsQuery
//
// Returns:
//   - JSON-encoded engine.QueryResult (served from cache when fresh)
func (api AnalyticsAPI) Query(res http.ResponseWriter, req *http.Request) {
	var analyticsQuery query.AnalyticsQuery
	if err := json.NewDecoder(req.Body).Decode(&analyticsQuery); err != nil {
		sendClientError(res, err, "failed to parse analytics query from request body")
		return
	}

	queryResult, err := api.engine.Execute(req.Context(), analyticsQuery)
	if err != nil {
		sendQueryError(res, err)
		return
	}

	sendJSON(res, queryResult)
}

// Same as Query, but always executes against the data source, bypassing the cache. For callers
// that need guaranteed freshness.
func (api AnalyticsAPI) QueryFresh(res http.ResponseWriter, req *http.Request) {
	var analyticsQuery query.AnalyticsQuery
	if err := json.NewDecoder(req.Body).Decode(&analyticsQuery); err != nil {
		sendClientError(res, err, "failed to parse analytics query from request body")
		return
	}

	queryResult, err := api.engine.BypassCache(req.Context(), analyticsQuery)
	if err != nil {
		sendQueryError(res, err)
		return
	}

	sendJSON(res, queryResult)
}

func sendQueryError(res http.ResponseWriter, err error) {
	var validationErr engine.ValidationError
	if errors.As(err, &validationErr) {
		sendClientError(res, validationErr, "")
	} else {
		sendServerError(res, err, "failed to run analytics query")
	}
}
