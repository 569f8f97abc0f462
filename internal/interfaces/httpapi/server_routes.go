package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerReadRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/team-stats", handler.ListTeamStats)
	mux.HandleFunc("GET /v1/team-stats/{team}", handler.GetTeamStats)
	mux.HandleFunc("GET /v1/features", handler.ListFeatures)
	mux.HandleFunc("GET /v1/updater/status", handler.GetUpdaterStatus)
}

func registerUpdateStreamRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/updates", handler.StreamUpdates)
	mux.HandleFunc("GET /v1/updates/ws", handler.StreamUpdatesWS)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/update-cycle", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunUpdateCycleJob)))
	mux.Handle("POST /v1/internal/matches", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.IngestMatches)))
}
