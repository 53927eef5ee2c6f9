package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hearthside-Labs/Mosaic/internal/engine"
	"github.com/Hearthside-Labs/Mosaic/internal/narrative"
	"github.com/Hearthside-Labs/Mosaic/internal/store"
)

func NewRouter(e *engine.Engine, s store.Store, translator *narrative.Translator, requestor *narrative.Requestor, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(600))

	sessions := NewSessionsHandler(e, translator)
	regions := NewRegionsHandler(e, requestor)
	events := NewEventsHandler(e, logger)
	export := NewExportHandler(e)
	datasets := NewDatasetsHandler(e, s)
	admin := NewAdminHandler(e, s, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", sessions.Create)
		r.Get("/sessions/{id}", sessions.Get)
		r.Delete("/sessions/{id}", sessions.End)
		r.Put("/sessions/{id}/weights", sessions.PutWeights)
		r.Put("/sessions/{id}/weights/{group}", sessions.PutWeight)
		r.Put("/sessions/{id}/selections/{group}/{factor}", sessions.PutSelection)
		r.Post("/sessions/{id}/reset", sessions.Reset)
		r.Post("/sessions/{id}/translate", sessions.Translate)
		r.Get("/sessions/{id}/attributes", sessions.Attributes)
		r.Get("/sessions/{id}/shortlist", sessions.Shortlist)
		r.Get("/sessions/{id}/events", events.Stream)
		r.Get("/sessions/{id}/export", export.Export)
		r.Get("/sessions/{id}/regions/{region_id}", regions.Get)
		r.Get("/sessions/{id}/regions/{region_id}/breakdown", regions.Breakdown)
		r.Post("/sessions/{id}/narrative", regions.Narrative)

		r.Get("/datasets", datasets.List)
		r.Get("/datasets/active", datasets.Active)
		r.Get("/schema", datasets.Schema)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Post("/admin/datasets/{name}/activate", admin.ActivateDataset)
			r.Get("/admin/stats", admin.Stats)
			r.Get("/admin/sessions", admin.Sessions)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
