package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Hearthside-Labs/Mosaic/internal/engine"
	"github.com/Hearthside-Labs/Mosaic/internal/store"
)

type AdminHandler struct {
	engine *engine.Engine
	store  store.Store
	logger *slog.Logger
}

func NewAdminHandler(e *engine.Engine, s store.Store, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{engine: e, store: s, logger: logger}
}

// ActivateDataset loads a dataset from the store and swaps it in as the
// active one. Live sessions keep their weights and get recolored
// against the new regions.
func (h *AdminHandler) ActivateDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ds, err := h.store.LoadDataset(r.Context(), name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dataset not found"})
			return
		}
		h.logger.Error("dataset load failed", "dataset", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.engine.SwapDataset(ds)
	writeJSON(w, http.StatusOK, h.engine.ActiveDataset())
}

type AdminStats struct {
	Store    *store.Stats       `json:"store"`
	Sessions int                `json:"sessions"`
	Dataset  engine.DatasetView `json:"dataset"`
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, AdminStats{
		Store:    stats,
		Sessions: len(h.engine.Sessions()),
		Dataset:  h.engine.ActiveDataset(),
	})
}

func (h *AdminHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	views := h.engine.Sessions()
	if views == nil {
		views = []*engine.SessionView{}
	}
	writeJSON(w, http.StatusOK, views)
}
