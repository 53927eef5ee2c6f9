package api

import (
	"net/http"

	"github.com/Hearthside-Labs/Mosaic/internal/engine"
	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
	"github.com/Hearthside-Labs/Mosaic/internal/store"
)

type DatasetsHandler struct {
	engine *engine.Engine
	store  store.Store
}

func NewDatasetsHandler(e *engine.Engine, s store.Store) *DatasetsHandler {
	return &DatasetsHandler{engine: e, store: s}
}

func (h *DatasetsHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.store.ListDatasets(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if datasets == nil {
		datasets = []store.DatasetInfo{}
	}
	writeJSON(w, http.StatusOK, datasets)
}

func (h *DatasetsHandler) Active(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ActiveDataset())
}

type GroupView struct {
	Key           string   `json:"key"`
	Members       []string `json:"members"`
	AlwaysOn      bool     `json:"always_on,omitempty"`
	MinEnabled    int      `json:"min_enabled,omitempty"`
	DefaultWeight int      `json:"default_weight"`
}

type SchemaView struct {
	MaxWeight int         `json:"max_weight"`
	Groups    []GroupView `json:"groups"`
}

// Schema describes the weight sliders so frontends can render controls
// without hardcoding the group layout.
func (h *DatasetsHandler) Schema(w http.ResponseWriter, r *http.Request) {
	groups := h.engine.Schema().Groups()
	view := SchemaView{
		MaxWeight: scoring.MaxWeight,
		Groups:    make([]GroupView, 0, len(groups)),
	}
	for _, g := range groups {
		members := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, string(m))
		}
		view.Groups = append(view.Groups, GroupView{
			Key:           string(g.Key),
			Members:       members,
			AlwaysOn:      g.AlwaysOn,
			MinEnabled:    g.MinEnabled,
			DefaultWeight: g.DefaultWeight,
		})
	}
	writeJSON(w, http.StatusOK, view)
}
