package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Hearthside-Labs/Mosaic/internal/engine"
)

type ExportHandler struct {
	engine *engine.Engine
}

func NewExportHandler(e *engine.Engine) *ExportHandler {
	return &ExportHandler{engine: e}
}

type exportFeature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type exportCollection struct {
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Features []exportFeature `json:"features"`
}

// Export renders the active dataset as a GeoJSON FeatureCollection.
// mode=attributes (the default) joins each feature with the session's
// current index, rating and color; mode=scores emits the normalized
// factor scores instead. Geometry passes through untouched.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "attributes"
	}
	if mode != "attributes" && mode != "scores" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode must be attributes or scores"})
		return
	}

	var batch *engine.RecolorBatch
	rows := make(map[string]int)
	if mode == "attributes" {
		batch, err = h.engine.Attributes(id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		for i, row := range batch.Regions {
			rows[row.RegionID] = i
		}
	} else if _, err := h.engine.Session(id); err != nil {
		writeEngineError(w, err)
		return
	}

	name, regions := h.engine.ActiveRegions()
	fc := exportCollection{
		Type:     "FeatureCollection",
		Name:     name,
		Features: make([]exportFeature, 0, len(regions)),
	}
	for _, region := range regions {
		props := map[string]interface{}{
			"region_id": region.ID,
		}
		if region.Name != "" {
			props["name"] = region.Name
		}
		switch mode {
		case "attributes":
			i, ok := rows[region.ID]
			if !ok {
				continue
			}
			row := batch.Regions[i]
			props["index"] = row.Index
			props["rating"] = row.Rating
			props["color"] = row.Color
		case "scores":
			for factor, score := range region.Scores {
				props[string(factor)] = score
			}
		}
		fc.Features = append(fc.Features, exportFeature{
			Type:       "Feature",
			ID:         region.ID,
			Geometry:   region.Geometry,
			Properties: props,
		})
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+"-"+mode+`.geojson"`)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(fc)
}
