package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Hearthside-Labs/Mosaic/internal/engine"
	"github.com/Hearthside-Labs/Mosaic/internal/narrative"
)

type RegionsHandler struct {
	engine    *engine.Engine
	requestor *narrative.Requestor
}

func NewRegionsHandler(e *engine.Engine, req *narrative.Requestor) *RegionsHandler {
	return &RegionsHandler{engine: e, requestor: req}
}

func (h *RegionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	report, err := h.engine.Region(id, chi.URLParam(r, "region_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *RegionsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	report, err := h.engine.Breakdown(id, chi.URLParam(r, "region_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type NarrativeResponse struct {
	SessionID string `json:"session_id"`
	RegionID  string `json:"region_id"`
	Slot      string `json:"slot"`
	Text      string `json:"text"`
}

// Narrative generates a short plain-language summary of one region
// under the session's current weighting. Requests share a per-slot
// lane: a newer request for the same slot supersedes this one, which
// then answers 204 so clients simply keep the newer response.
func (h *RegionsHandler) Narrative(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	if h.requestor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "narrative provider disabled"})
		return
	}

	var body struct {
		RegionID string `json:"region_id"`
		Slot     string `json:"slot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RegionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "region_id required"})
		return
	}
	slot := body.Slot
	if slot == "" {
		slot = "selected"
	}

	breakdown, err := h.engine.Breakdown(id, body.RegionID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	prompt := narrative.RegionPrompt(breakdown.Dataset, breakdown.Name, breakdown.Index, string(breakdown.Rating), breakdown.Contributions)
	text, err := h.requestor.Summarize(r.Context(), id.String()+":"+slot, prompt)
	if err != nil {
		// Superseded by a newer request for the same slot; the client
		// already fired the request this one lost to.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, NarrativeResponse{
		SessionID: id.String(),
		RegionID:  body.RegionID,
		Slot:      slot,
		Text:      text,
	})
}
