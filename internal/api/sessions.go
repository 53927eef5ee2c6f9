package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Hearthside-Labs/Mosaic/internal/engine"
	"github.com/Hearthside-Labs/Mosaic/internal/narrative"
	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
)

type SessionsHandler struct {
	engine     *engine.Engine
	translator *narrative.Translator
}

func NewSessionsHandler(e *engine.Engine, t *narrative.Translator) *SessionsHandler {
	return &SessionsHandler{engine: e, translator: t}
}

type CreateSessionResponse struct {
	Session *engine.SessionView  `json:"session"`
	Batch   *engine.RecolorBatch `json:"batch"`
}

func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	view, batch, err := h.engine.CreateSession()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{Session: view, Batch: batch})
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	view, err := h.engine.Session(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	if err := h.engine.EndSession(id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutWeight moves one slider. Zero is a real value meaning "exclude",
// so a missing value field is rejected rather than defaulted.
func (h *SessionsHandler) PutWeight(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	var body struct {
		Value *int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value required"})
		return
	}

	if err := h.engine.SetWeight(id, chi.URLParam(r, "group"), *body.Value); err != nil {
		writeEngineError(w, err)
		return
	}
	view, err := h.engine.Session(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// PutWeights replaces several sliders atomically.
func (h *SessionsHandler) PutWeights(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	var body struct {
		Weights scoring.Weights `json:"weights"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Weights) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weights required"})
		return
	}

	if err := h.engine.ApplyWeights(id, body.Weights); err != nil {
		writeEngineError(w, err)
		return
	}
	view, err := h.engine.Session(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionsHandler) PutSelection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled required"})
		return
	}

	if err := h.engine.SetSelection(id, chi.URLParam(r, "group"), chi.URLParam(r, "factor"), *body.Enabled); err != nil {
		writeEngineError(w, err)
		return
	}
	view, err := h.engine.Session(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	if err := h.engine.Reset(id); err != nil {
		writeEngineError(w, err)
		return
	}
	view, err := h.engine.Session(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type TranslateResponse struct {
	Weights scoring.Weights     `json:"weights"`
	Applied bool                `json:"applied"`
	Session *engine.SessionView `json:"session,omitempty"`
}

// Translate turns a free-text request like "quiet and cheap, near
// transit" into slider values, optionally applying them in the same
// call.
func (h *SessionsHandler) Translate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	if _, err := h.engine.Session(id); err != nil {
		writeEngineError(w, err)
		return
	}
	if h.translator == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "narrative provider disabled"})
		return
	}

	var body struct {
		Text  string `json:"text"`
		Apply bool   `json:"apply"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text required"})
		return
	}

	groups := make([]string, 0)
	for _, g := range h.engine.Schema().Groups() {
		groups = append(groups, string(g.Key))
	}

	weights, err := h.translator.Translate(r.Context(), body.Text, groups)
	if err != nil {
		if errors.Is(err, narrative.ErrDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	resp := TranslateResponse{Weights: weights, Applied: body.Apply}
	if body.Apply {
		if err := h.engine.ApplyWeights(id, weights); err != nil {
			writeEngineError(w, err)
			return
		}
		view, err := h.engine.Session(id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp.Session = view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionsHandler) Attributes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	batch, err := h.engine.Attributes(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (h *SessionsHandler) Shortlist(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	list, err := h.engine.Shortlist(id, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if list == nil {
		list = []*engine.RegionReport{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEngineError maps engine and scoring failures to response codes.
// Hitting a selection floor is a conflict with current state, not a
// malformed request, so it gets its own code.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound), errors.Is(err, engine.ErrRegionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, scoring.ErrSelectionFloor):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, scoring.ErrUnknownGroup), errors.Is(err, scoring.ErrUnknownFactor),
		errors.Is(err, scoring.ErrValueRange), errors.Is(err, scoring.ErrAlwaysOn):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrTooManySessions):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
