package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Hearthside-Labs/Mosaic/internal/engine"
)

const heartbeatInterval = 25 * time.Second

type EventsHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewEventsHandler(e *engine.Engine, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{engine: e, logger: logger}
}

// Stream is the SSE feed of recolor batches for one session. The
// newest batch is replayed on connect, so a map that attaches late
// still paints current state without an extra fetch. Each event is a
// full batch; clients replace, never merge.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	ch, cancel, err := h.engine.Subscribe(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case batch, open := <-ch:
			if !open {
				// Session ended; tell the client not to reconnect.
				fmt.Fprint(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(batch)
			if err != nil {
				h.logger.Warn("recolor batch marshal failed", "session_id", id, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: recolor\nid: %d\ndata: %s\n\n", batch.Seq, data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
