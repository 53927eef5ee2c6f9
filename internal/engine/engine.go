// Package engine owns the interactive scoring sessions. Slider moves
// and toggle flips mark a session dirty; a frame loop collapses each
// burst into one full recolor batch per session, so downstream
// consumers always replace state wholesale and never see partial
// updates.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hearthside-Labs/Mosaic/internal/atlas"
	"github.com/Hearthside-Labs/Mosaic/internal/config"
	"github.com/Hearthside-Labs/Mosaic/internal/narrative"
	"github.com/Hearthside-Labs/Mosaic/internal/palette"
	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
	"github.com/Hearthside-Labs/Mosaic/internal/store"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRegionNotFound  = errors.New("region not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// RecolorBatch is one atomic recolor of the whole dataset for one
// session. Rows follow dataset order and cover every region.
type RecolorBatch struct {
	BatchID   uuid.UUID           `json:"batch_id"`
	SessionID uuid.UUID           `json:"session_id"`
	Seq       uint64              `json:"seq"`
	Dataset   string              `json:"dataset"`
	Palette   string              `json:"palette"`
	Regions   []atlas.RegionColor `json:"regions"`
	Timestamp time.Time           `json:"timestamp"`
}

// DatasetView describes the active dataset.
type DatasetView struct {
	Name     string    `json:"name"`
	Regions  int       `json:"regions"`
	Bounds   []float64 `json:"bounds,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

type Engine struct {
	schema    *scoring.Schema
	pal       *palette.Palette
	atlas     atlas.Client
	requestor *narrative.Requestor
	cfg       *config.Config
	logger    *slog.Logger

	defaults   scoring.Weights
	defaultSel scoring.Selections

	mu       sync.RWMutex
	dataset  *store.Dataset
	sessions map[uuid.UUID]*Session

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(dataset *store.Dataset, schema *scoring.Schema, pal *palette.Palette, ac atlas.Client, requestor *narrative.Requestor, cfg *config.Config, logger *slog.Logger) *Engine {
	defaults := schema.DefaultWeights()
	for key, value := range cfg.Scoring.DefaultWeights {
		if err := schema.ApplyWeight(defaults, scoring.GroupKey(key), value); err != nil {
			logger.Warn("ignoring configured default weight", "group", key, "value", value, "error", err)
		}
	}

	return &Engine{
		schema:     schema,
		pal:        pal,
		atlas:      ac,
		requestor:  requestor,
		cfg:        cfg,
		logger:     logger,
		defaults:   defaults,
		defaultSel: schema.DefaultSelections(),
		dataset:    dataset,
		sessions:   make(map[uuid.UUID]*Session),
		stopCh:     make(chan struct{}),
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(2)
	go e.frameLoop(ctx)
	go e.reaperLoop(ctx)
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// Schema exposes the weighting schema for handlers that render group
// metadata.
func (e *Engine) Schema() *scoring.Schema { return e.schema }

// ActiveDataset describes the dataset sessions currently score against.
func (e *Engine) ActiveDataset() DatasetView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return DatasetView{
		Name:     e.dataset.Name,
		Regions:  e.dataset.Len(),
		Bounds:   e.dataset.Bounds,
		LoadedAt: e.dataset.LoadedAt,
	}
}

// ActiveRegions snapshots the active dataset's name and regions, in
// dataset order. Regions are immutable after load; callers must not
// mutate them.
func (e *Engine) ActiveRegions() (string, []*store.Region) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dataset.Name, e.dataset.Regions
}

// SwapDataset replaces the active dataset wholesale. Sessions keep
// their weights and toggles; every session gets a fresh full batch
// against the new regions.
func (e *Engine) SwapDataset(ds *store.Dataset) {
	e.mu.Lock()
	e.dataset = ds
	sessions := e.snapshotSessionsLocked()
	e.mu.Unlock()

	for _, s := range sessions {
		e.recomputeSession(ds, s, true)
	}

	if e.atlas != nil {
		_ = e.atlas.Publish(atlas.SubjectDatasetActivated, atlas.DatasetActivatedEvent{
			Dataset:   ds.Name,
			Regions:   ds.Len(),
			Timestamp: time.Now().UTC(),
		})
	}
	e.logger.Info("dataset activated", "dataset", ds.Name, "regions", ds.Len(), "sessions", len(sessions))
}

func (e *Engine) frameLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.recomputeDirty()
		}
	}
}

func (e *Engine) recomputeDirty() {
	e.mu.RLock()
	dataset := e.dataset
	sessions := e.snapshotSessionsLocked()
	e.mu.RUnlock()

	for _, s := range sessions {
		e.recomputeSession(dataset, s, false)
	}
}

func (e *Engine) snapshotSessionsLocked() []*Session {
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// recomputeSession emits one batch when the session is dirty or force
// is set; otherwise it returns the last published batch. The session
// lock is held across the compute so a batch always reflects one
// consistent weights/selections state.
func (e *Engine) recomputeSession(dataset *store.Dataset, s *Session, force bool) *RecolorBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.lastBatch
	}
	if !s.dirty && !force {
		return s.lastBatch
	}

	s.dirty = false
	s.seq++
	batch := e.buildBatch(dataset, s.ID, s.seq, s.weights, s.selections)
	s.lastBatch = batch

	for _, ch := range s.subs {
		deliverLatest(ch, batch)
	}
	e.publishRecolor(batch)
	return batch
}

func (e *Engine) buildBatch(dataset *store.Dataset, sessionID uuid.UUID, seq uint64, w scoring.Weights, sel scoring.Selections) *RecolorBatch {
	rows := make([]atlas.RegionColor, 0, dataset.Len())
	for _, r := range dataset.Regions {
		idx := e.schema.ComputeIndex(r.Scores, w, sel)
		rows = append(rows, atlas.RegionColor{
			RegionID: r.ID,
			Index:    idx,
			Color:    e.pal.HexFor(float64(idx)),
			Rating:   string(scoring.RatingFor(idx)),
		})
	}
	return &RecolorBatch{
		BatchID:   uuid.New(),
		SessionID: sessionID,
		Seq:       seq,
		Dataset:   dataset.Name,
		Palette:   e.pal.Name(),
		Regions:   rows,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Engine) publishRecolor(batch *RecolorBatch) {
	if e.atlas == nil {
		return
	}
	_ = e.atlas.Publish(atlas.SubjectRecolor(batch.SessionID.String()), atlas.RecolorEvent{
		BatchID:   batch.BatchID.String(),
		SessionID: batch.SessionID.String(),
		Seq:       batch.Seq,
		Dataset:   batch.Dataset,
		Palette:   batch.Palette,
		Regions:   batch.Regions,
		Timestamp: batch.Timestamp,
	})
}

// deliverLatest hands a batch to a subscriber without ever blocking the
// frame loop. A stalled subscriber keeps only the newest batch.
func deliverLatest(ch chan *RecolorBatch, batch *RecolorBatch) {
	for {
		select {
		case ch <- batch:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// SetupSubscriptions wires inbound map events. Region selections from
// map frontends trigger narrative generation, published back on the
// session's narrative subject.
func (e *Engine) SetupSubscriptions() {
	if e.atlas == nil {
		return
	}

	_ = e.atlas.Subscribe(atlas.SubjectSelectedWildcard, func(subject string, data []byte) {
		var evt atlas.RegionSelectedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			e.logger.Warn("invalid region selected event", "error", err)
			return
		}
		sessionID := evt.SessionID
		if sessionID == "" {
			parts := strings.Split(subject, ".")
			if len(parts) >= 3 {
				sessionID = parts[2]
			}
		}
		e.handleRegionSelected(sessionID, evt.RegionID)
	})
}

func (e *Engine) handleRegionSelected(sessionID, regionID string) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		e.logger.Warn("region selected with bad session id", "session_id", sessionID)
		return
	}
	breakdown, err := e.Breakdown(id, regionID)
	if err != nil {
		e.logger.Warn("region selected lookup failed", "session_id", sessionID, "region_id", regionID, "error", err)
		return
	}
	if e.requestor == nil {
		return
	}

	go func() {
		prompt := narrative.RegionPrompt(breakdown.Dataset, breakdown.Name, breakdown.Index, string(breakdown.Rating), breakdown.Contributions)
		text, err := e.requestor.Summarize(context.Background(), sessionID+":selected", prompt)
		if err != nil {
			return // superseded by a newer selection
		}
		if e.atlas != nil {
			_ = e.atlas.Publish(atlas.SubjectNarrative(sessionID), atlas.NarrativeReadyEvent{
				SessionID: sessionID,
				RegionID:  regionID,
				Slot:      "selected",
				Text:      text,
				Timestamp: time.Now().UTC(),
			})
		}
	}()
}
