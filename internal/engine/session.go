package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
	"github.com/Hearthside-Labs/Mosaic/internal/store"
)

// Session is one user's weighting state. All fields behind mu; the
// engine never hands the maps out without cloning.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu         sync.Mutex
	weights    scoring.Weights
	selections scoring.Selections
	dirty      bool
	closed     bool
	lastActive time.Time
	seq        uint64
	lastBatch  *RecolorBatch
	subs       map[uint64]chan *RecolorBatch
	nextSub    uint64
}

// SessionView is a stable copy of session state for handlers.
type SessionView struct {
	ID         uuid.UUID          `json:"session_id"`
	CreatedAt  time.Time          `json:"created_at"`
	LastActive time.Time          `json:"last_active"`
	Seq        uint64             `json:"seq"`
	Weights    scoring.Weights    `json:"weights"`
	Selections scoring.Selections `json:"selections"`
}

// RegionReport is the scored state of one region under one session.
type RegionReport struct {
	RegionID string         `json:"region_id"`
	Name     string         `json:"name,omitempty"`
	Dataset  string         `json:"dataset"`
	Index    int            `json:"index"`
	Rating   scoring.Rating `json:"rating"`
	Color    string         `json:"color"`
}

// BreakdownReport adds the per-factor contribution rows.
type BreakdownReport struct {
	RegionReport
	Contributions []scoring.FactorContribution `json:"contributions"`
}

// CreateSession opens a session seeded with default weights and
// publishes its first full batch immediately.
func (e *Engine) CreateSession() (*SessionView, *RecolorBatch, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:         uuid.New(),
		CreatedAt:  now,
		weights:    e.defaults.Clone(),
		selections: e.defaultSel.Clone(),
		lastActive: now,
		subs:       make(map[uint64]chan *RecolorBatch),
	}

	e.mu.Lock()
	if max := e.cfg.Engine.MaxSessions; max > 0 && len(e.sessions) >= max {
		e.mu.Unlock()
		return nil, nil, ErrTooManySessions
	}
	e.sessions[s.ID] = s
	dataset := e.dataset
	e.mu.Unlock()

	batch := e.recomputeSession(dataset, s, true)
	e.logger.Info("session created", "session_id", s.ID)
	return e.viewOf(s), batch, nil
}

// Session returns a view of one session.
func (e *Engine) Session(id uuid.UUID) (*SessionView, error) {
	s, _, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.viewOf(s), nil
}

// Sessions lists every live session, for the admin surface.
func (e *Engine) Sessions() []*SessionView {
	e.mu.RLock()
	sessions := e.snapshotSessionsLocked()
	e.mu.RUnlock()

	views := make([]*SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, e.viewOf(s))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views
}

// EndSession removes a session and closes its subscribers.
func (e *Engine) EndSession(id uuid.UUID) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	s.closed = true
	for subID, ch := range s.subs {
		delete(s.subs, subID)
		close(ch)
	}
	s.mu.Unlock()

	e.logger.Info("session ended", "session_id", id)
	return nil
}

// SetWeight moves one slider. Rejections leave the session untouched.
func (e *Engine) SetWeight(id uuid.UUID, group string, value int) error {
	s, _, err := e.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
	if err := e.schema.ApplyWeight(s.weights, scoring.GroupKey(group), value); err != nil {
		return err
	}
	s.dirty = true
	e.logger.Debug("weight set", "session_id", id, "group", group, "value", value)
	return nil
}

// SetSelection flips one factor toggle. Rejections leave the session
// untouched.
func (e *Engine) SetSelection(id uuid.UUID, group, factor string, enabled bool) error {
	s, _, err := e.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
	if err := e.schema.ApplySelection(s.selections, scoring.GroupKey(group), scoring.FactorKey(factor), enabled); err != nil {
		return err
	}
	s.dirty = true
	e.logger.Debug("selection set", "session_id", id, "group", group, "factor", factor, "enabled", enabled)
	return nil
}

// ApplyWeights sets several sliders atomically: either every entry
// validates and all apply, or none do.
func (e *Engine) ApplyWeights(id uuid.UUID, weights scoring.Weights) error {
	s, _, err := e.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()

	staged := s.weights.Clone()
	for key, value := range weights {
		if err := e.schema.ApplyWeight(staged, key, value); err != nil {
			return err
		}
	}
	s.weights = staged
	s.dirty = true
	e.logger.Info("weights applied in bulk", "session_id", id, "groups", len(weights))
	return nil
}

// Reset restores default weights and selections.
func (e *Engine) Reset(id uuid.UUID) error {
	s, _, err := e.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
	s.weights = e.defaults.Clone()
	s.selections = e.defaultSel.Clone()
	s.dirty = true
	e.logger.Info("session reset", "session_id", id)
	return nil
}

// Region scores one region against the session's current state, ahead
// of the next frame if need be.
func (e *Engine) Region(id uuid.UUID, regionID string) (*RegionReport, error) {
	s, dataset, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	r, ok := dataset.Region(regionID)
	if !ok {
		return nil, ErrRegionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
	idx := e.schema.ComputeIndex(r.Scores, s.weights, s.selections)
	return e.reportFor(dataset.Name, r.ID, r.Name, idx), nil
}

// Breakdown explains one region's index factor by factor.
func (e *Engine) Breakdown(id uuid.UUID, regionID string) (*BreakdownReport, error) {
	s, dataset, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	r, ok := dataset.Region(regionID)
	if !ok {
		return nil, ErrRegionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
	idx := e.schema.ComputeIndex(r.Scores, s.weights, s.selections)
	return &BreakdownReport{
		RegionReport:  *e.reportFor(dataset.Name, r.ID, r.Name, idx),
		Contributions: e.schema.Breakdown(r.Scores, s.weights, s.selections),
	}, nil
}

// Attributes returns the session's current full batch, recomputing
// first when mutations are pending so callers read their own writes.
func (e *Engine) Attributes(id uuid.UUID) (*RecolorBatch, error) {
	s, dataset, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	batch := e.recomputeSession(dataset, s, false)
	if batch == nil {
		batch = e.recomputeSession(dataset, s, true)
	}
	return batch, nil
}

// Subscribe attaches a recolor listener to a session. The newest batch
// is replayed on attach; the returned func detaches.
func (e *Engine) Subscribe(id uuid.UUID) (<-chan *RecolorBatch, func(), error) {
	s, _, err := e.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	subID := s.nextSub
	s.nextSub++
	ch := make(chan *RecolorBatch, 1)
	if s.lastBatch != nil {
		ch <- s.lastBatch
	}
	s.subs[subID] = ch
	s.lastActive = time.Now().UTC()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[subID]; ok {
			delete(s.subs, subID)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// Shortlist returns the regions on the non-dominated frontier of the
// currently enabled factors, best index first.
func (e *Engine) Shortlist(id uuid.UUID, limit int) ([]*RegionReport, error) {
	s, dataset, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastActive = time.Now().UTC()
	w := s.weights.Clone()
	sel := s.selections.Clone()
	s.mu.Unlock()

	entries := make([]scoring.FrontierEntry, 0, dataset.Len())
	for _, r := range dataset.Regions {
		entries = append(entries, scoring.FrontierEntry{
			RegionID: r.ID,
			Name:     r.Name,
			Index:    e.schema.ComputeIndex(r.Scores, w, sel),
			Scores:   r.Scores,
		})
	}

	frontier := scoring.Frontier(entries, e.schema.EnabledFactors(w, sel))
	sort.SliceStable(frontier, func(i, j int) bool {
		if frontier[i].Index != frontier[j].Index {
			return frontier[i].Index > frontier[j].Index
		}
		return frontier[i].RegionID < frontier[j].RegionID
	})

	if limit <= 0 {
		limit = 10
	}
	if len(frontier) > limit {
		frontier = frontier[:limit]
	}

	reports := make([]*RegionReport, 0, len(frontier))
	for _, f := range frontier {
		reports = append(reports, e.reportFor(dataset.Name, f.RegionID, f.Name, f.Index))
	}
	return reports, nil
}

func (e *Engine) lookup(id uuid.UUID) (*Session, *store.Dataset, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	dataset := e.dataset
	e.mu.RUnlock()
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	return s, dataset, nil
}

func (e *Engine) viewOf(s *Session) *SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SessionView{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		LastActive: s.lastActive,
		Seq:        s.seq,
		Weights:    s.weights.Clone(),
		Selections: s.selections.Clone(),
	}
}

func (e *Engine) reportFor(dataset, regionID, name string, idx int) *RegionReport {
	return &RegionReport{
		RegionID: regionID,
		Name:     name,
		Dataset:  dataset,
		Index:    idx,
		Rating:   scoring.RatingFor(idx),
		Color:    e.pal.HexFor(float64(idx)),
	}
}
