package engine

import (
	"context"
	"time"
)

func (e *Engine) reaperLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reapIdleSessions()
		}
	}
}

// reapIdleSessions evicts sessions idle past the TTL. A session with a
// live subscriber counts as active; an open event stream is someone
// watching the map.
func (e *Engine) reapIdleSessions() {
	ttl := e.cfg.SessionTTL()
	if ttl <= 0 {
		return
	}
	now := time.Now().UTC()

	e.mu.Lock()
	var victims []*Session
	for id, s := range e.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastActive) > ttl && len(s.subs) == 0
		s.mu.Unlock()
		if idle {
			victims = append(victims, s)
			delete(e.sessions, id)
		}
	}
	e.mu.Unlock()

	for _, s := range victims {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		e.logger.Info("idle session reaped", "session_id", s.ID, "created_at", s.CreatedAt)
	}
}
