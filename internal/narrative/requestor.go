package narrative

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultFallback = "No summary is available right now."

type inflightRequest struct {
	cancel context.CancelFunc
}

// Requestor serializes narrative generation per display slot. A slot
// holds at most one request in flight; a newer request for the same
// slot cancels the older one, so a burst of region clicks resolves to
// the newest click. Provider failures degrade to fallback text and are
// never surfaced as errors.
type Requestor struct {
	client    Client
	model     string
	maxTokens int64
	timeout   time.Duration
	fallback  string
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightRequest
}

func NewRequestor(client Client, model string, maxTokens int64, timeout time.Duration, fallback string, logger *slog.Logger) *Requestor {
	if fallback == "" {
		fallback = defaultFallback
	}
	return &Requestor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		fallback:  fallback,
		logger:    logger,
		inflight:  make(map[string]*inflightRequest),
	}
}

// Fallback returns the canned text used when generation cannot run.
func (r *Requestor) Fallback() string { return r.fallback }

// Summarize generates narrative text for a slot. It blocks until the
// model answers, the timeout lapses, or a newer request supersedes this
// one. Superseded requests return context.Canceled; every other failure
// returns the fallback text with a nil error.
func (r *Requestor) Summarize(ctx context.Context, slot, prompt string) (string, error) {
	if r.client == nil {
		return r.fallback, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	req := &inflightRequest{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.inflight[slot]; ok {
		prev.cancel()
	}
	r.inflight[slot] = req
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		if r.inflight[slot] == req {
			delete(r.inflight, slot)
		}
		r.mu.Unlock()
	}()

	resp, err := r.client.CreateMessage(ctx, MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		System:      regionSystem,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: Float(0.7),
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", context.Canceled
		}
		r.logger.Warn("narrative generation failed", "slot", slot, "error", err)
		return r.fallback, nil
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return r.fallback, nil
	}
	return text, nil
}

// CancelAll aborts every in-flight request, for shutdown.
func (r *Requestor) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for slot, req := range r.inflight {
		req.cancel()
		delete(r.inflight, slot)
	}
}
