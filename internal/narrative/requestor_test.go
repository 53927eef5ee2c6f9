package narrative

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockClient struct {
	createFn func(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

func (m *mockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	return m.createFn(ctx, req)
}

func textResponse(s string) *MessageResponse {
	return &MessageResponse{Content: []ContentBlock{{Type: "text", Text: s}}}
}

func newTestRequestor(client Client, timeout time.Duration) *Requestor {
	return NewRequestor(client, "claude-haiku-4-5", 512, timeout, "", discardLogger())
}

func TestSummarizeReturnsModelText(t *testing.T) {
	client := &mockClient{createFn: func(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
		if req.System == "" {
			t.Error("expected a system prompt")
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
			t.Errorf("expected one user message, got %v", req.Messages)
		}
		return textResponse("  A walkable tract with weak transit.  "), nil
	}}
	r := newTestRequestor(client, time.Second)

	text, err := r.Summarize(context.Background(), "s1:selected", "prompt")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if text != "A walkable tract with weak transit." {
		t.Errorf("expected trimmed model text, got %q", text)
	}
}

func TestSummarizeFallbackOnError(t *testing.T) {
	client := &mockClient{createFn: func(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
		return nil, errors.New("upstream 500")
	}}
	r := newTestRequestor(client, time.Second)

	text, err := r.Summarize(context.Background(), "s1:selected", "prompt")
	if err != nil {
		t.Fatalf("expected nil error on provider failure, got %v", err)
	}
	if text != defaultFallback {
		t.Errorf("expected fallback text, got %q", text)
	}
}

func TestSummarizeFallbackOnEmptyReply(t *testing.T) {
	client := &mockClient{createFn: func(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
		return &MessageResponse{}, nil
	}}
	r := newTestRequestor(client, time.Second)

	text, err := r.Summarize(context.Background(), "s1:selected", "prompt")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if text != defaultFallback {
		t.Errorf("expected fallback text, got %q", text)
	}
}

func TestSummarizeNilClient(t *testing.T) {
	r := NewRequestor(nil, "", 0, time.Second, "maps only today", discardLogger())

	text, err := r.Summarize(context.Background(), "s1:selected", "prompt")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if text != "maps only today" {
		t.Errorf("expected configured fallback, got %q", text)
	}
}

func TestSummarizeSupersededByNewerRequest(t *testing.T) {
	firstStarted := make(chan struct{})
	var calls int32
	client := &mockClient{createFn: func(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(firstStarted)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return textResponse("fresh summary"), nil
	}}
	r := newTestRequestor(client, 5*time.Second)

	type result struct {
		text string
		err  error
	}
	firstDone := make(chan result, 1)
	go func() {
		text, err := r.Summarize(context.Background(), "s1:selected", "old click")
		firstDone <- result{text, err}
	}()

	<-firstStarted
	text, err := r.Summarize(context.Background(), "s1:selected", "new click")
	if err != nil {
		t.Fatalf("second Summarize failed: %v", err)
	}
	if text != "fresh summary" {
		t.Errorf("expected fresh summary, got %q", text)
	}

	first := <-firstDone
	if !errors.Is(first.err, context.Canceled) {
		t.Errorf("expected first request to be superseded, got text %q err %v", first.text, first.err)
	}
}

func TestSummarizeTimeoutFallsBack(t *testing.T) {
	client := &mockClient{createFn: func(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newTestRequestor(client, 10*time.Millisecond)

	text, err := r.Summarize(context.Background(), "s1:selected", "prompt")
	if err != nil {
		t.Fatalf("expected nil error on timeout, got %v", err)
	}
	if text != defaultFallback {
		t.Errorf("expected fallback text, got %q", text)
	}
}

func TestCancelAll(t *testing.T) {
	started := make(chan struct{})
	client := &mockClient{createFn: func(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newTestRequestor(client, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := r.Summarize(context.Background(), "s1:selected", "prompt")
		done <- err
	}()

	<-started
	r.CancelAll()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled after CancelAll, got %v", err)
	}
}

func TestSummarizeDistinctSlotsDoNotInterfere(t *testing.T) {
	release := make(chan struct{})
	client := &mockClient{createFn: func(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
		if req.Messages[0].Content == "slow prompt" {
			select {
			case <-release:
				return textResponse("slot one"), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return textResponse("slot two"), nil
	}}
	r := newTestRequestor(client, 5*time.Second)

	firstDone := make(chan string, 1)
	go func() {
		text, _ := r.Summarize(context.Background(), "s1:selected", "slow prompt")
		firstDone <- text
	}()

	text, err := r.Summarize(context.Background(), "s2:selected", "fast prompt")
	if err != nil {
		t.Fatalf("second slot failed: %v", err)
	}
	if text != "slot two" {
		t.Errorf("expected slot two text, got %q", text)
	}

	close(release)
	if text := <-firstDone; text != "slot one" {
		t.Errorf("expected slot one to finish untouched, got %q", text)
	}
}
