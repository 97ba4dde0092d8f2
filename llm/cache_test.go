package llm

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) *ResponseCache {
	t.Helper()
	cache, err := NewResponseCache(filepath.Join(t.TempDir(), "cache.db"), ttl)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCachePutGet(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	ctx := context.Background()

	req := Request{Model: "m", Messages: []Message{UserMessage("turn on wifi")}}
	key := cache.Key(req)

	if got, err := cache.Get(ctx, key); err != nil || got != nil {
		t.Fatalf("expected miss, got %v err %v", got, err)
	}

	resp := textResponse("wifi is on")
	if err := cache.Put(ctx, key, resp); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Text() != "wifi is on" {
		t.Errorf("unexpected cached response: %+v", got)
	}
}

func TestCacheKeyChangesWithContent(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	a := cache.Key(Request{Model: "m", Messages: []Message{UserMessage("open chrome")}})
	b := cache.Key(Request{Model: "m", Messages: []Message{UserMessage("open settings")}})
	c := cache.Key(Request{Model: "other", Messages: []Message{UserMessage("open chrome")}})
	if a == b || a == c {
		t.Error("distinct requests must hash to distinct keys")
	}

	withImage := cache.Key(Request{Model: "m", Messages: []Message{{
		Role:    RoleUser,
		Content: []ContentPart{TextPart("open chrome"), ImageDataPart([]byte{1, 2, 3}, "image/png")},
	}}})
	if withImage == a {
		t.Error("screenshot bytes must contribute to the key")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := newTestCache(t, time.Second)
	ctx := context.Background()

	key := cache.Key(Request{Model: "m"})
	if err := cache.Put(ctx, key, textResponse("stale")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// Force expiry by rewriting expires_at into the past.
	if _, err := cache.db.Exec(`UPDATE cache_entries SET expires_at = 0`); err != nil {
		t.Fatalf("failed to age entry: %v", err)
	}
	if got, err := cache.Get(ctx, key); err != nil || got != nil {
		t.Errorf("expected expired entry to miss, got %v err %v", got, err)
	}
}

func TestCachePrune(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := cache.Key(Request{Model: "m", Messages: []Message{UserMessage(string(rune('a' + i)))}})
		if err := cache.Put(ctx, key, textResponse("r")); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := cache.Prune(ctx, 2); err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	var count int
	if err := cache.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 entries after prune, got %d", count)
	}
}

func TestCacheMiddlewareSkipsToolCallResponses(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	ctx := context.Background()

	toolResp := &Response{
		Provider: "test",
		Message: Message{
			Role: RoleAssistant,
			Content: []ContentPart{
				ToolCallPart("call_1", "press_home", json.RawMessage(`{}`)),
			},
		},
		FinishReason: FinishReason{Reason: "tool_calls"},
	}

	mw := cache.Middleware()
	req := Request{Model: "m", Messages: []Message{UserMessage("go home")}}

	calls := 0
	next := func(ctx context.Context, r Request) (*Response, error) {
		calls++
		return toolResp, nil
	}
	if _, err := mw(ctx, req, next); err != nil {
		t.Fatalf("middleware failed: %v", err)
	}
	if _, err := mw(ctx, req, next); err != nil {
		t.Fatalf("middleware failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("tool-call responses must not be served from cache, got %d provider calls", calls)
	}
}

func TestCacheMiddlewareServesFinalAnswers(t *testing.T) {
	cache := newTestCache(t, time.Hour)
	ctx := context.Background()

	mw := cache.Middleware()
	req := Request{Model: "m", Messages: []Message{UserMessage("what app is open")}}

	calls := 0
	next := func(ctx context.Context, r Request) (*Response, error) {
		calls++
		return textResponse("chrome"), nil
	}
	for i := 0; i < 3; i++ {
		resp, err := mw(ctx, req, next)
		if err != nil {
			t.Fatalf("middleware failed: %v", err)
		}
		if resp.Text() != "chrome" {
			t.Errorf("unexpected response: %q", resp.Text())
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 provider call, got %d", calls)
	}
}
