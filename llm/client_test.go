package llm

import (
	"context"
	"testing"
	"time"
)

// fakeAdapter is a scriptable ProviderAdapter for tests.
type fakeAdapter struct {
	name     string
	response *Response
	err      error
	calls    int
	delay    time.Duration
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.response
	return &resp, nil
}

func noRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 0, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 0.001}
}

func TestClientRoutesToDefaultProvider(t *testing.T) {
	fake := &fakeAdapter{name: "fake", response: textResponse("hello")}
	client := NewClient(WithProvider("fake", fake), WithRetryPolicy(noRetry()))

	resp, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "hello" {
		t.Errorf("unexpected response text: %q", resp.Text())
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 call, got %d", fake.calls)
	}
}

func TestClientUnknownProvider(t *testing.T) {
	client := NewClient(WithRetryPolicy(noRetry()))
	_, err := client.Complete(context.Background(), Request{Model: "m", Provider: "nope"})
	if _, ok := err.(*ConfigurationError); !ok {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestClientInfersProviderFromCatalog(t *testing.T) {
	fake := &fakeAdapter{name: "ollama", response: textResponse("ok")}
	client := NewClient(
		WithProvider("ollama", fake),
		WithProvider("other", &fakeAdapter{name: "other", response: textResponse("no")}),
		WithRetryPolicy(noRetry()),
	)

	// Two providers, no default: the catalog picks ollama for gemma3 tags.
	resp, err := client.Complete(context.Background(), Request{Model: "gemma3:12b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Errorf("routed to wrong provider: %q", resp.Text())
	}
}

func TestClientRetriesRetryableErrors(t *testing.T) {
	fake := &fakeAdapter{name: "fake", err: &ServerError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "down"}, Retryable: true,
	}}}
	client := NewClient(
		WithProvider("fake", fake),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 0.001}),
	)

	_, err := client.Complete(context.Background(), Request{Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.calls)
	}
}

func TestClientTimeout(t *testing.T) {
	fake := &fakeAdapter{name: "fake", response: textResponse("late"), delay: 200 * time.Millisecond}
	client := NewClient(
		WithProvider("fake", fake),
		WithRequestTimeout(20*time.Millisecond),
		WithRetryPolicy(noRetry()),
	)

	_, err := client.Complete(context.Background(), Request{Model: "m"})
	if _, ok := err.(*RequestTimeoutError); !ok {
		t.Fatalf("expected RequestTimeoutError, got %T: %v", err, err)
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	fake := &fakeAdapter{name: "fake", response: textResponse("hi")}
	var order []string
	mw := func(tag string) Middleware {
		return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
			order = append(order, tag)
			return next(ctx, req)
		}
	}
	client := NewClient(
		WithProvider("fake", fake),
		WithMiddleware(mw("first"), mw("second")),
		WithRetryPolicy(noRetry()),
	)

	if _, err := client.Complete(context.Background(), Request{Model: "m"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("middleware ran out of order: %v", order)
	}
}

func TestClientMiddlewareShortCircuit(t *testing.T) {
	fake := &fakeAdapter{name: "fake", response: textResponse("provider")}
	cached := textResponse("cached")
	mw := func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		return cached, nil
	}
	client := NewClient(WithProvider("fake", fake), WithMiddleware(mw), WithRetryPolicy(noRetry()))

	resp, err := client.Complete(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "cached" {
		t.Errorf("middleware short-circuit failed: %q", resp.Text())
	}
	if fake.calls != 0 {
		t.Errorf("provider should not be called, got %d calls", fake.calls)
	}
}
