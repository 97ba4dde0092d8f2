package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaAdapter talks to a local ollama server. Local models have no
// reliable native tool-call channel, so tool instructions travel in the
// prompt and tool calls come back as embedded JSON that ParseOutput
// recovers. Screenshots are passed through ollama's image support.
type OllamaAdapter struct {
	client *ollama.Client
}

// NewOllamaAdapter creates an adapter for the server at host, falling back
// to OLLAMA_HOST and then http://localhost:11434.
func NewOllamaAdapter(host string) (*OllamaAdapter, error) {
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: fmt.Sprintf("ollama: invalid host %q", host), Cause: err,
		}}
	}
	httpClient := &http.Client{Timeout: 10 * time.Minute}
	return &OllamaAdapter{client: ollama.NewClient(u, httpClient)}, nil
}

func (a *OllamaAdapter) Name() string { return "ollama" }

// Complete sends one chat request and accumulates the non-streamed result.
func (a *OllamaAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	stream := false
	oReq := &ollama.ChatRequest{
		Model:    req.Model,
		Messages: toOllamaMessages(req.Messages),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if req.Temperature != nil {
		oReq.Options["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		oReq.Options["num_predict"] = *req.MaxTokens
	}

	var last ollama.ChatResponse
	err := a.client.Chat(ctx, oReq, func(cr ollama.ChatResponse) error {
		last = cr
		return nil
	})
	if err != nil {
		return nil, translateOllamaError(err)
	}

	msg := Message{Role: RoleAssistant}
	if last.Message.Content != "" {
		msg.Content = append(msg.Content, TextPart(last.Message.Content))
	}

	reason := "stop"
	if last.DoneReason == "length" {
		reason = "length"
	}
	return &Response{
		Model:        last.Model,
		Provider:     "ollama",
		Message:      msg,
		FinishReason: FinishReason{Reason: reason, Raw: last.DoneReason},
		Usage: Usage{
			InputTokens:  last.Metrics.PromptEvalCount,
			OutputTokens: last.Metrics.EvalCount,
			TotalTokens:  last.Metrics.PromptEvalCount + last.Metrics.EvalCount,
		},
	}, nil
}

func (a *OllamaAdapter) Close() error { return nil }

func toOllamaMessages(msgs []Message) []ollama.Message {
	out := make([]ollama.Message, 0, len(msgs))
	for _, m := range msgs {
		om := ollama.Message{Role: string(m.Role)}
		for _, part := range m.Content {
			switch part.Kind {
			case ContentText:
				om.Content += part.Text
			case ContentImage:
				if len(part.Image.Data) > 0 {
					om.Images = append(om.Images, ollama.ImageData(part.Image.Data))
				}
			case ContentToolResult:
				om.Content += part.ToolResult.Content
			case ContentToolCall:
				// Replayed as the JSON the model originally emitted so the
				// conversation stays coherent on the next turn.
				om.Content += fmt.Sprintf("\n```json\n{\"tool\": %q, \"args\": %s}\n```",
					part.ToolCall.Name, string(part.ToolCall.Arguments))
			}
		}
		out = append(out, om)
	}
	return out
}

func translateOllamaError(err error) error {
	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		return ErrorFromStatusCode(statusErr.StatusCode, statusErr.ErrorMessage, "ollama", nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestTimeoutError{ClientError: ClientError{
			Message: "ollama: request timed out", Cause: err,
		}}
	}
	if errors.Is(err, context.Canceled) {
		return &AbortError{ClientError: ClientError{
			Message: "ollama: request canceled", Cause: err,
		}}
	}
	return &NetworkError{ClientError: ClientError{
		Message: "ollama: request failed", Cause: err,
	}}
}
