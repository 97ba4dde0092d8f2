package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter talks to the OpenAI chat completions API, or to any
// OpenAI-compatible endpoint (a local proxy, vLLM, LM Studio) via BaseURL.
type OpenAIAdapter struct {
	client *openai.Client
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional override for OpenAI-compatible servers
}

// NewOpenAIAdapter creates an adapter. An empty APIKey falls back to the
// OPENAI_API_KEY environment variable.
func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" && cfg.BaseURL == "" {
		return nil, &ConfigurationError{ClientError: ClientError{
			Message: "openai: no API key provided and OPENAI_API_KEY is not set",
		}}
	}
	conf := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(conf)}, nil
}

func (a *OpenAIAdapter) Name() string { return "openai" }

// Complete sends one chat completion request and blocks for the full result.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	oaReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		oaReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		oaReq.MaxTokens = *req.MaxTokens
	}
	for _, def := range req.ToolDefs {
		oaReq.Tools = append(oaReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "none":
			oaReq.ToolChoice = "none"
		case "required":
			oaReq.ToolChoice = "required"
		default:
			oaReq.ToolChoice = "auto"
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, oaReq)
	if err != nil {
		return nil, translateOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ServerError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "openai: response contained no choices"},
			Provider:    "openai",
			Retryable:   true,
		}}
	}

	choice := resp.Choices[0]
	msg := Message{Role: RoleAssistant}
	if choice.Message.Content != "" {
		msg.Content = append(msg.Content, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.Content = append(msg.Content, ToolCallPart(
			tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}

	return &Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Provider:     "openai",
		Message:      msg,
		FinishReason: mapOpenAIFinish(string(choice.FinishReason)),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func (a *OpenAIAdapter) Close() error { return nil }

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleTool:
			for _, part := range m.Content {
				if part.Kind != ContentToolResult || part.ToolResult == nil {
					continue
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    part.ToolResult.Content,
					ToolCallID: part.ToolResult.ToolCallID,
				})
			}
		case RoleAssistant:
			oa := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, part := range m.Content {
				switch part.Kind {
				case ContentText:
					oa.Content += part.Text
				case ContentToolCall:
					oa.ToolCalls = append(oa.ToolCalls, openai.ToolCall{
						ID:   part.ToolCall.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      part.ToolCall.Name,
							Arguments: string(part.ToolCall.Arguments),
						},
					})
				}
			}
			out = append(out, oa)
		default:
			role := openai.ChatMessageRoleUser
			if m.Role == RoleSystem {
				role = openai.ChatMessageRoleSystem
			}
			if hasImageParts(m) {
				out = append(out, openai.ChatCompletionMessage{
					Role:         role,
					MultiContent: toMultiContent(m),
				})
			} else {
				out = append(out, openai.ChatCompletionMessage{
					Role:    role,
					Content: m.TextContent(),
				})
			}
		}
	}
	return out
}

func hasImageParts(m Message) bool {
	for _, part := range m.Content {
		if part.Kind == ContentImage {
			return true
		}
	}
	return false
}

func toMultiContent(m Message) []openai.ChatMessagePart {
	var parts []openai.ChatMessagePart
	for _, part := range m.Content {
		switch part.Kind {
		case ContentText:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		case ContentImage:
			url := part.Image.URL
			if url == "" && len(part.Image.Data) > 0 {
				mediaType := part.Image.MediaType
				if mediaType == "" {
					mediaType = "image/png"
				}
				url = fmt.Sprintf("data:%s;base64,%s",
					mediaType, base64.StdEncoding.EncodeToString(part.Image.Data))
			}
			if url == "" {
				continue
			}
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    url,
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}
	return parts
}

func mapOpenAIFinish(raw string) FinishReason {
	switch raw {
	case "stop":
		return FinishReason{Reason: "stop", Raw: raw}
	case "length":
		return FinishReason{Reason: "length", Raw: raw}
	case "tool_calls", "function_call":
		return FinishReason{Reason: "tool_calls", Raw: raw}
	case "content_filter":
		return FinishReason{Reason: "error", Raw: raw}
	default:
		return FinishReason{Reason: "other", Raw: raw}
	}
}

func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ErrorFromStatusCode(apiErr.HTTPStatusCode, apiErr.Message, "openai", nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ErrorFromStatusCode(reqErr.HTTPStatusCode, reqErr.Error(), "openai", nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestTimeoutError{ClientError: ClientError{
			Message: "openai: request timed out", Cause: err,
		}}
	}
	if errors.Is(err, context.Canceled) {
		return &AbortError{ClientError: ClientError{
			Message: "openai: request canceled", Cause: err,
		}}
	}
	return &NetworkError{ClientError: ClientError{
		Message: "openai: request failed", Cause: err,
	}}
}
