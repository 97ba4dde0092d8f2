package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// OutputKind discriminates ModelOutput variants.
type OutputKind string

const (
	// OutputFinalAnswer means the model answered in prose with no action
	// request: the task is complete from the model's point of view.
	OutputFinalAnswer OutputKind = "final_answer"
	// OutputToolRequests means the model requested one or more tool
	// invocations, in order.
	OutputToolRequests OutputKind = "tool_requests"
)

// ModelOutput is the parsed form of a model response: either a final answer
// or an ordered sequence of tool calls. If a response mixes prose with
// well-formed tool calls, the tool calls win and the prose is kept only as
// commentary.
type ModelOutput struct {
	Kind       OutputKind `json:"kind"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Commentary string     `json:"commentary,omitempty"`
}

// fencedJSON matches ```json ... ``` (or bare ```) blocks.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\}|\\[.*?\\])\\s*```")

// bareToolCall matches an inline {"tool": "...", "args": {...}} fragment.
var bareToolCall = regexp.MustCompile(`\{\s*"tool"\s*:\s*"[^"]+"\s*(?:,\s*"args"\s*:\s*\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\})?\s*\}`)

// embeddedCall is the wire shape local models emit when they have no native
// tool-call channel.
type embeddedCall struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// ParseOutput converts a raw Response into a ModelOutput.
//
// Native tool calls (from providers with a structured tool-call channel) are
// used as-is. Otherwise the response text is scanned for embedded tool-call
// JSON: fenced code blocks first, then bare {"tool": ...} fragments. A
// fragment that looks like a tool call but cannot be parsed produces a
// MalformedResponseError rather than being silently dropped.
func ParseOutput(resp *Response) (*ModelOutput, error) {
	if calls := resp.ToolCalls(); len(calls) > 0 {
		return &ModelOutput{
			Kind:       OutputToolRequests,
			ToolCalls:  calls,
			Commentary: strings.TrimSpace(resp.Text()),
		}, nil
	}

	text := resp.Text()
	calls, err := ExtractEmbeddedCalls(text)
	if err != nil {
		return nil, err
	}
	if len(calls) > 0 {
		return &ModelOutput{
			Kind:       OutputToolRequests,
			ToolCalls:  calls,
			Commentary: stripCallFragments(text),
		}, nil
	}

	return &ModelOutput{Kind: OutputFinalAnswer, Text: strings.TrimSpace(text)}, nil
}

// ExtractEmbeddedCalls scans prose for tool-call JSON and returns the calls
// in the order they appear. It returns a MalformedResponseError when a
// fragment clearly attempts a tool call but is not well-formed.
func ExtractEmbeddedCalls(text string) ([]ToolCall, error) {
	var calls []ToolCall

	for _, m := range fencedJSON.FindAllStringSubmatch(text, -1) {
		blob := strings.TrimSpace(m[1])
		parsed, looksLikeCall, err := parseCallBlob(blob)
		if err != nil {
			return nil, err
		}
		if !looksLikeCall {
			continue
		}
		calls = append(calls, parsed...)
	}

	if len(calls) > 0 {
		return calls, nil
	}

	// No fenced blocks carried calls; fall back to bare fragments.
	for _, frag := range bareToolCall.FindAllString(text, -1) {
		parsed, _, err := parseCallBlob(frag)
		if err != nil {
			return nil, err
		}
		calls = append(calls, parsed...)
	}

	if len(calls) == 0 {
		if frag, ok := truncatedCallFragment(text); ok {
			return nil, &MalformedResponseError{
				ClientError: ClientError{Message: "tool-call fragment is truncated"},
				Fragment:    frag,
			}
		}
	}

	return calls, nil
}

// truncatedCallPrefix matches the opening of a tool-call object that the
// bare-fragment regex could not close.
var truncatedCallPrefix = regexp.MustCompile(`\{\s*"tool"\s*:`)

// truncatedCallFragment reports a tool-call attempt that was cut off before
// it became parseable JSON, typically a response truncated mid-generation.
// Complete fenced blocks were already handled, so only the leftover text is
// inspected.
func truncatedCallFragment(text string) (string, bool) {
	rest := fencedJSON.ReplaceAllString(text, "")
	if loc := truncatedCallPrefix.FindStringIndex(rest); loc != nil {
		return strings.TrimSpace(rest[loc[0]:]), true
	}
	if strings.Count(rest, "```")%2 == 1 {
		tail := rest[strings.LastIndex(rest, "```"):]
		if strings.Contains(tail, `"tool"`) {
			return strings.TrimSpace(tail), true
		}
	}
	return "", false
}

// parseCallBlob parses one JSON blob (object or array) into tool calls.
// looksLikeCall is false when the blob is valid JSON that simply is not a
// tool call (e.g. a plan, a data payload); those are left in the prose.
func parseCallBlob(blob string) (calls []ToolCall, looksLikeCall bool, err error) {
	if !strings.Contains(blob, `"tool"`) {
		return nil, false, nil
	}

	malformed := func(msg string) error {
		return &MalformedResponseError{
			ClientError: ClientError{Message: msg},
			Fragment:    blob,
		}
	}

	if strings.HasPrefix(blob, "[") {
		var raw []embeddedCall
		if jsonErr := json.Unmarshal([]byte(blob), &raw); jsonErr != nil {
			return nil, true, malformed("tool-call array is not valid JSON")
		}
		for _, ec := range raw {
			call, callErr := toToolCall(ec)
			if callErr != nil {
				return nil, true, callErr
			}
			calls = append(calls, call)
		}
		return calls, true, nil
	}

	var raw embeddedCall
	if jsonErr := json.Unmarshal([]byte(blob), &raw); jsonErr != nil {
		return nil, true, malformed("tool-call object is not valid JSON")
	}
	call, callErr := toToolCall(raw)
	if callErr != nil {
		return nil, true, callErr
	}
	return []ToolCall{call}, true, nil
}

func toToolCall(ec embeddedCall) (ToolCall, error) {
	if ec.Tool == "" {
		return ToolCall{}, &MalformedResponseError{
			ClientError: ClientError{Message: "tool-call fragment has empty tool name"},
		}
	}
	args := ec.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return ToolCall{
		ID:        "call_" + uuid.New().String()[:8],
		Name:      ec.Tool,
		Arguments: args,
	}, nil
}

// stripCallFragments removes parsed tool-call JSON from the prose so the
// commentary stored in the transcript stays readable.
func stripCallFragments(text string) string {
	out := fencedJSON.ReplaceAllStringFunc(text, func(m string) string {
		if strings.Contains(m, `"tool"`) {
			return ""
		}
		return m
	})
	out = bareToolCall.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
