package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func textResponse(text string) *Response {
	return &Response{
		Provider:     "test",
		Message:      AssistantMessage(text),
		FinishReason: FinishReason{Reason: "stop"},
	}
}

func TestParseOutputFinalAnswer(t *testing.T) {
	out, err := ParseOutput(textResponse("The WiFi toggle is now enabled. Task complete."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutputFinalAnswer {
		t.Errorf("expected final answer, got %s", out.Kind)
	}
	if out.Text == "" {
		t.Error("expected text to be preserved")
	}
}

func TestParseOutputNativeToolCalls(t *testing.T) {
	resp := &Response{
		Provider: "test",
		Message: Message{
			Role: RoleAssistant,
			Content: []ContentPart{
				TextPart("Let me tap the settings icon."),
				ToolCallPart("call_1", "click_element", json.RawMessage(`{"text":"Settings"}`)),
			},
		},
	}
	out, err := ParseOutput(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutputToolRequests {
		t.Fatalf("expected tool requests, got %s", out.Kind)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Name != "click_element" {
		t.Errorf("unexpected tool calls: %+v", out.ToolCalls)
	}
	if out.Commentary != "Let me tap the settings icon." {
		t.Errorf("unexpected commentary: %q", out.Commentary)
	}
}

func TestParseOutputEmbeddedFencedCall(t *testing.T) {
	text := "I will open the app first.\n```json\n{\"tool\": \"app_start\", \"args\": {\"package_name\": \"com.android.settings\"}}\n```"
	out, err := ParseOutput(textResponse(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutputToolRequests {
		t.Fatalf("expected tool requests, got %s", out.Kind)
	}
	if out.ToolCalls[0].Name != "app_start" {
		t.Errorf("expected app_start, got %s", out.ToolCalls[0].Name)
	}
	var args map[string]string
	if err := json.Unmarshal(out.ToolCalls[0].Arguments, &args); err != nil {
		t.Fatalf("bad arguments: %v", err)
	}
	if args["package_name"] != "com.android.settings" {
		t.Errorf("unexpected args: %v", args)
	}
	if out.ToolCalls[0].ID == "" {
		t.Error("expected synthesized call ID")
	}
}

func TestParseOutputEmbeddedArray(t *testing.T) {
	text := "```json\n[{\"tool\": \"press_home\"}, {\"tool\": \"app_start\", \"args\": {\"package_name\": \"com.android.chrome\"}}]\n```"
	out, err := ParseOutput(textResponse(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ToolCalls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(out.ToolCalls))
	}
	if out.ToolCalls[0].Name != "press_home" || out.ToolCalls[1].Name != "app_start" {
		t.Errorf("calls out of order: %+v", out.ToolCalls)
	}
}

func TestParseOutputBareFragment(t *testing.T) {
	text := `I'll tap it now: {"tool": "press_back"} and see what happens.`
	out, err := ParseOutput(textResponse(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutputToolRequests || out.ToolCalls[0].Name != "press_back" {
		t.Errorf("expected press_back call, got %+v", out)
	}
}

func TestParseOutputMalformedFragment(t *testing.T) {
	text := "```json\n{\"tool\": \"click_element\", \"args\": {\"text\": \n```"
	_, err := ParseOutput(textResponse(text))
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestParseOutputTruncatedFragment(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"bare object cut mid-args", `Tapping now: {"tool": "click_element", "args": {"text": "Sa`},
		{"unclosed fence", "```json\n{\"tool\": \"press_back\""},
		{"fence cut before the object closes", "```json\n{\"tool\": \"swipe\", \"args\": {\"x1\": 10,\n```"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOutput(textResponse(tc.text))
			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedResponseError, got %v", err)
			}
			if malformed.Fragment == "" {
				t.Error("expected the fragment to be carried in the error")
			}
		})
	}
}

func TestParseOutputEmptyToolName(t *testing.T) {
	text := "```json\n{\"tool\": \"\", \"args\": {}}\n```"
	_, err := ParseOutput(textResponse(text))
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestParseOutputIgnoresNonCallJSON(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"goal\": \"open settings\", \"steps\": []}\n```\nDone."
	out, err := ParseOutput(textResponse(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutputFinalAnswer {
		t.Errorf("expected final answer for non-call JSON, got %s", out.Kind)
	}
}

func TestParseOutputMixedProseAndCall(t *testing.T) {
	// Tool calls win over surrounding prose.
	text := "The screen shows the home page.\n```json\n{\"tool\": \"click_element\", \"args\": {\"text\": \"Search\"}}\n```\nAfter this I will type the query."
	out, err := ParseOutput(textResponse(text))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != OutputToolRequests {
		t.Fatalf("expected tool requests, got %s", out.Kind)
	}
	if out.Commentary == "" {
		t.Error("expected prose kept as commentary")
	}
}
