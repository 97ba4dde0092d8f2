package agentloop

import (
	"encoding/json"
	"testing"

	"github.com/droidpilot/droidpilot/llm"
)

func TestTranscriptAppendOnlyAndSeq(t *testing.T) {
	tr := NewTranscript()
	tr.AddInstruction("open Settings")
	tr.AddToolCall(ToolCallRecord{CallID: "c1", Name: "app_start", Args: json.RawMessage(`{"package":"com.android.settings"}`)})
	tr.AddToolResult(ToolResultRecord{CallID: "c1", Name: "app_start", Status: ResultOK, Payload: "started"})
	tr.AddNote("keep going")

	entries := tr.Entries()
	if len(entries) != 4 {
		t.Fatalf("len = %d", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i {
			t.Errorf("entry %d has seq %d", i, e.Seq)
		}
	}

	// Mutating the returned slice must not affect the transcript.
	entries[0].Text = "tampered"
	if tr.Entries()[0].Text != "open Settings" {
		t.Error("transcript entry mutated through copy")
	}
}

func TestTranscriptTail(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < 5; i++ {
		tr.AddNote("note")
	}
	tail := tr.Tail(3)
	if len(tail) != 3 {
		t.Fatalf("tail len = %d", len(tail))
	}
	if tail[0].Seq != 2 || tail[2].Seq != 4 {
		t.Errorf("tail seqs = %d..%d", tail[0].Seq, tail[2].Seq)
	}
	if got := tr.Tail(100); len(got) != 5 {
		t.Errorf("oversized tail len = %d", len(got))
	}
}

func TestTranscriptMessages(t *testing.T) {
	tr := NewTranscript()
	tr.AddInstruction("open Settings")
	tr.AddToolCall(ToolCallRecord{CallID: "c1", Name: "app_start", Args: json.RawMessage(`{}`)})
	tr.AddToolResult(ToolResultRecord{CallID: "c1", Name: "app_start", Status: ResultOK, Payload: "started"})
	tr.AddToolResult(ToolResultRecord{CallID: "c2", Name: "tap", Status: ResultError, ErrorClass: ErrClassTimeout, ErrorDetail: "deadline exceeded"})
	tr.AddUtterance("opening now")

	msgs := tr.Messages()
	if len(msgs) != 5 {
		t.Fatalf("len = %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleUser || msgs[0].TextContent() != "open Settings" {
		t.Errorf("instruction rendered as %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleAssistant || msgs[1].Content[0].Kind != llm.ContentToolCall {
		t.Errorf("tool call rendered as %+v", msgs[1])
	}
	if msgs[2].Role != llm.RoleTool || msgs[2].Content[0].ToolResult.IsError {
		t.Errorf("ok result rendered as %+v", msgs[2])
	}
	errResult := msgs[3].Content[0].ToolResult
	if !errResult.IsError || errResult.Content == "" {
		t.Errorf("error result rendered as %+v", errResult)
	}
	if msgs[4].Role != llm.RoleAssistant {
		t.Errorf("utterance rendered as %+v", msgs[4])
	}
}

func TestTranscriptMessagesCollapseRetriedResults(t *testing.T) {
	tr := NewTranscript()
	tr.AddInstruction("tap the button")
	tr.AddToolCall(ToolCallRecord{CallID: "c1", Name: "press", Args: json.RawMessage(`{"x":1,"y":2}`)})
	tr.AddToolResult(ToolResultRecord{CallID: "c1", Name: "press", Status: ResultError, ErrorClass: ErrClassTimeout, ErrorDetail: "timeout"})
	tr.AddToolResult(ToolResultRecord{CallID: "c1", Name: "press", Status: ResultOK, Payload: "tapped (1, 2)"})

	var results []llm.Message
	for _, m := range tr.Messages() {
		if m.Role == llm.RoleTool {
			results = append(results, m)
		}
	}
	if len(results) != 1 {
		t.Fatalf("tool messages = %d, want one per call id", len(results))
	}
	res := results[0].Content[0].ToolResult
	if res.IsError || res.Content != "tapped (1, 2)" {
		t.Errorf("rendered result = %+v, want the final attempt", res)
	}
}
