package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/droidpilot/droidpilot/llm"
)

// EntryKind discriminates transcript entries.
type EntryKind string

const (
	// EntryInstruction is the task instruction that started the session.
	EntryInstruction EntryKind = "instruction"
	// EntryUtterance is prose produced by the model.
	EntryUtterance EntryKind = "utterance"
	// EntryToolCall is a tool invocation requested by the model.
	EntryToolCall EntryKind = "tool_call"
	// EntryToolResult is the outcome of an executed tool call.
	EntryToolResult EntryKind = "tool_result"
	// EntryNote is loop-internal guidance injected into the conversation,
	// such as loop warnings or re-prompts after malformed output.
	EntryNote EntryKind = "note"
)

// ResultStatus is the outcome tag of a tool result.
type ResultStatus string

const (
	ResultOK    ResultStatus = "ok"
	ResultError ResultStatus = "error"
)

// ToolCallRecord captures one requested tool invocation.
type ToolCallRecord struct {
	CallID string          `json:"call_id"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args"`
}

// ToolResultRecord captures the outcome of one executed tool call.
type ToolResultRecord struct {
	CallID      string        `json:"call_id"`
	Name        string        `json:"name"`
	Status      ResultStatus  `json:"status"`
	Payload     string        `json:"payload,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	ErrorClass  string        `json:"error_class,omitempty"`
	Duration    time.Duration `json:"duration_ms,omitempty"`
}

// TranscriptEntry is one item in the append-only session transcript. Seq is
// monotonically increasing within a session.
type TranscriptEntry struct {
	Seq        int               `json:"seq"`
	Kind       EntryKind         `json:"kind"`
	Text       string            `json:"text,omitempty"`
	ToolCall   *ToolCallRecord   `json:"tool_call,omitempty"`
	ToolResult *ToolResultRecord `json:"tool_result,omitempty"`
	At         time.Time         `json:"at"`
}

// Transcript is the append-only record of everything that happened in a
// session: the instruction, model utterances, tool calls and their results,
// and injected notes. Entries are never mutated after append.
type Transcript struct {
	mu      sync.RWMutex
	entries []TranscriptEntry
	nextSeq int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) append(entry TranscriptEntry) TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry.Seq = t.nextSeq
	entry.At = time.Now()
	t.nextSeq++
	t.entries = append(t.entries, entry)
	return entry
}

// AddInstruction records the task instruction.
func (t *Transcript) AddInstruction(text string) TranscriptEntry {
	return t.append(TranscriptEntry{Kind: EntryInstruction, Text: text})
}

// AddUtterance records prose produced by the model.
func (t *Transcript) AddUtterance(text string) TranscriptEntry {
	return t.append(TranscriptEntry{Kind: EntryUtterance, Text: text})
}

// AddToolCall records a requested tool invocation.
func (t *Transcript) AddToolCall(call ToolCallRecord) TranscriptEntry {
	return t.append(TranscriptEntry{Kind: EntryToolCall, ToolCall: &call})
}

// AddToolResult records the outcome of an executed tool call.
func (t *Transcript) AddToolResult(result ToolResultRecord) TranscriptEntry {
	return t.append(TranscriptEntry{Kind: EntryToolResult, ToolResult: &result})
}

// AddNote records loop-internal guidance for the model.
func (t *Transcript) AddNote(text string) TranscriptEntry {
	return t.append(TranscriptEntry{Kind: EntryNote, Text: text})
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a copy of all entries in order.
func (t *Transcript) Entries() []TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Tail returns a copy of the last n entries, or all entries if fewer exist.
func (t *Transcript) Tail(n int) []TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]TranscriptEntry, n)
	copy(out, t.entries[len(t.entries)-n:])
	return out
}

// Messages renders the transcript as a model conversation. The instruction
// becomes a user message, utterances become assistant messages, tool calls
// become assistant tool-call parts, results become tool messages, and notes
// become user messages so the model treats them as fresh guidance.
func (t *Transcript) Messages() []llm.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// A retried call records one result per attempt under the same call id.
	// Providers accept exactly one tool message per tool_call_id, so only
	// the final attempt's result is rendered.
	lastResult := make(map[string]int)
	for i, e := range t.entries {
		if e.Kind == EntryToolResult {
			lastResult[e.ToolResult.CallID] = i
		}
	}

	msgs := make([]llm.Message, 0, len(t.entries))
	for i, e := range t.entries {
		switch e.Kind {
		case EntryInstruction:
			msgs = append(msgs, llm.UserMessage(e.Text))
		case EntryUtterance:
			if strings.TrimSpace(e.Text) != "" {
				msgs = append(msgs, llm.AssistantMessage(e.Text))
			}
		case EntryToolCall:
			msgs = append(msgs, llm.Message{
				Role: llm.RoleAssistant,
				Content: []llm.ContentPart{
					llm.ToolCallPart(e.ToolCall.CallID, e.ToolCall.Name, e.ToolCall.Args),
				},
			})
		case EntryToolResult:
			if lastResult[e.ToolResult.CallID] != i {
				continue
			}
			content := e.ToolResult.Payload
			isError := e.ToolResult.Status == ResultError
			if isError {
				content = fmt.Sprintf("error (%s): %s", e.ToolResult.ErrorClass, e.ToolResult.ErrorDetail)
			}
			msgs = append(msgs, llm.ToolResultMessage(e.ToolResult.CallID, content, isError))
		case EntryNote:
			msgs = append(msgs, llm.UserMessage(e.Text))
		}
	}
	return msgs
}
