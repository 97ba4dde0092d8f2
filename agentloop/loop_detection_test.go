package agentloop

import (
	"encoding/json"
	"testing"
)

func addCall(tr *Transcript, id, name, args string) {
	tr.AddToolCall(ToolCallRecord{CallID: id, Name: name, Args: json.RawMessage(args)})
}

func TestDetectLoopRepeatingSingleCall(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < 6; i++ {
		addCall(tr, "c", "press_back", `{}`)
	}
	if !DetectLoop(tr, 6) {
		t.Error("identical calls not detected as a loop")
	}
}

func TestDetectLoopAlternatingPair(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < 3; i++ {
		addCall(tr, "a", "press", `{"x":1,"y":1}`)
		addCall(tr, "b", "press_back", `{}`)
	}
	if !DetectLoop(tr, 6) {
		t.Error("alternating pair not detected as a loop")
	}
}

func TestDetectLoopDistinctArgsNotALoop(t *testing.T) {
	tr := NewTranscript()
	addCall(tr, "a", "press", `{"x":1,"y":1}`)
	addCall(tr, "b", "press", `{"x":2,"y":2}`)
	addCall(tr, "c", "press", `{"x":3,"y":3}`)
	addCall(tr, "d", "press", `{"x":4,"y":4}`)
	addCall(tr, "e", "press", `{"x":5,"y":5}`)
	addCall(tr, "f", "press", `{"x":6,"y":6}`)
	if DetectLoop(tr, 6) {
		t.Error("distinct arguments flagged as a loop")
	}
}

func TestDetectLoopTooFewCalls(t *testing.T) {
	tr := NewTranscript()
	addCall(tr, "a", "press_back", `{}`)
	addCall(tr, "b", "press_back", `{}`)
	if DetectLoop(tr, 6) {
		t.Error("detector fired below the window size")
	}
}
