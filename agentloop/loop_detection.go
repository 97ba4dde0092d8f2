package agentloop

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// toolCallSignature computes a deterministic signature for a tool call
// (name + hash of arguments).
func toolCallSignature(name string, arguments json.RawMessage) string {
	h := sha256.Sum256(arguments)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// recentToolCallSignatures returns signatures for the most recent tool
// calls in the transcript, in chronological order.
func recentToolCallSignatures(t *Transcript, count int) []string {
	entries := t.Entries()
	var sigs []string
	for i := len(entries) - 1; i >= 0 && len(sigs) < count; i-- {
		e := entries[i]
		if e.Kind == EntryToolCall {
			sigs = append(sigs, toolCallSignature(e.ToolCall.Name, e.ToolCall.Args))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop checks if the last windowSize tool calls follow a repeating
// pattern of length 1, 2, or 3. Tapping the same dead button or dumping the
// same unchanged screen over and over shows up as such a pattern.
func DetectLoop(t *Transcript, windowSize int) bool {
	sigs := recentToolCallSignatures(t, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
			if !allMatch {
				break
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}
