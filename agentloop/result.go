package agentloop

import (
	"time"

	"github.com/droidpilot/droidpilot/llm"
)

// TaskStatus is the terminal outcome of a task.
type TaskStatus string

const (
	TaskDone   TaskStatus = "done"
	TaskFailed TaskStatus = "failed"
)

// resultTailEntries is how many trailing transcript entries a TaskResult
// carries for diagnosis.
const resultTailEntries = 20

// StepSummary is one executed tool call in the task summary.
type StepSummary struct {
	Tool     string        `json:"tool"`
	Status   ResultStatus  `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ms"`
}

// TaskResult is what a finished session hands back to the caller. Done
// carries the model's final answer and a step-by-step summary; Failed
// carries the terminating reason and the last transcript entries, never a
// raw internal error.
type TaskResult struct {
	Status      TaskStatus        `json:"status"`
	FinalAnswer string            `json:"final_answer,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Steps       []StepSummary     `json:"steps,omitempty"`
	Transcript  []TranscriptEntry `json:"transcript,omitempty"`
	Iterations  int               `json:"iterations"`
	Elapsed     time.Duration     `json:"elapsed_ms"`
	Usage       llm.Usage         `json:"usage"`
}

// summarizeSteps collapses the transcript's tool results into step summaries.
func summarizeSteps(t *Transcript) []StepSummary {
	var steps []StepSummary
	for _, e := range t.Entries() {
		if e.Kind != EntryToolResult {
			continue
		}
		step := StepSummary{
			Tool:     e.ToolResult.Name,
			Status:   e.ToolResult.Status,
			Duration: e.ToolResult.Duration,
		}
		if e.ToolResult.Status == ResultError {
			step.Detail = e.ToolResult.ErrorDetail
		}
		steps = append(steps, step)
	}
	return steps
}
