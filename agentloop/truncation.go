package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is trimmed.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultToolCharLimits bounds tool output size per tool before it enters
// the conversation. UI dumps and shell output dominate token usage.
var DefaultToolCharLimits = map[string]int{
	"get_ui_elements_info": 20000,
	"shell":                15000,
	"app_list":             8000,
	"get_clipboard":        4000,
}

// DefaultTruncationModes selects the trim strategy per tool. Hierarchy dumps
// keep both ends so the model sees status bar and navigation elements.
var DefaultTruncationModes = map[string]TruncationMode{
	"get_ui_elements_info": TruncateHeadTail,
	"shell":                TruncateHeadTail,
	"app_list":             TruncateTail,
	"get_clipboard":        TruncateTail,
}

// DefaultToolLineLimits applies after character truncation.
var DefaultToolLineLimits = map[string]int{
	"get_ui_elements_info": 300,
	"shell":                200,
	"app_list":             300,
}

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n",
			removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"Re-run the tool with more targeted parameters if you need the rest.]\n\n",
				removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies character truncation first, then line
// truncation for readability.
func TruncateToolOutput(output string, toolName string, charLimits map[string]int, lineLimits map[string]int) string {
	maxChars, ok := charLimits[toolName]
	if !ok {
		maxChars, ok = DefaultToolCharLimits[toolName]
		if !ok {
			maxChars = 15000
		}
	}

	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	maxLines := 0
	if lineLimits != nil {
		if ml, ok := lineLimits[toolName]; ok {
			maxLines = ml
		}
	}
	if maxLines == 0 {
		if ml, ok := DefaultToolLineLimits[toolName]; ok {
			maxLines = ml
		}
	}
	if maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}

	return result
}
