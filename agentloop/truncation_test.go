package agentloop

import (
	"strings"
	"testing"
)

func TestTruncateOutputHeadTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	out := TruncateOutput(input, 100, TruncateHeadTail)
	if !strings.HasPrefix(out, "aaaa") || !strings.HasSuffix(out, "zzzz") {
		t.Error("head or tail missing")
	}
	if !strings.Contains(out, "truncated") {
		t.Error("marker missing")
	}
}

func TestTruncateOutputTail(t *testing.T) {
	input := strings.Repeat("a", 500) + strings.Repeat("z", 100)
	out := TruncateOutput(input, 100, TruncateTail)
	if !strings.HasSuffix(out, "zzzz") {
		t.Error("tail missing")
	}
	if strings.Contains(strings.TrimPrefix(out, "[WARNING"), "aaaa") {
		t.Error("head kept in tail mode")
	}
}

func TestTruncateOutputUnderLimitUntouched(t *testing.T) {
	if out := TruncateOutput("short", 100, TruncateHeadTail); out != "short" {
		t.Errorf("got %q", out)
	}
}

func TestTruncateLines(t *testing.T) {
	input := strings.TrimSuffix(strings.Repeat("line\n", 100), "\n")
	out := TruncateLines(input, 10)
	if !strings.Contains(out, "lines omitted") {
		t.Error("omission marker missing")
	}
	if got := len(strings.Split(out, "\n")); got > 12 {
		t.Errorf("still %d lines", got)
	}
}

func TestTruncateToolOutputUsesPerToolLimits(t *testing.T) {
	big := strings.Repeat("x", 30000)
	out := TruncateToolOutput(big, "get_ui_elements_info", DefaultToolCharLimits, DefaultToolLineLimits)
	if len(out) >= len(big) {
		t.Error("hierarchy dump not truncated")
	}

	small := "just a screen"
	if got := TruncateToolOutput(small, "get_ui_elements_info", DefaultToolCharLimits, DefaultToolLineLimits); got != small {
		t.Errorf("small output modified: %q", got)
	}
}
