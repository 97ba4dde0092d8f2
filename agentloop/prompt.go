package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/droidpilot/droidpilot/llm"
)

const systemPrompt = `You are an Android automation agent. You help users complete tasks on a real Android device by using the available tools.

## Workflow
1. Observe first: use get_ui_elements_info or take_screenshot to understand the current screen.
2. Plan step by step how to accomplish the task.
3. Execute one action at a time and check the result before the next action.
4. When the task is complete, answer in plain text with a short summary of what was done. Do not call any more tools once you are done.

## Rules
- Use element coordinates from the UI element info to tap on specific items.
- If an action fails or the screen does not change, try an alternative approach instead of repeating the same action.
- Never invent tool names or parameters that are not in the catalog.`

// embeddedCallInstructions teaches providers without a native tool channel
// how to request tool calls in text.
const embeddedCallInstructions = `
## Calling tools
To call a tool, respond with a JSON object in a fenced code block:

` + "```json" + `
{"tool": "tool_name", "args": {"param": "value"}}
` + "```" + `

Emit one JSON object per tool call. To call several tools in order, put them in a JSON array. Any response without such a block is treated as your final answer.`

// DeviceContext carries device facts rendered into the system prompt.
type DeviceContext struct {
	Serial         string
	Model          string
	AndroidVersion string
	ScreenWidth    int
	ScreenHeight   int
	CurrentApp     string
}

// BuildSystemPrompt assembles the system prompt: agent behavior, device
// context, and, for providers without a native tool-call channel, the tool
// catalog with embedded-call instructions.
func BuildSystemPrompt(dev DeviceContext, defs []llm.ToolDefinition, nativeTools bool) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(renderDeviceContext(dev))
	if !nativeTools {
		sb.WriteString("\n")
		sb.WriteString(embeddedCallInstructions)
		sb.WriteString("\n\n")
		sb.WriteString(RenderToolCatalog(defs))
	}
	return sb.String()
}

func renderDeviceContext(dev DeviceContext) string {
	var sb strings.Builder
	sb.WriteString("<device>\n")
	if dev.Serial != "" {
		fmt.Fprintf(&sb, "Serial: %s\n", dev.Serial)
	}
	if dev.Model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", dev.Model)
	}
	if dev.AndroidVersion != "" {
		fmt.Fprintf(&sb, "Android version: %s\n", dev.AndroidVersion)
	}
	if dev.ScreenWidth > 0 && dev.ScreenHeight > 0 {
		fmt.Fprintf(&sb, "Screen: %dx%d\n", dev.ScreenWidth, dev.ScreenHeight)
	}
	if dev.CurrentApp != "" {
		fmt.Fprintf(&sb, "Foreground app: %s\n", dev.CurrentApp)
	}
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	sb.WriteString("</device>")
	return sb.String()
}

// RenderToolCatalog renders tool definitions as a readable catalog for
// providers that receive tools through the prompt.
func RenderToolCatalog(defs []llm.ToolDefinition) string {
	var sb strings.Builder
	sb.WriteString("## Available tools\n")
	for _, def := range defs {
		fmt.Fprintf(&sb, "\n### %s\n%s\n", def.Name, def.Description)
		if len(def.Parameters) > 0 {
			schema, err := json.Marshal(def.Parameters)
			if err == nil {
				fmt.Fprintf(&sb, "Parameters: %s\n", schema)
			}
		}
	}
	return sb.String()
}
