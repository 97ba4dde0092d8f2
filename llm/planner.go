package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PlanStep is one high-level step in an execution plan.
type PlanStep struct {
	Step      int    `json:"step"`
	Action    string `json:"action"`
	Reasoning string `json:"reasoning,omitempty"`
	ToolHint  string `json:"tool_hint,omitempty"`
}

// Plan is a strategic breakdown of a task into ordered steps. The plan is
// advisory: the navigating model decides the actual tool calls.
type Plan struct {
	Goal  string     `json:"goal"`
	Steps []PlanStep `json:"steps"`
}

// Render formats the plan as numbered lines for inclusion in a prompt.
func (p *Plan) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", p.Goal)
	for _, s := range p.Steps {
		fmt.Fprintf(&sb, "%d. %s", s.Step, s.Action)
		if s.ToolHint != "" {
			fmt.Fprintf(&sb, " (%s)", s.ToolHint)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const plannerSystemPrompt = `You are an Android automation planner. Your job is to PLAN, not to execute.

You analyze the user's request and produce a short list of high-level steps
that a navigator agent will carry out one at a time using device tools.

Rules:
1. At most 8 steps per task.
2. Each step must be one concrete action.
3. Start with launching the app if it is not already open.
4. Wait for the screen to settle after launching an app or changing screens.
5. Prefer locating elements by visible text over resource id.

Respond with JSON only, in this exact shape:

{
  "goal": "one-line description of the end state",
  "steps": [
    {"step": 1, "action": "short action name", "reasoning": "why", "tool_hint": "tool_name(param=value)"}
  ]
}`

// Planner generates execution plans using a high-capability model, usually
// a different model than the one driving the navigation loop.
type Planner struct {
	client *Client
	model  string
}

// NewPlanner creates a Planner that plans with the given model.
func NewPlanner(client *Client, model string) *Planner {
	return &Planner{client: client, model: model}
}

// CreatePlan asks the planning model for a step plan. A screenshot of the
// current screen, when provided, is attached so the plan starts from the
// actual device state.
func (p *Planner) CreatePlan(ctx context.Context, task string, screenshot []byte, extra string) (*Plan, error) {
	userParts := []ContentPart{}
	if len(screenshot) > 0 {
		userParts = append(userParts, ImageDataPart(screenshot, "image/png"))
	}
	prompt := "Task: " + task
	if extra != "" {
		prompt += "\nContext: " + extra
	}
	prompt += "\n\nProduce the plan as JSON in the specified format."
	userParts = append(userParts, TextPart(prompt))

	temp := 0.3
	maxTokens := 2048
	resp, err := p.client.Complete(ctx, Request{
		Model: p.model,
		Messages: []Message{
			SystemMessage(plannerSystemPrompt),
			{Role: RoleUser, Content: userParts},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, err
	}

	plan, ok := parsePlanJSON(resp.Text())
	if !ok {
		return nil, &MalformedResponseError{
			ClientError: ClientError{Message: "planner response contained no parseable plan"},
			Fragment:    resp.Text(),
		}
	}
	return plan, nil
}

var planFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
var planObject = regexp.MustCompile(`(?s)\{[^{}]*"steps"\s*:\s*\[.*?\]\s*\}`)

// parsePlanJSON extracts a Plan from model output, trying a direct parse,
// then a fenced code block, then a raw object containing a steps array.
func parsePlanJSON(content string) (*Plan, bool) {
	candidates := []string{strings.TrimSpace(content)}
	if m := planFence.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := planObject.FindString(content); m != "" {
		candidates = append(candidates, m)
	}
	for _, cand := range candidates {
		var plan Plan
		if err := json.Unmarshal([]byte(cand), &plan); err == nil && len(plan.Steps) > 0 {
			return &plan, true
		}
	}
	return nil, false
}
