package agentloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/droidpilot/droidpilot/device"
	"github.com/droidpilot/droidpilot/llm"
	"github.com/google/uuid"
)

// AgentState is the loop's finite-state-machine state.
type AgentState string

const (
	StatePlanning  AgentState = "planning"
	StateExecuting AgentState = "executing"
	StateVerifying AgentState = "verifying"
	StateReporting AgentState = "reporting"
	StateDone      AgentState = "done"
	StateFailed    AgentState = "failed"
)

// Limits bounds a single task run.
type Limits struct {
	MaxIterations int           `json:"max_iterations"`
	MaxWallTime   time.Duration `json:"max_wall_time"`
	RetryBudget   int           `json:"retry_budget"` // retries per failed call on transient errors
}

// DefaultLimits returns the default task limits.
func DefaultLimits() Limits {
	return Limits{
		MaxIterations: 25,
		MaxWallTime:   10 * time.Minute,
		RetryBudget:   2,
	}
}

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	Model               string        `json:"model"`
	Provider            string        `json:"provider,omitempty"`
	Limits              Limits        `json:"limits"`
	Device              DeviceContext `json:"device"`
	NativeTools         bool          `json:"native_tools"`
	EnableLoopDetection bool          `json:"enable_loop_detection"`
	LoopDetectionWindow int           `json:"loop_detection_window"`
	EnablePlanner       bool          `json:"enable_planner"`
	Temperature         *float64      `json:"temperature,omitempty"`
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Limits:              DefaultLimits(),
		EnableLoopDetection: true,
		LoopDetectionWindow: 6,
	}
}

// SessionContext is the per-task orchestrator. It owns the device handle for
// the duration of the task, the append-only transcript, the iteration
// counter and the run limits. One task, one SessionContext; the device is
// released when Close runs, on every exit path.
type SessionContext struct {
	id         string
	client     *llm.Client
	registry   *Registry
	executor   *Executor
	driver     *device.Driver
	planner    *llm.Planner
	transcript *Transcript
	emitter    *EventEmitter
	config     SessionConfig

	mu             sync.Mutex
	state          AgentState
	iterations     int
	usage          llm.Usage
	closed         bool
	lastFailReason string

	cancelled atomic.Bool
}

// NewSession creates a SessionContext over an already-open device driver.
// The driver may be nil when tool handlers do not touch a device. The
// session takes ownership of the driver; Close releases it.
func NewSession(client *llm.Client, registry *Registry, drv *device.Driver, config *SessionConfig) *SessionContext {
	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Limits.MaxIterations <= 0 {
		cfg.Limits.MaxIterations = DefaultLimits().MaxIterations
	}
	if cfg.Limits.MaxWallTime <= 0 {
		cfg.Limits.MaxWallTime = DefaultLimits().MaxWallTime
	}
	if cfg.Limits.RetryBudget < 0 {
		cfg.Limits.RetryBudget = 0
	}
	if cfg.LoopDetectionWindow <= 0 {
		cfg.LoopDetectionWindow = 6
	}

	sessionID := uuid.New().String()
	s := &SessionContext{
		id:         sessionID,
		client:     client,
		registry:   registry,
		executor:   NewExecutor(registry),
		driver:     drv,
		transcript: NewTranscript(),
		emitter:    NewEventEmitter(sessionID, 256),
		config:     cfg,
		state:      StatePlanning,
	}
	if cfg.EnablePlanner && client != nil {
		s.planner = llm.NewPlanner(client, cfg.Model)
	}
	return s
}

// ID returns the session identifier.
func (s *SessionContext) ID() string { return s.id }

// State returns the current loop state.
func (s *SessionContext) State() AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the session transcript.
func (s *SessionContext) Transcript() *Transcript { return s.transcript }

// Events returns the session's event channel.
func (s *SessionContext) Events() <-chan SessionEvent { return s.emitter.Events() }

// Cancel requests a cooperative stop. It is observed at state-transition
// boundaries; a tool call already in flight finishes first.
func (s *SessionContext) Cancel() { s.cancelled.Store(true) }

// Close releases the device handle and the event channel. Safe to call
// multiple times.
func (s *SessionContext) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.driver != nil {
		s.driver.Close()
	}
	s.emitter.Close()
}

func (s *SessionContext) setState(state AgentState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.emitter.Emit(EventStateChange, map[string]interface{}{
			"from": string(prev),
			"to":   string(state),
		})
	}
}

func (s *SessionContext) isCancelled(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

// pendingCall is a tool call awaiting execution in the current iteration.
type pendingCall struct {
	call    llm.ToolCall
	retries int
}

// Run executes one task to completion. The returned TaskResult is also
// produced on failure; the error return is reserved for programming errors
// such as a missing model client. Close always runs before Run returns.
func (s *SessionContext) Run(ctx context.Context, instruction string) (*TaskResult, error) {
	defer s.Close()
	if s.client == nil {
		return nil, fmt.Errorf("session %s: no model client", s.id)
	}

	start := time.Now()
	deadline := start.Add(s.config.Limits.MaxWallTime)

	s.transcript.AddInstruction(instruction)
	s.emitter.Emit(EventTaskStart, map[string]interface{}{
		"instruction": instruction,
		"model":       s.config.Model,
	})

	if s.planner != nil {
		s.runPlanner(ctx, instruction)
	}

	var pending []pendingCall
	malformedStreak := 0

	for {
		switch s.State() {
		case StatePlanning:
			if s.isCancelled(ctx) {
				return s.fail(start, "cancelled"), nil
			}
			output, err := s.planStep(ctx)
			if err != nil {
				var malformed *llm.MalformedResponseError
				if errors.As(err, &malformed) {
					malformedStreak++
					if malformedStreak > 1 {
						return s.fail(start, fmt.Sprintf("malformed model output: %v", err)), nil
					}
					note := "Your last response contained a malformed tool call and was discarded. " +
						"Respond again with either a valid tool call or a plain-text final answer."
					s.transcript.AddNote(note)
					s.emitter.Emit(EventNoteInjected, map[string]interface{}{"note": note})
					continue
				}
				return s.fail(start, fmt.Sprintf("model call failed: %v", err)), nil
			}
			malformedStreak = 0
			if s.isCancelled(ctx) {
				return s.fail(start, "cancelled"), nil
			}

			if output.Kind == llm.OutputFinalAnswer {
				s.setState(StateReporting)
				return s.report(start, output.Text), nil
			}

			if output.Commentary != "" {
				s.transcript.AddUtterance(output.Commentary)
			}
			pending = pending[:0]
			for _, call := range output.ToolCalls {
				s.transcript.AddToolCall(ToolCallRecord{
					CallID: call.ID,
					Name:   call.Name,
					Args:   call.Arguments,
				})
				pending = append(pending, pendingCall{call: call})
			}
			s.mu.Lock()
			s.iterations++
			s.mu.Unlock()
			s.setState(StateExecuting)

		case StateExecuting:
			var batch []ToolResultRecord
			for i := range pending {
				// Cancellation is observed between calls: the call in
				// flight finishes and its result stays on the record.
				if s.isCancelled(ctx) {
					break
				}
				s.emitter.Emit(EventToolCallStart, map[string]interface{}{
					"tool":    pending[i].call.Name,
					"call_id": pending[i].call.ID,
				})
				record := s.executor.Execute(ctx, pending[i].call.ID, pending[i].call.Name, pending[i].call.Arguments)
				record = s.recordResult(record)
				batch = append(batch, record)
			}
			pending = s.verify(ctx, pending, batch)
			if pending == nil {
				switch s.State() {
				case StateFailed:
					return s.fail(start, s.failReason()), nil
				case StatePlanning:
					if time.Now().After(deadline) {
						return s.fail(start, "wall time limit exceeded"), nil
					}
					if s.iterationCount() >= s.config.Limits.MaxIterations {
						return s.fail(start, "iteration limit exceeded"), nil
					}
				}
			}

		default:
			return s.fail(start, fmt.Sprintf("unexpected state %s", s.State())), nil
		}
	}
}

func (s *SessionContext) iterationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterations
}

// planStep performs the Planning model call and parses the output.
func (s *SessionContext) planStep(ctx context.Context) (*llm.ModelOutput, error) {
	messages := make([]llm.Message, 0, s.transcript.Len()+1)
	messages = append(messages, llm.SystemMessage(
		BuildSystemPrompt(s.config.Device, s.registry.Definitions(), s.config.NativeTools)))
	messages = append(messages, s.transcript.Messages()...)

	req := llm.Request{
		Model:       s.config.Model,
		Provider:    s.config.Provider,
		Messages:    messages,
		Temperature: s.config.Temperature,
	}
	if s.config.NativeTools {
		req.ToolDefs = s.registry.Definitions()
	}

	s.emitter.Emit(EventModelCall, map[string]interface{}{"model": s.config.Model})
	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		modelCalls.WithLabelValues(s.config.Provider, "error").Inc()
		return nil, err
	}
	modelCalls.WithLabelValues(resp.Provider, "ok").Inc()
	modelTokens.WithLabelValues("input").Add(float64(resp.Usage.InputTokens))
	modelTokens.WithLabelValues("output").Add(float64(resp.Usage.OutputTokens))
	s.mu.Lock()
	s.usage = s.usage.Add(resp.Usage)
	s.mu.Unlock()

	output, err := llm.ParseOutput(resp)
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(EventModelOutput, map[string]interface{}{
		"kind":       string(output.Kind),
		"tool_calls": len(output.ToolCalls),
	})
	return output, nil
}

// recordResult appends the result to the transcript and emits the end event.
func (s *SessionContext) recordResult(record ToolResultRecord) ToolResultRecord {
	s.transcript.AddToolResult(record)
	data := map[string]interface{}{
		"tool":    record.Name,
		"call_id": record.CallID,
		"status":  string(record.Status),
	}
	if record.Status == ResultError {
		data["error"] = record.ErrorDetail
		data["error_class"] = record.ErrorClass
	}
	s.emitter.Emit(EventToolCallEnd, data)
	return record
}

// verify is the policy step: it inspects the batch of results and decides
// retry, re-plan or abort. It returns the calls to re-execute, or nil with
// the next state already set.
func (s *SessionContext) verify(ctx context.Context, executed []pendingCall, batch []ToolResultRecord) []pendingCall {
	s.setState(StateVerifying)

	resultByID := make(map[string]ToolResultRecord, len(batch))
	for _, r := range batch {
		resultByID[r.CallID] = r
	}

	// Escalations first: a dead device cannot be replanned around.
	for _, r := range batch {
		if r.ErrorClass == ErrClassUnavailable {
			s.failWith(fmt.Sprintf("device unavailable: %s", r.ErrorDetail))
			return nil
		}
	}

	if s.isCancelled(ctx) || len(batch) < len(executed) {
		s.failWith("cancelled")
		return nil
	}

	// Transient failures get re-executed within the per-call retry budget.
	var retry []pendingCall
	for _, p := range executed {
		r := resultByID[p.call.ID]
		if r.Status != ResultError {
			continue
		}
		if r.ErrorClass == ErrClassTimeout || r.ErrorClass == ErrClassInvalidState {
			if p.retries < s.config.Limits.RetryBudget {
				p.retries++
				retry = append(retry, p)
			} else {
				s.failWith(fmt.Sprintf("retry budget exhausted for tool %s: %s", r.Name, r.ErrorDetail))
				return nil
			}
		}
		// Validation, unknown-tool and not-found errors go back to the
		// model; retrying them verbatim would fail identically.
	}
	if len(retry) > 0 {
		s.setState(StateExecuting)
		return retry
	}

	if s.config.EnableLoopDetection && DetectLoop(s.transcript, s.config.LoopDetectionWindow) {
		note := fmt.Sprintf("The last %d tool calls follow a repeating pattern without progress. Try a different approach.",
			s.config.LoopDetectionWindow)
		s.transcript.AddNote(note)
		s.emitter.Emit(EventLoopDetection, map[string]interface{}{"note": note})
	}

	s.setState(StatePlanning)
	return nil
}

func (s *SessionContext) failWith(reason string) {
	s.mu.Lock()
	s.lastFailReason = reason
	s.mu.Unlock()
	s.setState(StateFailed)
}

func (s *SessionContext) failReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailReason
}

// runPlanner performs the optional up-front planning step: a screenshot plus
// the instruction produce a step list that is injected as a note so the
// model starts with a strategy.
func (s *SessionContext) runPlanner(ctx context.Context, instruction string) {
	var screenshot []byte
	if s.driver != nil {
		if data, err := s.driver.Screenshot(ctx); err == nil {
			screenshot = data
		}
	}
	plan, err := s.planner.CreatePlan(ctx, instruction, screenshot, "")
	if err != nil {
		s.emitter.Emit(EventWarning, map[string]interface{}{
			"warning": fmt.Sprintf("planner failed, continuing without a plan: %v", err),
		})
		return
	}
	s.transcript.AddNote("Suggested plan:\n" + plan.Render())
	s.emitter.Emit(EventPlanCreated, map[string]interface{}{"steps": len(plan.Steps)})
}

// report packages a final answer into a Done result.
func (s *SessionContext) report(start time.Time, finalAnswer string) *TaskResult {
	s.transcript.AddUtterance(finalAnswer)
	s.setState(StateDone)
	result := &TaskResult{
		Status:      TaskDone,
		FinalAnswer: finalAnswer,
		Steps:       summarizeSteps(s.transcript),
		Transcript:  s.transcript.Tail(resultTailEntries),
		Iterations:  s.iterationCount(),
		Elapsed:     time.Since(start),
		Usage:       s.currentUsage(),
	}
	taskOutcomes.WithLabelValues(string(TaskDone)).Inc()
	taskIterations.Observe(float64(result.Iterations))
	s.emitter.Emit(EventTaskEnd, map[string]interface{}{"status": string(TaskDone)})
	return result
}

// fail packages a terminating reason into a Failed result.
func (s *SessionContext) fail(start time.Time, reason string) *TaskResult {
	s.setState(StateFailed)
	result := &TaskResult{
		Status:     TaskFailed,
		Reason:     reason,
		Steps:      summarizeSteps(s.transcript),
		Transcript: s.transcript.Tail(resultTailEntries),
		Iterations: s.iterationCount(),
		Elapsed:    time.Since(start),
		Usage:      s.currentUsage(),
	}
	taskOutcomes.WithLabelValues(string(TaskFailed)).Inc()
	taskIterations.Observe(float64(result.Iterations))
	s.emitter.Emit(EventTaskEnd, map[string]interface{}{
		"status": string(TaskFailed),
		"reason": reason,
	})
	return result
}

func (s *SessionContext) currentUsage() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}
