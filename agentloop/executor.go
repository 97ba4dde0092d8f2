package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/droidpilot/droidpilot/device"
)

// Error classes recorded on tool results. The session uses them to decide
// between retrying, replanning and aborting.
const (
	ErrClassUnavailable  = "device_unavailable"
	ErrClassInvalidState = "invalid_state"
	ErrClassNotFound     = "element_not_found"
	ErrClassTimeout      = "timeout"
	ErrClassValidation   = "validation"
	ErrClassUnknownTool  = "unknown_tool"
	ErrClassCancelled    = "cancelled"
	ErrClassInternal     = "internal"
)

// DefaultToolTimeout bounds tool handlers that declare no timeout of
// their own.
const DefaultToolTimeout = 30 * time.Second

// Executor runs validated tool calls against the registry. It performs at
// most one handler invocation per call and never retries; retry policy
// belongs to the session loop.
type Executor struct {
	registry       *Registry
	defaultTimeout time.Duration
	charLimits     map[string]int
	lineLimits     map[string]int
}

// NewExecutor creates an executor over the given registry with default
// output truncation limits.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:       registry,
		defaultTimeout: DefaultToolTimeout,
		charLimits:     DefaultToolCharLimits,
		lineLimits:     DefaultToolLineLimits,
	}
}

// SetDefaultTimeout overrides the fallback per-call timeout.
func (e *Executor) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		e.defaultTimeout = d
	}
}

// Execute resolves, validates and runs one tool call. The returned record
// always carries the call ID so results can be matched to requests; failures
// are reported in the record rather than as a Go error so the model sees
// them as tool results.
func (e *Executor) Execute(ctx context.Context, callID, name string, rawArgs json.RawMessage) ToolResultRecord {
	start := time.Now()
	record := ToolResultRecord{CallID: callID, Name: name}

	spec, err := e.registry.Resolve(name)
	if err != nil {
		record.Status = ResultError
		record.ErrorClass = ErrClassUnknownTool
		record.ErrorDetail = err.Error()
		record.Duration = time.Since(start)
		toolExecutions.WithLabelValues(name, "unknown").Inc()
		return record
	}

	args, err := decodeArgs(rawArgs)
	if err == nil {
		err = validateArgs(spec, args)
	}
	if err != nil {
		record.Status = ResultError
		record.ErrorClass = ErrClassValidation
		record.ErrorDetail = err.Error()
		record.Duration = time.Since(start)
		toolExecutions.WithLabelValues(name, "invalid").Inc()
		return record
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	// Cancellation is observed between calls, never mid-call: an interrupted
	// gesture leaves the device in an unknown state. The call context keeps
	// the parent's values but not its cancellation, bounded only by the
	// per-tool timeout.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	payload, err := spec.Handler(callCtx, args)
	record.Duration = time.Since(start)
	toolDuration.WithLabelValues(name).Observe(record.Duration.Seconds())

	if err != nil {
		record.Status = ResultError
		record.ErrorClass = classifyToolError(callCtx, err)
		record.ErrorDetail = err.Error()
		if record.ErrorClass == ErrClassTimeout {
			record.ErrorDetail = "timeout"
		}
		toolExecutions.WithLabelValues(name, "error").Inc()
		return record
	}

	record.Status = ResultOK
	record.Payload = TruncateToolOutput(payload, name, e.charLimits, e.lineLimits)
	toolExecutions.WithLabelValues(name, "ok").Inc()
	return record
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateArgs checks the arguments against the tool's parameter schema.
// Every violation names the offending parameter.
func validateArgs(spec ToolSpec, args map[string]any) error {
	for name, p := range spec.Params {
		val, present := args[name]
		if !present {
			if p.Required {
				return &ValidationError{Tool: spec.Name, Param: name, Detail: "required parameter missing"}
			}
			continue
		}
		if err := checkParamType(spec.Name, name, p, val); err != nil {
			return err
		}
	}
	for name := range args {
		if _, known := spec.Params[name]; !known {
			return &ValidationError{Tool: spec.Name, Param: name, Detail: "unexpected parameter"}
		}
	}
	return nil
}

func checkParamType(tool, param string, p ParamSpec, val any) error {
	switch p.Type {
	case ParamString:
		s, ok := val.(string)
		if !ok {
			return &ValidationError{Tool: tool, Param: param, Detail: "expected a string"}
		}
		if len(p.Enum) > 0 {
			for _, allowed := range p.Enum {
				if s == allowed {
					return nil
				}
			}
			return &ValidationError{Tool: tool, Param: param, Detail: fmt.Sprintf("%q is not one of %v", s, p.Enum)}
		}
	case ParamInteger:
		f, ok := val.(float64)
		if !ok || f != float64(int64(f)) {
			return &ValidationError{Tool: tool, Param: param, Detail: "expected an integer"}
		}
		return checkRange(tool, param, p, f)
	case ParamNumber:
		f, ok := val.(float64)
		if !ok {
			return &ValidationError{Tool: tool, Param: param, Detail: "expected a number"}
		}
		return checkRange(tool, param, p, f)
	case ParamBoolean:
		if _, ok := val.(bool); !ok {
			return &ValidationError{Tool: tool, Param: param, Detail: "expected a boolean"}
		}
	}
	return nil
}

func checkRange(tool, param string, p ParamSpec, f float64) error {
	if p.Min != nil && f < *p.Min {
		return &ValidationError{Tool: tool, Param: param, Detail: fmt.Sprintf("%v is below minimum %v", f, *p.Min)}
	}
	if p.Max != nil && f > *p.Max {
		return &ValidationError{Tool: tool, Param: param, Detail: fmt.Sprintf("%v is above maximum %v", f, *p.Max)}
	}
	return nil
}

// classifyToolError maps a handler error to an error class.
func classifyToolError(callCtx context.Context, err error) string {
	switch {
	case device.IsUnavailable(err):
		return ErrClassUnavailable
	case errors.As(err, new(*device.ElementNotFoundError)):
		return ErrClassNotFound
	case device.IsInvalidState(err):
		return ErrClassInvalidState
	case errors.Is(err, context.Canceled):
		return ErrClassCancelled
	case errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded:
		return ErrClassTimeout
	default:
		return ErrClassInternal
	}
}
