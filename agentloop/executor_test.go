package agentloop

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/droidpilot/droidpilot/device"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(ToolSpec{
		Name:        "press",
		Description: "Tap screen coordinates.",
		Params: map[string]ParamSpec{
			"x": {Type: ParamInteger, Required: true},
			"y": {Type: ParamInteger, Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "tapped", nil
		},
	})
	return r
}

func TestExecutorSuccess(t *testing.T) {
	e := NewExecutor(testRegistry(t))
	record := e.Execute(context.Background(), "call_1", "press", json.RawMessage(`{"x": 100, "y": 200}`))
	if record.Status != ResultOK {
		t.Fatalf("status = %q, detail = %q", record.Status, record.ErrorDetail)
	}
	if record.Payload != "tapped" {
		t.Errorf("payload = %q", record.Payload)
	}
	if record.CallID != "call_1" {
		t.Errorf("call id = %q", record.CallID)
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	e := NewExecutor(testRegistry(t))
	record := e.Execute(context.Background(), "call_1", "teleport", nil)
	if record.Status != ResultError {
		t.Fatal("expected error result")
	}
	if record.ErrorClass != ErrClassUnknownTool {
		t.Errorf("class = %q", record.ErrorClass)
	}
}

func TestExecutorMissingParamNamesParam(t *testing.T) {
	e := NewExecutor(testRegistry(t))
	record := e.Execute(context.Background(), "call_1", "press", json.RawMessage(`{"x": 100}`))
	if record.Status != ResultError {
		t.Fatal("expected error result")
	}
	if record.ErrorClass != ErrClassValidation {
		t.Errorf("class = %q", record.ErrorClass)
	}
	if !strings.Contains(record.ErrorDetail, `"y"`) {
		t.Errorf("error does not name the missing parameter: %q", record.ErrorDetail)
	}
}

func TestExecutorWrongTypeNamesParam(t *testing.T) {
	e := NewExecutor(testRegistry(t))
	record := e.Execute(context.Background(), "call_1", "press", json.RawMessage(`{"x": "left", "y": 10}`))
	if record.ErrorClass != ErrClassValidation {
		t.Fatalf("class = %q", record.ErrorClass)
	}
	if !strings.Contains(record.ErrorDetail, `"x"`) {
		t.Errorf("error does not name the offending parameter: %q", record.ErrorDetail)
	}
}

func TestExecutorUnexpectedParam(t *testing.T) {
	e := NewExecutor(testRegistry(t))
	record := e.Execute(context.Background(), "call_1", "press", json.RawMessage(`{"x": 1, "y": 2, "z": 3}`))
	if record.ErrorClass != ErrClassValidation {
		t.Fatalf("class = %q", record.ErrorClass)
	}
	if !strings.Contains(record.ErrorDetail, `"z"`) {
		t.Errorf("error does not name the unexpected parameter: %q", record.ErrorDetail)
	}
}

func TestExecutorEnumValidation(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ToolSpec{
		Name: "scroll",
		Params: map[string]ParamSpec{
			"direction": {Type: ParamString, Required: true, Enum: []string{"up", "down"}},
		},
		Handler: okHandler("scrolled"),
	})
	e := NewExecutor(r)

	record := e.Execute(context.Background(), "c1", "scroll", json.RawMessage(`{"direction": "sideways"}`))
	if record.ErrorClass != ErrClassValidation {
		t.Fatalf("class = %q", record.ErrorClass)
	}

	record = e.Execute(context.Background(), "c2", "scroll", json.RawMessage(`{"direction": "down"}`))
	if record.Status != ResultOK {
		t.Errorf("valid enum rejected: %q", record.ErrorDetail)
	}
}

func TestExecutorTimeout(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ToolSpec{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "done", nil
			}
		},
	})
	e := NewExecutor(r)

	record := e.Execute(context.Background(), "c1", "slow", nil)
	if record.Status != ResultError {
		t.Fatal("expected error result")
	}
	if record.ErrorClass != ErrClassTimeout {
		t.Errorf("class = %q", record.ErrorClass)
	}
	if record.ErrorDetail != "timeout" {
		t.Errorf("detail = %q, want the normalized form", record.ErrorDetail)
	}
}

func TestExecutorDeviceErrorClassification(t *testing.T) {
	r := NewRegistry()
	fail := func(err error) Handler {
		return func(ctx context.Context, args map[string]any) (string, error) {
			return "", err
		}
	}
	r.MustRegister(ToolSpec{Name: "dead", Handler: fail(&device.UnavailableError{Serial: "emu-1"})})
	r.MustRegister(ToolSpec{Name: "missing", Handler: fail(&device.ElementNotFoundError{Selector: device.Selector{Text: "Save"}})})
	r.MustRegister(ToolSpec{Name: "bad_state", Handler: fail(&device.InvalidStateError{Op: "tap", Detail: "out of bounds"})})
	e := NewExecutor(r)

	cases := []struct {
		tool string
		want string
	}{
		{"dead", ErrClassUnavailable},
		{"missing", ErrClassNotFound},
		{"bad_state", ErrClassInvalidState},
	}
	for _, tc := range cases {
		record := e.Execute(context.Background(), "c", tc.tool, nil)
		if record.ErrorClass != tc.want {
			t.Errorf("%s: class = %q, want %q", tc.tool, record.ErrorClass, tc.want)
		}
	}
}

func TestExecutorCancellationDoesNotInterruptCall(t *testing.T) {
	r := NewRegistry()
	finished := false
	r.MustRegister(ToolSpec{
		Name: "gesture",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(30 * time.Millisecond):
				finished = true
				return "ok", nil
			}
		},
	})
	e := NewExecutor(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	record := e.Execute(ctx, "c1", "gesture", nil)
	if record.Status != ResultOK {
		t.Fatalf("status = %q, detail = %q", record.Status, record.ErrorDetail)
	}
	if !finished {
		t.Error("handler did not run to completion")
	}
}

func TestExecutorTruncatesOutput(t *testing.T) {
	r := NewRegistry()
	big := strings.Repeat("x", 40000)
	r.MustRegister(ToolSpec{Name: "get_ui_elements_info", Handler: okHandler(big)})
	e := NewExecutor(r)

	record := e.Execute(context.Background(), "c1", "get_ui_elements_info", nil)
	if record.Status != ResultOK {
		t.Fatalf("status = %q", record.Status)
	}
	if len(record.Payload) >= len(big) {
		t.Errorf("payload not truncated: %d bytes", len(record.Payload))
	}
	if !strings.Contains(record.Payload, "truncated") {
		t.Error("truncation marker missing")
	}
}
