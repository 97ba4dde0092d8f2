package agentloop

import (
	"context"
	"errors"
	"testing"
)

func okHandler(payload string) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		return payload, nil
	}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ToolSpec{Name: "press_back", Handler: okHandler("ok")}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	spec, err := r.Resolve("press_back")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if spec.Name != "press_back" {
		t.Errorf("resolved name = %q", spec.Name)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ToolSpec{Name: "tap", Handler: okHandler("")}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(ToolSpec{Name: "tap", Handler: okHandler("")})
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateToolError, got %v", err)
	}
	if dup.Name != "tap" {
		t.Errorf("dup.Name = %q", dup.Name)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("teleport")
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
	if unknown.Name != "teleport" {
		t.Errorf("unknown.Name = %q", unknown.Name)
	}
}

func TestRegistryFreeze(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ToolSpec{Name: "tap", Handler: okHandler("")}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Freeze()

	err := r.Register(ToolSpec{Name: "swipe", Handler: okHandler("")})
	var frozen *FrozenRegistryError
	if !errors.As(err, &frozen) {
		t.Fatalf("expected FrozenRegistryError, got %v", err)
	}

	// Reads keep working after Freeze.
	if _, err := r.Resolve("tap"); err != nil {
		t.Errorf("Resolve after Freeze: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d", r.Count())
	}
}

func TestRegistryDefinitions(t *testing.T) {
	r := NewRegistry()
	minOne := 0.0
	r.MustRegister(ToolSpec{
		Name:        "press",
		Description: "Tap screen coordinates.",
		Params: map[string]ParamSpec{
			"x": {Type: ParamInteger, Required: true, Min: &minOne},
			"y": {Type: ParamInteger, Required: true, Min: &minOne},
		},
		Handler: okHandler(""),
	})
	r.MustRegister(ToolSpec{
		Name:        "scroll",
		Description: "Scroll the screen.",
		Params: map[string]ParamSpec{
			"direction": {Type: ParamString, Required: true, Enum: []string{"up", "down", "left", "right"}},
		},
		Handler: okHandler(""),
	})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions", len(defs))
	}
	// Sorted by name.
	if defs[0].Name != "press" || defs[1].Name != "scroll" {
		t.Errorf("definition order = %q, %q", defs[0].Name, defs[1].Name)
	}

	params := defs[0].Parameters
	if params["type"] != "object" {
		t.Errorf("params type = %v", params["type"])
	}
	required, ok := params["required"].([]string)
	if !ok || len(required) != 2 || required[0] != "x" || required[1] != "y" {
		t.Errorf("required = %v", params["required"])
	}
	props := params["properties"].(map[string]any)
	xProp := props["x"].(map[string]any)
	if xProp["type"] != "integer" {
		t.Errorf("x type = %v", xProp["type"])
	}

	scrollProps := defs[1].Parameters["properties"].(map[string]any)
	dirProp := scrollProps["direction"].(map[string]any)
	enum, ok := dirProp["enum"].([]string)
	if !ok || len(enum) != 4 {
		t.Errorf("enum = %v", dirProp["enum"])
	}
}
