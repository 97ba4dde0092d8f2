package droidtools

import (
	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

// Register adds the full Android tool catalog to the registry. All handlers
// close over the given driver. The caller freezes the registry afterwards.
func Register(reg *agentloop.Registry, drv *device.Driver) error {
	groups := []func(*agentloop.Registry, *device.Driver) error{
		registerNavigationTools,
		registerInputTools,
		registerScreenTools,
		registerAppTools,
		registerElementTools,
		registerSystemTools,
		registerRecordingTools,
	}
	for _, register := range groups {
		if err := register(reg, drv); err != nil {
			return err
		}
	}
	return nil
}

// registerAll registers every spec in order, stopping at the first error.
func registerAll(reg *agentloop.Registry, specs []agentloop.ToolSpec) error {
	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// selectorParams returns the shared element selector parameters merged with
// tool-specific extras. At least one selector field must be provided; the
// driver rejects an empty selector at call time.
func selectorParams(extra map[string]agentloop.ParamSpec) map[string]agentloop.ParamSpec {
	params := map[string]agentloop.ParamSpec{
		"text": {
			Type:        agentloop.ParamString,
			Description: "Case-insensitive substring of the element's text or accessibility name.",
		},
		"resource_id": {
			Type:        agentloop.ParamString,
			Description: "Resource ID, full or suffix (e.g. \"search_bar\").",
		},
		"class": {
			Type:        agentloop.ParamString,
			Description: "Exact widget class name (e.g. \"android.widget.Button\").",
		},
	}
	for name, spec := range extra {
		params[name] = spec
	}
	return params
}
