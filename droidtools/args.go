// Package droidtools registers the Android device tool catalog. Every tool
// wraps one device.Driver operation; argument schemas are validated by the
// executor before handlers run.
package droidtools

import (
	"github.com/droidpilot/droidpilot/device"
)

// getString extracts a string argument, falling back to def when absent.
func getString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

// getInt extracts an integer argument, falling back to def when absent.
// JSON numbers decode as float64.
func getInt(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

// getBool extracts a boolean argument, falling back to def when absent.
func getBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// selectorFromArgs builds an element selector from the shared selector
// parameters (text, resource_id, class).
func selectorFromArgs(args map[string]any) device.Selector {
	return device.Selector{
		Text:       getString(args, "text", ""),
		ResourceID: getString(args, "resource_id", ""),
		Class:      getString(args, "class", ""),
	}
}
