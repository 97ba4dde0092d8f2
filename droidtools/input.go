package droidtools

import (
	"context"
	"fmt"
	"time"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

func registerInputTools(reg *agentloop.Registry, drv *device.Driver) error {
	return registerAll(reg, []agentloop.ToolSpec{
		{
			Name:        "type_text",
			Description: "Type text into the currently focused input field.",
			Params: map[string]agentloop.ParamSpec{
				"text": {
					Type:        agentloop.ParamString,
					Description: "The text to type.",
					Required:    true,
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				text := getString(args, "text", "")
				if err := drv.TypeText(ctx, text); err != nil {
					return "", err
				}
				return fmt.Sprintf("typed %d characters", len(text)), nil
			},
		},
		{
			Name:        "send_keys",
			Description: "Replace the content of the currently focused input field with the given text.",
			Params: map[string]agentloop.ParamSpec{
				"text": {
					Type:        agentloop.ParamString,
					Description: "The text to set.",
					Required:    true,
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				text := getString(args, "text", "")
				if err := drv.ClearText(ctx); err != nil {
					return "", err
				}
				if err := drv.TypeText(ctx, text); err != nil {
					return "", err
				}
				return fmt.Sprintf("field set to %d characters", len(text)), nil
			},
		},
		{
			Name:        "clear_text",
			Description: "Clear the currently focused input field.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.ClearText(ctx); err != nil {
					return "", err
				}
				return "cleared input field", nil
			},
		},
		{
			Name:        "swipe",
			Description: "Swipe from one coordinate to another.",
			Params: map[string]agentloop.ParamSpec{
				"x1": {Type: agentloop.ParamInteger, Description: "Start X.", Required: true},
				"y1": {Type: agentloop.ParamInteger, Description: "Start Y.", Required: true},
				"x2": {Type: agentloop.ParamInteger, Description: "End X.", Required: true},
				"y2": {Type: agentloop.ParamInteger, Description: "End Y.", Required: true},
				"duration_ms": {
					Type:        agentloop.ParamInteger,
					Description: "Gesture duration in milliseconds. Default 300.",
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				x1, y1 := getInt(args, "x1", 0), getInt(args, "y1", 0)
				x2, y2 := getInt(args, "x2", 0), getInt(args, "y2", 0)
				duration := time.Duration(getInt(args, "duration_ms", 300)) * time.Millisecond
				if err := drv.Swipe(ctx, x1, y1, x2, y2, duration); err != nil {
					return "", err
				}
				return fmt.Sprintf("swiped (%d, %d) -> (%d, %d)", x1, y1, x2, y2), nil
			},
		},
		{
			Name:        "drag",
			Description: "Drag and drop from one coordinate to another. The item under the start point is picked up first.",
			Params: map[string]agentloop.ParamSpec{
				"x1": {Type: agentloop.ParamInteger, Description: "Start X.", Required: true},
				"y1": {Type: agentloop.ParamInteger, Description: "Start Y.", Required: true},
				"x2": {Type: agentloop.ParamInteger, Description: "End X.", Required: true},
				"y2": {Type: agentloop.ParamInteger, Description: "End Y.", Required: true},
				"duration_ms": {
					Type:        agentloop.ParamInteger,
					Description: "Gesture duration in milliseconds. Default 1000.",
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				x1, y1 := getInt(args, "x1", 0), getInt(args, "y1", 0)
				x2, y2 := getInt(args, "x2", 0), getInt(args, "y2", 0)
				duration := time.Duration(getInt(args, "duration_ms", 1000)) * time.Millisecond
				if err := drv.Drag(ctx, x1, y1, x2, y2, duration); err != nil {
					return "", err
				}
				return fmt.Sprintf("dragged (%d, %d) -> (%d, %d)", x1, y1, x2, y2), nil
			},
		},
		{
			Name:        "scroll",
			Description: "Scroll the screen in a direction. Scrolling down reveals content below the current view.",
			Params: map[string]agentloop.ParamSpec{
				"direction": {
					Type:        agentloop.ParamString,
					Description: "Scroll direction.",
					Required:    true,
					Enum:        []string{"up", "down", "left", "right"},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				dir := device.ScrollDirection(getString(args, "direction", "down"))
				if err := drv.Scroll(ctx, dir); err != nil {
					return "", err
				}
				return fmt.Sprintf("scrolled %s", dir), nil
			},
		},
	})
}
