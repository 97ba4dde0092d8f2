package droidtools

import (
	"context"
	"fmt"
	"time"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

func registerNavigationTools(reg *agentloop.Registry, drv *device.Driver) error {
	coordMin := 0.0
	coord := func(desc string) agentloop.ParamSpec {
		return agentloop.ParamSpec{
			Type:        agentloop.ParamInteger,
			Description: desc,
			Required:    true,
			Min:         &coordMin,
		}
	}

	return registerAll(reg, []agentloop.ToolSpec{
		{
			Name:        "press",
			Description: "Tap specific screen coordinates. Use coordinates from the UI element info to tap a specific item.",
			Params: map[string]agentloop.ParamSpec{
				"x": coord("X coordinate to tap."),
				"y": coord("Y coordinate to tap."),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				x, y := getInt(args, "x", 0), getInt(args, "y", 0)
				if err := drv.Tap(ctx, x, y); err != nil {
					return "", err
				}
				return fmt.Sprintf("tapped (%d, %d)", x, y), nil
			},
		},
		{
			Name:        "double_click",
			Description: "Double tap specific screen coordinates.",
			Params: map[string]agentloop.ParamSpec{
				"x": coord("X coordinate to tap."),
				"y": coord("Y coordinate to tap."),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				x, y := getInt(args, "x", 0), getInt(args, "y", 0)
				if err := drv.DoubleClick(ctx, x, y); err != nil {
					return "", err
				}
				return fmt.Sprintf("double tapped (%d, %d)", x, y), nil
			},
		},
		{
			Name:        "long_press",
			Description: "Long press on specific coordinates.",
			Params: map[string]agentloop.ParamSpec{
				"x": coord("X coordinate."),
				"y": coord("Y coordinate."),
				"duration_ms": {
					Type:        agentloop.ParamInteger,
					Description: "Press duration in milliseconds. Default 1000.",
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				x, y := getInt(args, "x", 0), getInt(args, "y", 0)
				duration := time.Duration(getInt(args, "duration_ms", 1000)) * time.Millisecond
				if err := drv.LongPress(ctx, x, y, duration); err != nil {
					return "", err
				}
				return fmt.Sprintf("long pressed (%d, %d) for %s", x, y, duration), nil
			},
		},
		{
			Name:        "press_back",
			Description: "Press the Android back button.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.PressBack(ctx); err != nil {
					return "", err
				}
				return "pressed back", nil
			},
		},
		{
			Name:        "press_home",
			Description: "Press the home button, returning to the launcher.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.PressHome(ctx); err != nil {
					return "", err
				}
				return "pressed home", nil
			},
		},
		{
			Name:        "press_recents",
			Description: "Open the recent apps overview.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.PressRecents(ctx); err != nil {
					return "", err
				}
				return "opened recents", nil
			},
		},
		{
			Name:        "press_enter",
			Description: "Press the enter key, typically to submit the focused input field.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.PressEnter(ctx); err != nil {
					return "", err
				}
				return "pressed enter", nil
			},
		},
	})
}
