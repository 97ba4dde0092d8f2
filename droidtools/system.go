package droidtools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

func registerSystemTools(reg *agentloop.Registry, drv *device.Driver) error {
	return registerAll(reg, []agentloop.ToolSpec{
		{
			Name:        "screen_on",
			Description: "Wake the device screen.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.ScreenOn(ctx); err != nil {
					return "", err
				}
				return "screen on", nil
			},
		},
		{
			Name:        "screen_off",
			Description: "Turn the device screen off.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.ScreenOff(ctx); err != nil {
					return "", err
				}
				return "screen off", nil
			},
		},
		{
			Name:        "unlock",
			Description: "Wake the device and dismiss a swipe lock screen. Does not enter PINs or passwords.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.Unlock(ctx); err != nil {
					return "", err
				}
				return "unlocked", nil
			},
		},
		{
			Name:        "set_clipboard",
			Description: "Set the device clipboard content.",
			Params: map[string]agentloop.ParamSpec{
				"text": {
					Type:        agentloop.ParamString,
					Description: "The text to place on the clipboard.",
					Required:    true,
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.SetClipboard(ctx, getString(args, "text", "")); err != nil {
					return "", err
				}
				return "clipboard set", nil
			},
		},
		{
			Name:        "get_clipboard",
			Description: "Read the device clipboard content.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				text, err := drv.GetClipboard(ctx)
				if err != nil {
					return "", err
				}
				if text == "" {
					return "clipboard is empty", nil
				}
				return text, nil
			},
		},
		{
			Name:        "set_orientation",
			Description: "Rotate the screen and lock it in that orientation.",
			Params: map[string]agentloop.ParamSpec{
				"orientation": {
					Type:        agentloop.ParamString,
					Description: "Target orientation.",
					Required:    true,
					Enum:        []string{"natural", "left", "right", "upsidedown"},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				orientation := getString(args, "orientation", "natural")
				if err := drv.SetOrientation(ctx, orientation); err != nil {
					return "", err
				}
				return fmt.Sprintf("orientation set to %s", orientation), nil
			},
		},
		{
			Name:        "hide_keyboard",
			Description: "Dismiss the on-screen keyboard if it is shown.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				hidden, err := drv.HideKeyboard(ctx)
				if err != nil {
					return "", err
				}
				if !hidden {
					return "keyboard was not shown", nil
				}
				return "keyboard hidden", nil
			},
		},
		{
			Name:        "open_notification",
			Description: "Pull down the notification shade.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.OpenNotification(ctx); err != nil {
					return "", err
				}
				return "notification shade open", nil
			},
		},
		{
			Name:        "open_quick_settings",
			Description: "Open the quick settings panel.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.OpenQuickSettings(ctx); err != nil {
					return "", err
				}
				return "quick settings open", nil
			},
		},
		{
			Name:        "shell",
			Description: "Run a shell command on the device and return its output. Use sparingly, for reads the other tools do not cover.",
			Params: map[string]agentloop.ParamSpec{
				"command": {
					Type:        agentloop.ParamString,
					Description: "The shell command to run.",
					Required:    true,
				},
			},
			Timeout: 60 * time.Second,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				out, err := drv.ADB().Shell(ctx, strings.Fields(getString(args, "command", ""))...)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(out) == "" {
					return "(no output)", nil
				}
				return out, nil
			},
		},
	})
}
