package droidtools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

func registerScreenTools(reg *agentloop.Registry, drv *device.Driver) error {
	return registerAll(reg, []agentloop.ToolSpec{
		{
			Name:        "take_screenshot",
			Description: "Capture the device screen as a PNG and save it locally. Returns the saved path. Use get_ui_elements_info for machine-readable screen state.",
			Params: map[string]agentloop.ParamSpec{
				"path": {
					Type:        agentloop.ParamString,
					Description: "Destination file path. Default: a timestamped file in the working directory.",
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				data, err := drv.Screenshot(ctx)
				if err != nil {
					return "", err
				}
				path := getString(args, "path", "")
				if path == "" {
					path = fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
				}
				if dir := filepath.Dir(path); dir != "." {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return "", err
					}
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return "", err
				}
				return fmt.Sprintf("screenshot saved to %s (%d bytes)", path, len(data)), nil
			},
		},
		{
			Name:        "get_ui_elements_info",
			Description: "List every interactive UI element on the current screen with its name, coordinates and properties. The primary observation tool.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				elements, err := drv.Elements(ctx)
				if err != nil {
					return "", err
				}
				if len(elements) == 0 {
					return "no interactive elements on screen", nil
				}
				out, err := json.MarshalIndent(elements, "", "  ")
				if err != nil {
					return "", err
				}
				return string(out), nil
			},
		},
		{
			Name:        "get_device_dimensions",
			Description: "Get the device screen dimensions in pixels.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				w, h := drv.ScreenSize()
				return fmt.Sprintf(`{"width": %d, "height": %d}`, w, h), nil
			},
		},
		{
			Name:        "get_orientation",
			Description: "Get the current screen orientation.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return drv.Orientation(ctx)
			},
		},
		{
			Name:        "list_devices",
			Description: "List connected devices and emulators with their serials and states.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				entries, err := device.ListDevices(ctx, drv.ADB().Path())
				if err != nil {
					return "", err
				}
				if len(entries) == 0 {
					return "no devices connected", nil
				}
				lines := make([]string, len(entries))
				for i, e := range entries {
					lines[i] = fmt.Sprintf("%s\t%s\t%s", e.Serial, e.State, e.Kind)
				}
				return strings.Join(lines, "\n"), nil
			},
		},
	})
}
