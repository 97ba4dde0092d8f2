package droidtools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

func registerRecordingTools(reg *agentloop.Registry, drv *device.Driver) error {
	return registerAll(reg, []agentloop.ToolSpec{
		{
			Name:        "record_video",
			Description: "Start recording the device screen. Only one recording can run at a time; stop it with stop_video.",
			Params: map[string]agentloop.ParamSpec{
				"bit_rate": {
					Type:        agentloop.ParamString,
					Description: "Video bit rate (e.g. \"8M\"). Default 8M.",
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				if err := drv.StartRecording(ctx, getString(args, "bit_rate", "")); err != nil {
					return "", err
				}
				return "recording started", nil
			},
		},
		{
			Name:        "stop_video",
			Description: "Stop the screen recording and save it locally. Returns the saved path.",
			Timeout:     60 * time.Second,
			Params: map[string]agentloop.ParamSpec{
				"path": {
					Type:        agentloop.ParamString,
					Description: "Destination file path. Default: a timestamped .mp4 in the working directory.",
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				path := getString(args, "path", "")
				if path == "" {
					path = fmt.Sprintf("recording_%s.mp4", time.Now().Format("20060102_150405"))
				}
				if dir := filepath.Dir(path); dir != "." {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return "", err
					}
				}
				if err := drv.StopRecording(ctx, path); err != nil {
					return "", err
				}
				return fmt.Sprintf("recording saved to %s", path), nil
			},
		},
	})
}
