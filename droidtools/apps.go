package droidtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

func registerAppTools(reg *agentloop.Registry, drv *device.Driver) error {
	pkg := agentloop.ParamSpec{
		Type:        agentloop.ParamString,
		Description: "Android package name (e.g. \"com.android.settings\").",
		Required:    true,
	}

	return registerAll(reg, []agentloop.ToolSpec{
		{
			Name:        "app_start",
			Description: "Launch an app by package name and wait for it to reach the foreground.",
			Params:      map[string]agentloop.ParamSpec{"package": pkg},
			Timeout:     20 * time.Second,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				name := getString(args, "package", "")
				if err := drv.StartApp(ctx, name); err != nil {
					return "", err
				}
				return fmt.Sprintf("started %s", name), nil
			},
		},
		{
			Name:        "app_stop",
			Description: "Force-stop an app.",
			Params:      map[string]agentloop.ParamSpec{"package": pkg},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				name := getString(args, "package", "")
				if err := drv.StopApp(ctx, name); err != nil {
					return "", err
				}
				return fmt.Sprintf("stopped %s", name), nil
			},
		},
		{
			Name:        "app_clear",
			Description: "Clear an app's data, resetting it to a freshly installed state.",
			Params:      map[string]agentloop.ParamSpec{"package": pkg},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				name := getString(args, "package", "")
				if err := drv.ClearApp(ctx, name); err != nil {
					return "", err
				}
				return fmt.Sprintf("cleared data of %s", name), nil
			},
		},
		{
			Name:        "app_current",
			Description: "Report the app currently in the foreground.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				pkg, activity, err := drv.CurrentApp(ctx)
				if err != nil {
					return "", err
				}
				if activity != "" {
					return fmt.Sprintf("%s/%s", pkg, activity), nil
				}
				return pkg, nil
			},
		},
		{
			Name:        "app_info",
			Description: "Report version and target SDK of an installed app.",
			Params:      map[string]agentloop.ParamSpec{"package_name": pkg},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				info, err := drv.AppInfoFor(ctx, getString(args, "package_name", ""))
				if err != nil {
					return "", err
				}
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return "", err
				}
				return string(out), nil
			},
		},
		{
			Name:        "app_list",
			Description: "List installed third-party app package names.",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				packages, err := drv.ListPackages(ctx)
				if err != nil {
					return "", err
				}
				if len(packages) == 0 {
					return "no third-party apps installed", nil
				}
				return strings.Join(packages, "\n"), nil
			},
		},
	})
}
