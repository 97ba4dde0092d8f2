package droidtools

import (
	"context"
	"fmt"
	"time"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/device"
)

func registerElementTools(reg *agentloop.Registry, drv *device.Driver) error {
	timeoutParam := agentloop.ParamSpec{
		Type:        agentloop.ParamInteger,
		Description: "How long to wait, in seconds. Default 10.",
	}

	return registerAll(reg, []agentloop.ToolSpec{
		{
			Name:        "click_element",
			Description: "Find a UI element by selector and tap its center.",
			Params:      selectorParams(nil),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				el, err := drv.ClickElement(ctx, selectorFromArgs(args))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("clicked %q at (%d, %d)", el.Name, el.CenterX, el.CenterY), nil
			},
		},
		{
			Name:        "long_click_element",
			Description: "Find a UI element by selector and long press its center.",
			Params:      selectorParams(nil),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				el, err := drv.LongClickElement(ctx, selectorFromArgs(args))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("long clicked %q at (%d, %d)", el.Name, el.CenterX, el.CenterY), nil
			},
		},
		{
			Name:        "set_element_text",
			Description: "Click an input element, clear it and type new text into it.",
			Params: selectorParams(map[string]agentloop.ParamSpec{
				"value": {
					Type:        agentloop.ParamString,
					Description: "The text to enter.",
					Required:    true,
				},
			}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				value := getString(args, "value", "")
				sel := device.Selector{
					Text:       getString(args, "text", ""),
					ResourceID: getString(args, "resource_id", ""),
					Class:      getString(args, "class", ""),
				}
				if err := drv.SetElementText(ctx, sel, value); err != nil {
					return "", err
				}
				return fmt.Sprintf("set text of %s", sel), nil
			},
		},
		{
			Name:        "wait_element",
			Description: "Wait until an element matching the selector appears on screen.",
			Params:      selectorParams(map[string]agentloop.ParamSpec{"timeout_sec": timeoutParam}),
			Timeout:     70 * time.Second,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				timeout := time.Duration(getInt(args, "timeout_sec", 10)) * time.Second
				el, err := drv.WaitElement(ctx, selectorFromArgs(args), timeout)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("element %q appeared at (%d, %d)", el.Name, el.CenterX, el.CenterY), nil
			},
		},
		{
			Name:        "wait_element_gone",
			Description: "Wait until no element matches the selector, e.g. for a dialog to close.",
			Params:      selectorParams(map[string]agentloop.ParamSpec{"timeout_sec": timeoutParam}),
			Timeout:     70 * time.Second,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				timeout := time.Duration(getInt(args, "timeout_sec", 10)) * time.Second
				if err := drv.WaitElementGone(ctx, selectorFromArgs(args), timeout); err != nil {
					return "", err
				}
				return "element gone", nil
			},
		},
		{
			Name:        "scroll_to_element",
			Description: "Scroll down until an element matching the selector becomes visible.",
			Params: selectorParams(map[string]agentloop.ParamSpec{
				"max_scrolls": {
					Type:        agentloop.ParamInteger,
					Description: "Maximum scroll gestures before giving up. Default 10.",
				},
			}),
			Timeout: 60 * time.Second,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				el, err := drv.ScrollToElement(ctx, selectorFromArgs(args), getInt(args, "max_scrolls", 10))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("element %q visible at (%d, %d)", el.Name, el.CenterX, el.CenterY), nil
			},
		},
	})
}
