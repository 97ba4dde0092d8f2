package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

// AgentPort is the port the on-device automation agent listens on. It is
// usually reached through an adb port forward.
const AgentPort = 7912

// AgentClient talks to the uiautomator agent running on the device. adb
// covers raw input and shell access; the agent provides what adb cannot do
// well: accessibility hierarchy dumps, structured device info, and the
// clipboard.
type AgentClient struct {
	http  *resty.Client
	rpcID atomic.Int64
}

// NewAgentClient creates a client for the agent at baseURL, for example
// http://localhost:7912 after an adb forward.
func NewAgentClient(baseURL string) *AgentClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &AgentClient{http: client}
}

// DeviceInfo describes the connected device as reported by the agent.
type DeviceInfo struct {
	Serial        string `json:"serial"`
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Version       string `json:"version"`
	SDK           int    `json:"sdk"`
	DisplayWidth  int    `json:"display_width"`
	DisplayHeight int    `json:"display_height"`
}

// Info fetches device information. Failure here means the agent is not
// reachable, which counts as the device being unavailable.
func (c *AgentClient) Info(ctx context.Context) (*DeviceInfo, error) {
	var info struct {
		Serial  string `json:"serial"`
		Brand   string `json:"brand"`
		Model   string `json:"model"`
		Version string `json:"version"`
		SDK     int    `json:"sdk"`
		Display struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"display"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&info).
		Get("/info")
	if err != nil {
		return nil, &UnavailableError{Cause: fmt.Errorf("agent info: %w", err)}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UnavailableError{Cause: fmt.Errorf("agent info: status %d", resp.StatusCode())}
	}
	return &DeviceInfo{
		Serial:        info.Serial,
		Brand:         info.Brand,
		Model:         info.Model,
		Version:       info.Version,
		SDK:           info.SDK,
		DisplayWidth:  info.Display.Width,
		DisplayHeight: info.Display.Height,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs one JSON-RPC call against the agent's uiautomator bridge.
func (c *AgentClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.rpcID.Add(1),
		Method:  method,
		Params:  params,
	}
	var rpcResp rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&rpcResp).
		Post("/jsonrpc/0")
	if err != nil {
		return nil, &UnavailableError{Cause: fmt.Errorf("agent rpc %s: %w", method, err)}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UnavailableError{Cause: fmt.Errorf("agent rpc %s: status %d", method, resp.StatusCode())}
	}
	if rpcResp.Error != nil {
		return nil, &InvalidStateError{Op: method, Detail: rpcResp.Error.Message}
	}
	return rpcResp.Result, nil
}

// DumpHierarchy returns the current accessibility hierarchy as XML.
func (c *AgentClient) DumpHierarchy(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "dumpWindowHierarchy", false, 50)
	if err != nil {
		return "", err
	}
	var xmlDump string
	if err := json.Unmarshal(raw, &xmlDump); err != nil {
		return "", fmt.Errorf("hierarchy dump: %w", err)
	}
	return xmlDump, nil
}

// SetClipboard puts text on the device clipboard.
func (c *AgentClient) SetClipboard(ctx context.Context, text string) error {
	_, err := c.call(ctx, "setClipboard", nil, text)
	return err
}

// GetClipboard reads the device clipboard.
func (c *AgentClient) GetClipboard(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "getClipboard")
	if err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("clipboard: %w", err)
	}
	return text, nil
}

// ClearText clears the focused input field through the accessibility layer,
// which is reliable where repeated KEYCODE_DEL is not.
func (c *AgentClient) ClearText(ctx context.Context) error {
	_, err := c.call(ctx, "clearTextField")
	return err
}

// OpenNotification pulls down the notification shade.
func (c *AgentClient) OpenNotification(ctx context.Context) error {
	raw, err := c.call(ctx, "openNotification")
	if err != nil {
		return err
	}
	return expectTrue(raw, "open_notification")
}

// OpenQuickSettings pulls down the quick settings panel.
func (c *AgentClient) OpenQuickSettings(ctx context.Context) error {
	raw, err := c.call(ctx, "openQuickSettings")
	if err != nil {
		return err
	}
	return expectTrue(raw, "open_quick_settings")
}

func expectTrue(raw json.RawMessage, op string) error {
	var ok bool
	if err := json.Unmarshal(raw, &ok); err == nil && !ok {
		return &InvalidStateError{Op: op, Detail: "agent reported failure"}
	}
	return nil
}
