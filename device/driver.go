package device

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Driver is the high-level device handle tool handlers work against. It
// combines the adb transport with the on-device agent and owns the
// exclusive lease.
type Driver struct {
	adb   *ADB
	agent *AgentClient
	lease *Lease

	width  int
	height int

	rec recorder
}

// Config configures a device connection.
type Config struct {
	ADBPath  string // adb binary, default "adb"
	Serial   string // device serial, empty for the single connected device
	AgentURL string // on-device agent base URL, default http://localhost:7912
}

// Open connects to the device, verifies both transports, and acquires the
// exclusive lease. It returns ErrDeviceBusy if another session holds the
// device.
func Open(ctx context.Context, cfg Config, lease *Lease) (*Driver, error) {
	if lease == nil {
		lease = NewLease()
	}
	if err := lease.Acquire(); err != nil {
		return nil, err
	}

	adb := NewADB(cfg.ADBPath, cfg.Serial)
	if err := adb.Validate(ctx); err != nil {
		lease.Release()
		return nil, err
	}

	agentURL := cfg.AgentURL
	if agentURL == "" {
		agentURL = fmt.Sprintf("http://localhost:%d", AgentPort)
	}
	agent := NewAgentClient(agentURL)

	d := &Driver{adb: adb, agent: agent, lease: lease}
	w, h, err := adb.ScreenSize(ctx)
	if err != nil {
		lease.Release()
		return nil, err
	}
	d.width, d.height = w, h
	return d, nil
}

// Close releases the device lease.
func (d *Driver) Close() error {
	d.lease.Release()
	return nil
}

// ADB exposes the raw adb transport for shell-level tools.
func (d *Driver) ADB() *ADB { return d.adb }

// Agent exposes the on-device agent client.
func (d *Driver) Agent() *AgentClient { return d.agent }

// ScreenSize returns the cached display dimensions.
func (d *Driver) ScreenSize() (width, height int) {
	return d.width, d.height
}

// Info fetches structured device info from the agent.
func (d *Driver) Info(ctx context.Context) (*DeviceInfo, error) {
	return d.agent.Info(ctx)
}

// Tap taps screen coordinates, rejecting points outside the display.
func (d *Driver) Tap(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 || x >= d.width || y >= d.height {
		return &InvalidStateError{
			Op:     "tap",
			Detail: fmt.Sprintf("(%d,%d) outside %dx%d screen", x, y, d.width, d.height),
		}
	}
	return d.adb.Tap(ctx, x, y)
}

// DoubleClick taps the same point twice in quick succession.
func (d *Driver) DoubleClick(ctx context.Context, x, y int) error {
	if err := d.Tap(ctx, x, y); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return d.Tap(ctx, x, y)
}

// LongPress holds a point for duration (default 1s).
func (d *Driver) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	if duration <= 0 {
		duration = time.Second
	}
	return d.adb.LongPress(ctx, x, y, duration)
}

// Swipe drags between two points.
func (d *Driver) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	if duration <= 0 {
		duration = 300 * time.Millisecond
	}
	return d.adb.Swipe(ctx, x1, y1, x2, y2, duration)
}

// Drag performs a drag-and-drop gesture between two points. The element
// under the start point is picked up, so the duration should be long enough
// for the long-press threshold.
func (d *Driver) Drag(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	if duration <= 0 {
		duration = 1000 * time.Millisecond
	}
	return d.adb.Drag(ctx, x1, y1, x2, y2, duration)
}

// ScrollDirection names a scroll gesture.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Scroll performs one screen-relative scroll gesture. Scrolling down moves
// the content up, matching user expectation.
func (d *Driver) Scroll(ctx context.Context, dir ScrollDirection) error {
	cx, cy := d.width/2, d.height/2
	quarterY, quarterX := d.height/4, d.width/4
	switch dir {
	case ScrollDown:
		return d.Swipe(ctx, cx, cy+quarterY, cx, cy-quarterY, 300*time.Millisecond)
	case ScrollUp:
		return d.Swipe(ctx, cx, cy-quarterY, cx, cy+quarterY, 300*time.Millisecond)
	case ScrollLeft:
		return d.Swipe(ctx, cx-quarterX, cy, cx+quarterX, cy, 300*time.Millisecond)
	case ScrollRight:
		return d.Swipe(ctx, cx+quarterX, cy, cx-quarterX, cy, 300*time.Millisecond)
	default:
		return &InvalidStateError{Op: "scroll", Detail: "unknown direction " + string(dir)}
	}
}

// PressBack sends the back key.
func (d *Driver) PressBack(ctx context.Context) error {
	return d.adb.KeyEvent(ctx, KeyBack)
}

// PressHome sends the home key.
func (d *Driver) PressHome(ctx context.Context) error {
	return d.adb.KeyEvent(ctx, KeyHome)
}

// PressRecents opens the app switcher.
func (d *Driver) PressRecents(ctx context.Context) error {
	return d.adb.KeyEvent(ctx, KeyAppSwitch)
}

// PressEnter sends the enter key.
func (d *Driver) PressEnter(ctx context.Context) error {
	return d.adb.KeyEvent(ctx, KeyEnter)
}

// TypeText types into the focused field.
func (d *Driver) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return d.adb.InputText(ctx, text)
}

// ClearText clears the focused input field.
func (d *Driver) ClearText(ctx context.Context) error {
	return d.agent.ClearText(ctx)
}

// Screenshot captures the screen as PNG bytes.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := d.adb.Screencap(ctx)
	if err != nil {
		return nil, err
	}
	if len(png) == 0 {
		return nil, &InvalidStateError{Op: "screenshot", Detail: "empty capture"}
	}
	return png, nil
}

// Elements dumps the hierarchy and returns the interactive elements.
func (d *Driver) Elements(ctx context.Context) ([]Element, error) {
	xmlDump, err := d.agent.DumpHierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return ParseHierarchy(xmlDump)
}

// FindElement locates the first on-screen element matching the selector.
func (d *Driver) FindElement(ctx context.Context, sel Selector) (Element, error) {
	if sel.Empty() {
		return Element{}, &InvalidStateError{Op: "find_element", Detail: "empty selector"}
	}
	elements, err := d.Elements(ctx)
	if err != nil {
		return Element{}, err
	}
	el, ok := FindElement(elements, sel)
	if !ok {
		return Element{}, &ElementNotFoundError{Selector: sel}
	}
	return el, nil
}

// ClickElement taps the center of the first matching element.
func (d *Driver) ClickElement(ctx context.Context, sel Selector) (Element, error) {
	el, err := d.FindElement(ctx, sel)
	if err != nil {
		return Element{}, err
	}
	return el, d.Tap(ctx, el.CenterX, el.CenterY)
}

// LongClickElement long-presses the first matching element.
func (d *Driver) LongClickElement(ctx context.Context, sel Selector) (Element, error) {
	el, err := d.FindElement(ctx, sel)
	if err != nil {
		return Element{}, err
	}
	return el, d.LongPress(ctx, el.CenterX, el.CenterY, time.Second)
}

// SetElementText clicks the matching field, clears it, and types the text.
func (d *Driver) SetElementText(ctx context.Context, sel Selector, text string) error {
	if _, err := d.ClickElement(ctx, sel); err != nil {
		return err
	}
	if err := d.ClearText(ctx); err != nil {
		return err
	}
	return d.TypeText(ctx, text)
}

// WaitElement polls until an element matching the selector appears or the
// timeout elapses.
func (d *Driver) WaitElement(ctx context.Context, sel Selector, timeout time.Duration) (Element, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		el, err := d.FindElement(ctx, sel)
		if err == nil {
			return el, nil
		}
		if IsUnavailable(err) {
			return Element{}, err
		}
		if time.Now().After(deadline) {
			return Element{}, &ElementNotFoundError{Selector: sel}
		}
		select {
		case <-ctx.Done():
			return Element{}, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// WaitElementGone polls until no element matches the selector.
func (d *Driver) WaitElementGone(ctx context.Context, sel Selector, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		_, err := d.FindElement(ctx, sel)
		if err != nil {
			if IsUnavailable(err) {
				return err
			}
			return nil // not found means gone
		}
		if time.Now().After(deadline) {
			return &InvalidStateError{Op: "wait_element_gone", Detail: sel.String() + " still present"}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// ScrollToElement scrolls down repeatedly until the element appears.
func (d *Driver) ScrollToElement(ctx context.Context, sel Selector, maxScrolls int) (Element, error) {
	if maxScrolls <= 0 {
		maxScrolls = 10
	}
	for i := 0; i <= maxScrolls; i++ {
		el, err := d.FindElement(ctx, sel)
		if err == nil {
			return el, nil
		}
		if IsUnavailable(err) {
			return Element{}, err
		}
		if i == maxScrolls {
			break
		}
		if err := d.Scroll(ctx, ScrollDown); err != nil {
			return Element{}, err
		}
		select {
		case <-ctx.Done():
			return Element{}, ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
	}
	return Element{}, &ElementNotFoundError{Selector: sel}
}

// StartApp launches an app and waits briefly for it to come to the front.
func (d *Driver) StartApp(ctx context.Context, pkg string) error {
	if err := d.adb.StartApp(ctx, pkg); err != nil {
		return err
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		current, _, err := d.adb.CurrentApp(ctx)
		if err == nil && current == pkg {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return &InvalidStateError{Op: "app_start", Detail: pkg + " did not reach foreground"}
}

// StopApp force-stops an app.
func (d *Driver) StopApp(ctx context.Context, pkg string) error {
	return d.adb.StopApp(ctx, pkg)
}

// ClearApp wipes an app's data.
func (d *Driver) ClearApp(ctx context.Context, pkg string) error {
	return d.adb.ClearApp(ctx, pkg)
}

// CurrentApp reports the foreground package and activity.
func (d *Driver) CurrentApp(ctx context.Context) (pkg, activity string, err error) {
	return d.adb.CurrentApp(ctx)
}

// ListPackages lists installed third-party packages.
func (d *Driver) ListPackages(ctx context.Context) ([]string, error) {
	return d.adb.ListPackages(ctx)
}

// AppInfo summarizes one installed package.
type AppInfo struct {
	Package     string `json:"package"`
	VersionName string `json:"version_name,omitempty"`
	VersionCode string `json:"version_code,omitempty"`
	TargetSdk   string `json:"target_sdk,omitempty"`
}

// AppInfoFor reads package details from the package manager.
func (d *Driver) AppInfoFor(ctx context.Context, pkg string) (*AppInfo, error) {
	out, err := d.adb.Shell(ctx, "dumpsys", "package", pkg)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, "Package ["+pkg+"]") {
		return nil, &InvalidStateError{Op: "app_info", Detail: "package not installed: " + pkg}
	}
	info := &AppInfo{Package: pkg}
	for _, line := range strings.Split(out, "\n") {
		for _, field := range strings.Fields(line) {
			switch {
			case strings.HasPrefix(field, "versionName="):
				info.VersionName = strings.TrimPrefix(field, "versionName=")
			case strings.HasPrefix(field, "versionCode="):
				info.VersionCode = strings.TrimPrefix(field, "versionCode=")
			case strings.HasPrefix(field, "targetSdk="):
				info.TargetSdk = strings.TrimPrefix(field, "targetSdk=")
			}
		}
	}
	return info, nil
}

// ScreenOn wakes the display.
func (d *Driver) ScreenOn(ctx context.Context) error {
	return d.adb.KeyEvent(ctx, KeyWakeup)
}

// ScreenOff puts the display to sleep.
func (d *Driver) ScreenOff(ctx context.Context) error {
	return d.adb.KeyEvent(ctx, KeyPower)
}

// Unlock wakes the device and swipes up to dismiss an unsecured lockscreen.
func (d *Driver) Unlock(ctx context.Context) error {
	if err := d.ScreenOn(ctx); err != nil {
		return err
	}
	return d.Swipe(ctx, d.width/2, d.height*3/4, d.width/2, d.height/4, 200*time.Millisecond)
}

// SetClipboard puts text on the device clipboard.
func (d *Driver) SetClipboard(ctx context.Context, text string) error {
	return d.agent.SetClipboard(ctx, text)
}

// GetClipboard reads the device clipboard.
func (d *Driver) GetClipboard(ctx context.Context) (string, error) {
	return d.agent.GetClipboard(ctx)
}

// OpenNotification pulls down the notification shade.
func (d *Driver) OpenNotification(ctx context.Context) error {
	return d.agent.OpenNotification(ctx)
}

// OpenQuickSettings pulls down the quick settings panel.
func (d *Driver) OpenQuickSettings(ctx context.Context) error {
	return d.agent.OpenQuickSettings(ctx)
}

// Orientation reads the current rotation as a user-facing word.
func (d *Driver) Orientation(ctx context.Context) (string, error) {
	out, err := d.adb.Shell(ctx, "settings", "get", "system", "user_rotation")
	if err != nil {
		return "", err
	}
	switch strings.TrimSpace(out) {
	case "0":
		return "natural", nil
	case "1":
		return "left", nil
	case "2":
		return "upsidedown", nil
	case "3":
		return "right", nil
	default:
		return "unknown", nil
	}
}

// SetOrientation rotates the display and pins it by turning the
// accelerometer rotation off, the same thing the rotation-lock tile does.
func (d *Driver) SetOrientation(ctx context.Context, orientation string) error {
	var rotation string
	switch orientation {
	case "natural", "n":
		rotation = "0"
	case "left", "l":
		rotation = "1"
	case "upsidedown", "u":
		rotation = "2"
	case "right", "r":
		rotation = "3"
	default:
		return &InvalidStateError{Op: "set_orientation", Detail: "unknown orientation " + orientation}
	}
	if _, err := d.adb.Shell(ctx, "settings", "put", "system", "accelerometer_rotation", "0"); err != nil {
		return err
	}
	_, err := d.adb.Shell(ctx, "settings", "put", "system", "user_rotation", rotation)
	return err
}

// HideKeyboard dismisses the soft keyboard. It reports whether a keyboard
// was actually shown.
func (d *Driver) HideKeyboard(ctx context.Context) (bool, error) {
	out, err := d.adb.Shell(ctx, "dumpsys", "input_method")
	if err != nil {
		return false, err
	}
	if !strings.Contains(out, "mInputShown=true") {
		return false, nil
	}
	if err := d.adb.KeyEvent(ctx, KeyEscape); err != nil {
		return false, err
	}
	return true, nil
}
