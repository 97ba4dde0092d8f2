package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// keycodes understood by "input keyevent".
const (
	KeyBack       = "KEYCODE_BACK"
	KeyHome       = "KEYCODE_HOME"
	KeyAppSwitch  = "KEYCODE_APP_SWITCH"
	KeyEnter      = "KEYCODE_ENTER"
	KeyDel        = "KEYCODE_DEL"
	KeyPower      = "KEYCODE_POWER"
	KeyWakeup     = "KEYCODE_WAKEUP"
	KeyVolumeUp   = "KEYCODE_VOLUME_UP"
	KeyVolumeDown = "KEYCODE_VOLUME_DOWN"
	KeyMoveEnd    = "KEYCODE_MOVE_END"
	KeyEscape     = "KEYCODE_ESCAPE"
)

// ADB runs adb commands against one device. All commands inherit the
// caller's context; a dead transport surfaces as UnavailableError.
type ADB struct {
	path   string // adb binary, default "adb"
	serial string // target device, empty means default device
}

// NewADB creates an adb transport for the given device serial. An empty
// serial targets the single connected device.
func NewADB(adbPath, serial string) *ADB {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &ADB{path: adbPath, serial: serial}
}

// Serial returns the target device serial, which may be empty.
func (a *ADB) Serial() string { return a.serial }

// Path returns the adb binary path.
func (a *ADB) Path() string { return a.path }

// Validate checks that the adb binary is present and responding.
func (a *ADB) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.run(ctx, "version"); err != nil {
		return &UnavailableError{Cause: fmt.Errorf("adb not available: %w", err)}
	}
	return nil
}

// run executes one adb command and returns its stdout.
func (a *ADB) run(ctx context.Context, args ...string) ([]byte, error) {
	full := make([]string, 0, len(args)+2)
	if a.serial != "" {
		full = append(full, "-s", a.serial)
	}
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, a.path, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if strings.Contains(msg, "device offline") ||
			strings.Contains(msg, "device not found") ||
			strings.Contains(msg, "no devices") {
			return nil, &UnavailableError{Serial: a.serial, Cause: fmt.Errorf("%s", msg)}
		}
		return nil, fmt.Errorf("adb %s: %s", args[0], msg)
	}
	return stdout.Bytes(), nil
}

// Shell runs a shell command on the device and returns trimmed output.
func (a *ADB) Shell(ctx context.Context, args ...string) (string, error) {
	out, err := a.run(ctx, append([]string{"shell"}, args...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Tap sends a tap at screen coordinates.
func (a *ADB) Tap(ctx context.Context, x, y int) error {
	_, err := a.Shell(ctx, "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// Swipe drags from (x1,y1) to (x2,y2) over the given duration.
func (a *ADB) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	_, err := a.Shell(ctx, "input", "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(int(duration.Milliseconds())))
	return err
}

// LongPress holds a point for the given duration, implemented as a
// zero-distance swipe.
func (a *ADB) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	return a.Swipe(ctx, x, y, x, y, duration)
}

// Drag performs a drag-and-drop gesture between two points.
func (a *ADB) Drag(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) error {
	_, err := a.Shell(ctx, "input", "draganddrop",
		strconv.Itoa(x1), strconv.Itoa(y1),
		strconv.Itoa(x2), strconv.Itoa(y2),
		strconv.Itoa(int(duration.Milliseconds())))
	return err
}

// KeyEvent sends a keyevent by keycode name.
func (a *ADB) KeyEvent(ctx context.Context, keycode string) error {
	_, err := a.Shell(ctx, "input", "keyevent", keycode)
	return err
}

// InputText types text into the focused field. Spaces are escaped the way
// "input text" requires.
func (a *ADB) InputText(ctx context.Context, text string) error {
	_, err := a.Shell(ctx, "input", "text", strings.ReplaceAll(text, " ", "%s"))
	return err
}

// Screencap captures the screen as PNG bytes via exec-out, which keeps the
// image binary-safe.
func (a *ADB) Screencap(ctx context.Context) ([]byte, error) {
	return a.run(ctx, "exec-out", "screencap", "-p")
}

var wmSizeRe = regexp.MustCompile(`(\d+)x(\d+)`)

// ScreenSize returns the physical display dimensions.
func (a *ADB) ScreenSize(ctx context.Context) (width, height int, err error) {
	out, err := a.Shell(ctx, "wm", "size")
	if err != nil {
		return 0, 0, err
	}
	m := wmSizeRe.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, fmt.Errorf("unparseable wm size output: %q", out)
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	return width, height, nil
}

// StartApp launches an app's main launcher activity via monkey.
func (a *ADB) StartApp(ctx context.Context, pkg string) error {
	out, err := a.Shell(ctx, "monkey", "-p", pkg,
		"-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return err
	}
	if strings.Contains(out, "No activities found") {
		return &InvalidStateError{Op: "app_start", Detail: "app not installed: " + pkg}
	}
	return nil
}

// StopApp force-stops an app.
func (a *ADB) StopApp(ctx context.Context, pkg string) error {
	_, err := a.Shell(ctx, "am", "force-stop", pkg)
	return err
}

// ClearApp clears an app's data and cache.
func (a *ADB) ClearApp(ctx context.Context, pkg string) error {
	out, err := a.Shell(ctx, "pm", "clear", pkg)
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Success") {
		return &InvalidStateError{Op: "app_clear", Detail: out}
	}
	return nil
}

var currentFocusRe = regexp.MustCompile(`([A-Za-z][\w.]*)/([\w.$]+)`)

// CurrentApp returns the package and activity of the focused window.
func (a *ADB) CurrentApp(ctx context.Context) (pkg, activity string, err error) {
	out, err := a.Shell(ctx, "dumpsys", "window", "displays")
	if err != nil {
		return "", "", err
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "mCurrentFocus") && !strings.Contains(line, "mFocusedApp") {
			continue
		}
		if m := currentFocusRe.FindStringSubmatch(line); m != nil {
			return m[1], m[2], nil
		}
	}
	return "", "", &InvalidStateError{Op: "app_current", Detail: "no focused window"}
}

// ListPackages lists installed third-party packages.
func (a *ADB) ListPackages(ctx context.Context) ([]string, error) {
	out, err := a.Shell(ctx, "pm", "list", "packages", "-3")
	if err != nil {
		return nil, err
	}
	var pkgs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "package:"))
		if line != "" {
			pkgs = append(pkgs, line)
		}
	}
	return pkgs, nil
}

// GetProp reads a system property.
func (a *ADB) GetProp(ctx context.Context, name string) (string, error) {
	return a.Shell(ctx, "getprop", name)
}

// StartShell starts a long-running device shell command without waiting for
// it. The caller owns the returned process and must Wait on it after
// stopping it.
func (a *ADB) StartShell(args ...string) (*exec.Cmd, error) {
	full := make([]string, 0, len(args)+3)
	if a.serial != "" {
		full = append(full, "-s", a.serial)
	}
	full = append(full, "shell")
	full = append(full, args...)

	cmd := exec.Command(a.path, full...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("adb shell %s: %w", args[0], err)
	}
	return cmd, nil
}

// Pull copies a file from the device to the local filesystem.
func (a *ADB) Pull(ctx context.Context, remote, local string) error {
	_, err := a.run(ctx, "pull", remote, local)
	return err
}

// Forward maps a local TCP port to a device TCP port.
func (a *ADB) Forward(ctx context.Context, localPort, devicePort int) error {
	_, err := a.run(ctx, "forward",
		fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", devicePort))
	return err
}

// DeviceEntry is one row of "adb devices".
type DeviceEntry struct {
	Serial string
	State  string
	Kind   string // "emulator" or "device"
}

// ListDevices enumerates connected devices and emulators.
func ListDevices(ctx context.Context, adbPath string) ([]DeviceEntry, error) {
	a := NewADB(adbPath, "")
	out, err := a.run(ctx, "devices")
	if err != nil {
		return nil, err
	}
	var entries []DeviceEntry
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for _, line := range lines[1:] { // first line is the header
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kind := "device"
		if strings.HasPrefix(fields[0], "emulator-") {
			kind = "emulator"
		}
		entries = append(entries, DeviceEntry{Serial: fields[0], State: fields[1], Kind: kind})
	}
	return entries, nil
}
