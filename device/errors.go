// Package device provides the Android device binding: an adb command
// transport, an HTTP client for the on-device automation agent, UI
// hierarchy parsing, and an exclusive-lease driver exposing interaction
// primitives.
package device

import (
	"errors"
	"fmt"
)

// ErrDeviceBusy is returned when a session already holds the device lease.
var ErrDeviceBusy = errors.New("device is held by another session")

// UnavailableError means the device dropped off: adb cannot reach it, the
// transport returned an offline status, or the automation agent stopped
// responding. It is not recoverable within a session.
type UnavailableError struct {
	Serial string
	Cause  error
}

func (e *UnavailableError) Error() string {
	if e.Serial != "" {
		return fmt.Sprintf("device %s unavailable: %v", e.Serial, e.Cause)
	}
	return fmt.Sprintf("device unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// InvalidStateError means the operation was valid but the current screen
// state rejected it, for example clicking an element that is not on screen.
// A retry after the screen changes may succeed.
type InvalidStateError struct {
	Op     string
	Detail string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// ElementNotFoundError is the InvalidStateError specialization for element
// lookups that matched nothing.
type ElementNotFoundError struct {
	Selector Selector
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matching %s", e.Selector)
}

// IsUnavailable reports whether err indicates the device is gone.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsInvalidState reports whether err indicates a state-dependent failure
// that may clear up after the screen changes.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	var enf *ElementNotFoundError
	return errors.As(err, &ise) || errors.As(err, &enf)
}
