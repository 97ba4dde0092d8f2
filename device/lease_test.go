package device

import (
	"errors"
	"testing"
)

func TestLeaseExclusive(t *testing.T) {
	lease := NewLease()
	if err := lease.Acquire(); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := lease.Acquire(); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy, got %v", err)
	}
	lease.Release()
	if err := lease.Acquire(); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	unavailable := &UnavailableError{Serial: "emulator-5554", Cause: errors.New("offline")}
	if !IsUnavailable(unavailable) {
		t.Error("UnavailableError not recognized")
	}
	if IsInvalidState(unavailable) {
		t.Error("UnavailableError misclassified as invalid state")
	}

	notFound := &ElementNotFoundError{Selector: Selector{Text: "OK"}}
	if !IsInvalidState(notFound) {
		t.Error("ElementNotFoundError should be an invalid-state failure")
	}

	invalid := &InvalidStateError{Op: "tap", Detail: "out of bounds"}
	if !IsInvalidState(invalid) {
		t.Error("InvalidStateError not recognized")
	}
	if IsUnavailable(invalid) {
		t.Error("InvalidStateError misclassified as unavailable")
	}
}
