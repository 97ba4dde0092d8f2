package device

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"
)

const recordingRemotePath = "/sdcard/droidpilot_recording.mp4"

// recorder tracks one in-flight screenrecord process. screenrecord keeps
// running until its adb client disconnects, so the process handle is held
// between start and stop.
type recorder struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	remote string
}

// StartRecording begins a screen capture on the device. Only one recording
// can run at a time; a second start fails with InvalidStateError.
func (d *Driver) StartRecording(ctx context.Context, bitRate string) error {
	d.rec.mu.Lock()
	defer d.rec.mu.Unlock()
	if d.rec.cmd != nil {
		return &InvalidStateError{Op: "record_video", Detail: "recording already in progress"}
	}
	if bitRate == "" {
		bitRate = "8M"
	}
	cmd, err := d.adb.StartShell("screenrecord", "--bit-rate", bitRate, recordingRemotePath)
	if err != nil {
		return err
	}
	d.rec.cmd = cmd
	d.rec.remote = recordingRemotePath
	return nil
}

// StopRecording ends the capture, pulls the file to localPath and removes
// the on-device copy.
func (d *Driver) StopRecording(ctx context.Context, localPath string) error {
	d.rec.mu.Lock()
	defer d.rec.mu.Unlock()
	if d.rec.cmd == nil {
		return &InvalidStateError{Op: "stop_video", Detail: "no recording in progress"}
	}
	cmd := d.rec.cmd
	remote := d.rec.remote
	d.rec.cmd = nil

	// Interrupting the adb client makes screenrecord finalize the file.
	_ = cmd.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
	// The muxer needs a moment to flush the container index.
	time.Sleep(500 * time.Millisecond)

	if err := d.adb.Pull(ctx, remote, localPath); err != nil {
		return err
	}
	_, _ = d.adb.Shell(ctx, "rm", "-f", remote)
	return nil
}

// Recording reports whether a screen capture is in progress.
func (d *Driver) Recording() bool {
	d.rec.mu.Lock()
	defer d.rec.mu.Unlock()
	return d.rec.cmd != nil
}
