package build

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// activityBuffer wraps a bytes.Buffer with the timestamp of its last
// write, so a supervising goroutine can tell a genuinely stuck build
// process apart from one that is just slow but still producing output.
type activityBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	lastWrite time.Time
}

func newActivityBuffer() *activityBuffer {
	return &activityBuffer{lastWrite: time.Now()}
}

func (a *activityBuffer) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastWrite = time.Now()
	return a.buf.Write(p)
}

func (a *activityBuffer) idleFor() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.lastWrite)
}

func (a *activityBuffer) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// runMonitored runs cmd to completion, killing it if its combined
// stdout/stderr goes quiet for longer than idleTimeout (zero disables the
// idle check, only honoring ctx's own cancellation). It returns the
// process's combined output either way, so a caller can attach it to the
// error for diagnostics.
func runMonitored(ctx context.Context, cmd *exec.Cmd, idleTimeout time.Duration) (string, error) {
	out := newActivityBuffer()
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return "", errors.Wrapf(err, "starting %s", cmd.Path)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if idleTimeout <= 0 {
		select {
		case err := <-done:
			return out.String(), err
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-done
			return out.String(), ctx.Err()
		}
	}

	ticker := time.NewTicker(idleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return out.String(), err
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-done
			return out.String(), ctx.Err()
		case <-ticker.C:
			if out.idleFor() > idleTimeout {
				_ = cmd.Process.Kill()
				<-done
				return out.String(), errors.Errorf("build command produced no output for %s, killed", idleTimeout)
			}
		}
	}
}
