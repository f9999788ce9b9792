package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
)

const maxOutputLen = 64 * 1024

// limitedWriter caps writes at max bytes and discards the rest.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.max - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

// Executor runs a process without a shell.
type Executor interface {
	Run(ctx context.Context, dir, cmd string, args ...string) (stdout, stderr []byte, err error)
}

// RealExecutor runs actual processes.
type RealExecutor struct{}

func (RealExecutor) Run(ctx context.Context, dir, cmd string, args ...string) ([]byte, []byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	if dir != "" {
		c.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &limitedWriter{buf: &stdout, max: maxOutputLen}
	c.Stderr = &limitedWriter{buf: &stderr, max: maxOutputLen}
	if err := c.Run(); err != nil {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("exec %s: %w", cmd, err)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Dir  string
	Cmd  string
	Args []string
}

// RecordingExecutor captures commands for testing.
// Stdout, Stderr and Errors are keyed by command name.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	Stdout map[string]string
	Stderr map[string]string
	Errors map[string]error

	// Hook, if set, runs before the canned result is returned.
	Hook func(cmd string, args []string)
}

func (e *RecordingExecutor) Run(ctx context.Context, dir, cmd string, args ...string) ([]byte, []byte, error) {
	e.mu.Lock()
	e.Commands = append(e.Commands, RecordedCommand{Dir: dir, Cmd: cmd, Args: args})
	hook := e.Hook
	e.mu.Unlock()

	if hook != nil {
		hook(cmd, args)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return []byte(e.Stdout[cmd]), []byte(e.Stderr[cmd]), e.Errors[cmd]
}

// Recorded returns a copy of the commands run so far.
func (e *RecordingExecutor) Recorded() []RecordedCommand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RecordedCommand(nil), e.Commands...)
}
