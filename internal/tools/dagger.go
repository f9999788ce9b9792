package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"dagger.io/dagger"
	"github.com/rs/zerolog"

	"agentric/internal/logger"
	"agentric/internal/roster"
)

const defaultSandboxImage = "python:3.12-slim"

// DaggerRunner executes scripts inside a throwaway container and hands every
// other tool to a fallback dispatcher.
type DaggerRunner struct {
	image    string
	timeout  time.Duration
	fallback Dispatcher
	log      zerolog.Logger

	mu     sync.Mutex
	client *dagger.Client
}

func NewDaggerRunner(image string, timeout time.Duration, fallback Dispatcher) *DaggerRunner {
	if image == "" {
		image = defaultSandboxImage
	}
	if timeout <= 0 {
		timeout = DefaultOptions().Timeout
	}
	return &DaggerRunner{
		image:    image,
		timeout:  timeout,
		fallback: fallback,
		log:      logger.Component("sandbox"),
	}
}

// connect opens the engine session on first use.
func (d *DaggerRunner) connect(ctx context.Context) (*dagger.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client, nil
	}
	var logOut io.Writer = io.Discard
	if os.Getenv("AGENTRIC_SANDBOX_DEBUG") != "" {
		logOut = os.Stderr
	}
	c, err := dagger.Connect(ctx, dagger.WithLogOutput(logOut))
	if err != nil {
		return nil, fmt.Errorf("connect to dagger engine: %w", err)
	}
	d.client = c
	return c, nil
}

func (d *DaggerRunner) Dispatch(ctx context.Context, req Request) (Response, error) {
	if req.Tool != roster.ToolScriptExecution {
		if d.fallback == nil {
			return failed(fmt.Sprintf("Tool '%s' not supported.", req.Tool)), nil
		}
		return d.fallback.Dispatch(ctx, req)
	}

	client, err := d.connect(ctx)
	if err != nil {
		return Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	container := client.Container().
		From(d.image).
		WithExec([]string{"python", "-c", req.Task})

	stdout, err := container.Stdout(ctx)
	if err != nil {
		var execErr *dagger.ExecError
		if errors.As(err, &execErr) {
			return Response{Stdout: str(execErr.Stdout), Stderr: str(execErr.Stderr)}, nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed(fmt.Sprintf("script timed out after %s", d.timeout)), nil
		}
		return Response{}, fmt.Errorf("sandbox exec: %w", err)
	}
	stderr, err := container.Stderr(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("could not read sandbox stderr")
	}

	resp := Response{Stdout: str(stdout)}
	if stderr != "" {
		resp.Stderr = str(stderr)
	}
	return resp, nil
}

// Close ends the engine session, if one was opened.
func (d *DaggerRunner) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}
