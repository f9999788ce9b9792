// Package tools runs side-effecting tool requests: scripts, version control,
// system queries, file reads and local image generation.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentric/internal/roster"
)

var ErrToolExecution = errors.New("tool execution failed")

// ImageParams configures local image generation.
type ImageParams struct {
	ModelPath string `json:"modelPath"`
	Script    string `json:"script,omitempty"`
}

// Request is one tool invocation. Input carries the mission context.
type Request struct {
	Tool  roster.Tool  `json:"tool"`
	Task  string       `json:"task"`
	Input string       `json:"input"`
	Image *ImageParams `json:"image,omitempty"`
}

// Response mirrors a process result. A nil field means the stream was absent.
type Response struct {
	Stdout *string `json:"stdout"`
	Stderr *string `json:"stderr"`
}

func str(s string) *string { return &s }

func failed(msg string) Response { return Response{Stderr: str(msg)} }

// Dispatcher executes tool requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (Response, error)
}

const emptyOutput = "Command executed successfully."

// Result turns a response into step output. A non-empty stderr is a failure.
func Result(resp Response) (string, error) {
	if resp.Stderr != nil && strings.TrimSpace(*resp.Stderr) != "" {
		return "", fmt.Errorf("%w: %s", ErrToolExecution, strings.TrimSpace(*resp.Stderr))
	}
	if resp.Stdout == nil || *resp.Stdout == "" {
		return emptyOutput, nil
	}
	return *resp.Stdout, nil
}

// Run dispatches req and converts the response with Result.
func Run(ctx context.Context, d Dispatcher, req Request) (string, error) {
	resp, err := d.Dispatch(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolExecution, err)
	}
	return Result(resp)
}
