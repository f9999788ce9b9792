package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"agentric/internal/logger"
	"agentric/internal/roster"
)

// Options configures the local runner.
type Options struct {
	Python      string
	Timeout     time.Duration
	SystemAllow []string
	GitAllow    []string
	// Root bounds the filesystem tool and is the working directory for git.
	Root    string
	TempDir string
}

func DefaultOptions() Options {
	return Options{
		Python:      "python3",
		Timeout:     15 * time.Second,
		SystemAllow: []string{"tasklist", "ps", "ls", "dir", "notepad", "calc"},
		GitAllow:    []string{"clone", "commit", "push", "pull", "init", "status", "add", "log", "diff", "branch", "show"},
		Root:        ".",
	}
}

// LocalRunner executes tools as host processes.
type LocalRunner struct {
	opts Options
	exec Executor
	now  func() time.Time
	log  zerolog.Logger
}

func NewLocalRunner(opts Options, exec Executor) *LocalRunner {
	def := DefaultOptions()
	if opts.Python == "" {
		opts.Python = def.Python
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.SystemAllow == nil {
		opts.SystemAllow = def.SystemAllow
	}
	if opts.GitAllow == nil {
		opts.GitAllow = def.GitAllow
	}
	if opts.Root == "" {
		opts.Root = def.Root
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if exec == nil {
		exec = RealExecutor{}
	}
	return &LocalRunner{opts: opts, exec: exec, now: time.Now, log: logger.Component("tools")}
}

func (r *LocalRunner) Dispatch(ctx context.Context, req Request) (Response, error) {
	if req.Tool == roster.ToolNone || strings.TrimSpace(req.Task) == "" {
		return failed("Missing tool or task in request"), nil
	}
	r.log.Info().Str("tool", string(req.Tool)).Msg("dispatching tool request")

	switch req.Tool {
	case roster.ToolScriptExecution:
		return r.runPython(ctx, req.Task)
	case roster.ToolVersionControl:
		return r.runGit(ctx, req.Task)
	case roster.ToolSystemQuery:
		return r.runSystem(ctx, req.Task)
	case roster.ToolFilesystem:
		return r.readFiles(ctx, req.Task)
	case roster.ToolImageGeneration:
		return r.generateImage(ctx, req)
	}
	return failed(fmt.Sprintf("Tool '%s' not supported.", req.Tool)), nil
}

func (r *LocalRunner) run(ctx context.Context, dir, cmd string, args ...string) Response {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	stdout, stderr, err := r.exec.Run(ctx, dir, cmd, args...)
	resp := Response{Stdout: str(string(stdout))}
	if len(stderr) > 0 {
		resp.Stderr = str(string(stderr))
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			resp.Stderr = str(fmt.Sprintf("%s timed out after %s", cmd, r.opts.Timeout))
		} else if resp.Stderr == nil || strings.TrimSpace(*resp.Stderr) == "" {
			resp.Stderr = str(err.Error())
		}
		r.log.Warn().Err(err).Str("cmd", cmd).Msg("tool command failed")
	}
	return resp
}

func (r *LocalRunner) runPython(ctx context.Context, script string) (Response, error) {
	name := fmt.Sprintf("agentric_script_%d.py", r.now().UnixMilli())
	path := filepath.Join(r.opts.TempDir, name)
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		return Response{}, fmt.Errorf("write script: %w", err)
	}
	defer os.Remove(path)

	return r.run(ctx, "", r.opts.Python, path), nil
}

var forbiddenChars = regexp.MustCompile("[;&|`$()<>]")

// sanitizeCommand rejects anything that could chain or redirect commands.
func sanitizeCommand(command string) (string, bool) {
	command = strings.TrimSpace(command)
	if command == "" || forbiddenChars.MatchString(command) {
		return "", false
	}
	return command, true
}

func (r *LocalRunner) runGit(ctx context.Context, task string) (Response, error) {
	command, ok := sanitizeCommand(task)
	if !ok || !strings.HasPrefix(command, "git ") {
		return failed("Invalid or unsafe git command."), nil
	}
	args, err := shlex.Split(strings.TrimPrefix(command, "git "))
	if err != nil || len(args) == 0 {
		return failed("Invalid or unsafe git command."), nil
	}
	// Provide a security whitelist for git subcommand
	if !contains(r.opts.GitAllow, args[0]) {
		return failed(fmt.Sprintf("git subcommand '%s' is not allowed", args[0])), nil
	}
	return r.run(ctx, r.opts.Root, "git", args...), nil
}

func (r *LocalRunner) runSystem(ctx context.Context, task string) (Response, error) {
	command, ok := sanitizeCommand(task)
	if !ok {
		return failed("Disallowed or unsafe system command."), nil
	}
	args, err := shlex.Split(command)
	if err != nil || len(args) == 0 || !contains(r.opts.SystemAllow, args[0]) {
		return failed("Disallowed or unsafe system command."), nil
	}
	return r.run(ctx, "", args[0], args[1:]...), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
