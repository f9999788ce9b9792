// Package listener owns the terminal: it reads operator input with readline
// and prints asynchronous narration above the prompt without breaking it.
package listener

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

const DefaultPrompt = "agentric> "

// ErrClosed is returned by ReadLine after Ctrl+D or Close.
var ErrClosed = errors.New("console closed")

type Console struct {
	rl     *readline.Instance
	mu     sync.Mutex
	prompt string
}

// New opens the terminal. historyFile may be empty.
func New(historyFile string) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          DefaultPrompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &Console{rl: rl, prompt: DefaultPrompt}, nil
}

func (c *Console) Close() {
	if c.rl != nil {
		_ = c.rl.Close()
	}
}

// SetPrompt swaps the prompt. An empty string restores the default.
func (c *Console) SetPrompt(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == "" {
		p = DefaultPrompt
	}
	c.prompt = p
	c.rl.SetPrompt(p)
	c.rl.Refresh()
}

// ReadLine blocks for one trimmed line. Ctrl+C yields an empty line.
func (c *Console) ReadLine() (string, error) {
	line, err := c.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", nil
	case errors.Is(err, io.EOF):
		return "", ErrClosed
	case err != nil:
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Println prints s above the prompt. Safe to call from any goroutine.
func (c *Console) Println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = c.rl.Write([]byte("\r" + s + "\r\n"))
	c.rl.Refresh()
}

// Printf is Println with formatting.
func (c *Console) Printf(format string, args ...any) {
	c.Println(fmt.Sprintf(format, args...))
}

// YesNo interprets an answer to a y/n question. ok is false for anything else.
func YesNo(answer string) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}
