// Package mission runs one objective at a time through planning and
// sequential step execution, narrating progress as a transcript.
package mission

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"agentric/internal/gateway"
	"agentric/internal/planner"
	"agentric/internal/roster"
)

type State string

const (
	StateIdle        State = "idle"
	StatePlanning    State = "planning"
	StateExecuting   State = "executing"
	StateAuthorizing State = "authorizing"
	StateFinished    State = "finished"
	StateError       State = "error"
)

// Accepting reports whether a new objective may be sent in this state.
func (s State) Accepting() bool {
	return s == StateIdle || s == StateFinished || s == StateError
}

type MessageType string

const (
	MessageUser          MessageType = "user"
	MessageSystem        MessageType = "system"
	MessageAgentOutput   MessageType = "agent-output"
	MessageFinalResponse MessageType = "final-response"
	MessageError         MessageType = "error"
)

// Message is one transcript entry.
type Message struct {
	ID        string       `json:"id"`
	MissionID string       `json:"missionId,omitempty"`
	Type      MessageType  `json:"type"`
	Content   string       `json:"content"`
	Sender    string       `json:"sender,omitempty"`
	Plan      planner.Plan `json:"plan,omitempty"`
	ImageURL  string       `json:"imageUrl,omitempty"`
	Speakable bool         `json:"speakable,omitempty"`
	Time      time.Time    `json:"time"`
}

// Block is the output of one completed step.
type Block struct {
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

// Context accumulates the objective and every step output in order. Each
// step sees everything produced before it.
type Context struct {
	Objective string  `json:"objective"`
	Blocks    []Block `json:"blocks"`
}

func NewContext(objective string) Context {
	return Context{Objective: objective}
}

func (c *Context) Append(agent, output string) {
	c.Blocks = append(c.Blocks, Block{Agent: agent, Output: output})
}

func (c Context) String() string {
	var sb strings.Builder
	sb.WriteString("Initial Objective: " + c.Objective)
	for _, b := range c.Blocks {
		sb.WriteString(fmt.Sprintf("\n\n--- Output from %s ---\n%s", b.Agent, b.Output))
	}
	return sb.String()
}

func (c Context) clone() Context {
	c.Blocks = slices.Clone(c.Blocks)
	return c
}

// Mission is the record of one objective.
type Mission struct {
	ID         string                   `json:"id"`
	Objective  string                   `json:"objective"`
	Plan       planner.Plan             `json:"plan,omitempty"`
	Log        map[string]roster.Status `json:"log"`
	Context    Context                  `json:"context"`
	Attachment *gateway.Attachment      `json:"-"`
}

func (m *Mission) clone() Mission {
	c := *m
	c.Plan = slices.Clone(m.Plan)
	c.Log = maps.Clone(m.Log)
	c.Context = m.Context.clone()
	return c
}

// Settled counts mission log entries that reached done or error.
func (m Mission) Settled() int {
	n := 0
	for _, s := range m.Log {
		if s == roster.StatusDone || s == roster.StatusError {
			n++
		}
	}
	return n
}
