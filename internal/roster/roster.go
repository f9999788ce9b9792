// Package roster loads the agent roster and tracks per-agent status.
package roster

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

type Tool string

const (
	ToolNone            Tool = ""
	ToolScriptExecution Tool = "script-execution"
	ToolVersionControl  Tool = "version-control"
	ToolSystemQuery     Tool = "system-query"
	ToolFilesystem      Tool = "filesystem"
	ToolImageGeneration Tool = "image-generation"
)

var toolAliases = map[string]Tool{
	"script-execution": ToolScriptExecution,
	"python":           ToolScriptExecution,
	"version-control":  ToolVersionControl,
	"git":              ToolVersionControl,
	"system-query":     ToolSystemQuery,
	"system":           ToolSystemQuery,
	"filesystem":       ToolFilesystem,
	"fileSystem":       ToolFilesystem,
	"image-generation": ToolImageGeneration,
	"imageGeneration":  ToolImageGeneration,
}

// RequiresAuthorization reports whether running the tool needs operator approval.
func (t Tool) RequiresAuthorization() bool {
	return t != ToolNone && t != ToolFilesystem
}

type Logic string

const (
	LogicRemote Logic = "remote"
	LogicLocal  Logic = "local"
)

var logicAliases = map[string]Logic{
	"remote": LogicRemote,
	"gemini": LogicRemote,
	"local":  LogicLocal,
}

// Kind is the closed set of execution variants an agent can belong to.
type Kind int

const (
	KindModel Kind = iota
	KindLocalLogic
	KindTool
)

func (k Kind) String() string {
	switch k {
	case KindTool:
		return "tool"
	case KindLocalLogic:
		return "local-logic"
	case KindModel:
		return "model"
	}
	return "unknown"
}

type Status string

const (
	StatusIdle        Status = "idle"
	StatusPending     Status = "pending"
	StatusThinking    Status = "thinking"
	StatusAuthorizing Status = "authorizing"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// Agent is a named worker. Everything except Status is fixed after load.
type Agent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Category string `json:"category"`
	Tool     Tool   `json:"tool,omitempty"`
	Logic    Logic  `json:"logic"`
	Status   Status `json:"status"`
}

// Kind derives the execution variant. Tool wins over logic.
func (a Agent) Kind() Kind {
	switch {
	case a.Tool != ToolNone:
		return KindTool
	case a.Logic == LogicLocal:
		return KindLocalLogic
	default:
		return KindModel
	}
}

func (a *Agent) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Category string `json:"category"`
		Tool     string `json:"tool"`
		Logic    string `json:"logic"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw.Name) == "" {
		return fmt.Errorf("agent %q has no name", raw.ID)
	}

	var tool Tool
	if raw.Tool != "" {
		t, ok := toolAliases[raw.Tool]
		if !ok {
			return fmt.Errorf("agent %q: unknown tool %q", raw.Name, raw.Tool)
		}
		tool = t
	}
	logic := LogicRemote
	if raw.Logic != "" {
		l, ok := logicAliases[strings.ToLower(raw.Logic)]
		if !ok {
			return fmt.Errorf("agent %q: unknown logic %q", raw.Name, raw.Logic)
		}
		logic = l
	}

	*a = Agent{
		ID:       raw.ID,
		Name:     raw.Name,
		Role:     raw.Role,
		Category: raw.Category,
		Tool:     tool,
		Logic:    logic,
		Status:   StatusIdle,
	}
	return nil
}

//go:embed agents.json
var defaultRoster []byte

// Roster is the loaded agent list with mutex-guarded status updates.
type Roster struct {
	mu     sync.RWMutex
	agents []Agent
	byName map[string]int
	byID   map[string]int
}

// Load reads a roster JSON array from path. An empty path loads the built-in roster.
func Load(path string) (*Roster, error) {
	data := defaultRoster
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read roster file: %w", err)
		}
		data = b
	}
	return Parse(data)
}

func Parse(data []byte) (*Roster, error) {
	var agents []Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("could not parse roster JSON: %w", err)
	}
	return New(agents)
}

// New builds a roster from agents. Names and IDs must be unique.
func New(agents []Agent) (*Roster, error) {
	r := &Roster{
		agents: make([]Agent, len(agents)),
		byName: make(map[string]int, len(agents)),
		byID:   make(map[string]int, len(agents)),
	}
	for i, a := range agents {
		if _, dup := r.byName[a.Name]; dup {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name)
		}
		if a.ID != "" {
			if _, dup := r.byID[a.ID]; dup {
				return nil, fmt.Errorf("duplicate agent id %q", a.ID)
			}
			r.byID[a.ID] = i
		}
		if a.Status == "" {
			a.Status = StatusIdle
		}
		r.agents[i] = a
		r.byName[a.Name] = i
	}
	return r, nil
}

// Agents returns a snapshot of all agents in roster order.
func (r *Roster) Agents() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Find looks an agent up by name.
func (r *Roster) Find(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return Agent{}, false
	}
	return r.agents[i], true
}

func (r *Roster) ByID(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return Agent{}, false
	}
	return r.agents[i], true
}

// SetStatus updates one agent's status. Unknown names are ignored.
func (r *Roster) SetStatus(name string, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byName[name]
	if !ok {
		return false
	}
	r.agents[i].Status = status
	return true
}

// ResetStatuses puts every agent back to idle.
func (r *Roster) ResetStatuses() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.agents {
		r.agents[i].Status = StatusIdle
	}
}
