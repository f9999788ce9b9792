package audit

import (
	"encoding/json"
	"time"
)

// Storage keys, one per collection.
const (
	CollectiveKey  = "agentric_collective_consciousness"
	SimulatedKey   = "agentric_simulated_consciousness"
	TheoreticalKey = "agentric_theoretical_consciousness"
)

type LogType string

const (
	LogUserInput     LogType = "user-input"
	LogAgentTask     LogType = "agent-task"
	LogAgentOutput   LogType = "agent-output"
	LogFinalOutput   LogType = "final-output"
	LogSystemMessage LogType = "system-message"
)

type DataType string

const (
	DataText  DataType = "text"
	DataJSON  DataType = "json"
	DataCode  DataType = "code"
	DataImage DataType = "image"
)

type ConceptType string

const (
	ConceptPlan ConceptType = "plan"
	ConceptIdea ConceptType = "idea"
)

// Header is the identity shared by every record. It is fixed at append time.
type Header struct {
	ID        string    `json:"id"`
	MissionID string    `json:"missionId"`
	Timestamp time.Time `json:"timestamp"`
}

func (h Header) Meta() Header { return h }

// Record is implemented by the three record variants.
type Record interface {
	Meta() Header
	Agent() string
}

// Event is a factual log entry (collective collection).
type Event struct {
	Header
	LogType LogType `json:"logType"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
}

func (e Event) Agent() string { return e.Source }

// Data records generated output (simulated collection).
type Data struct {
	Header
	SourceAgent   string   `json:"sourceAgent"`
	DataType      DataType `json:"dataType"`
	Parameters    string   `json:"parameters"`
	GeneratedData string   `json:"generatedData"`
}

func (d Data) Agent() string { return d.SourceAgent }

// Concept records plans and ideas (theoretical collection).
type Concept struct {
	Header
	SourceAgent string          `json:"sourceAgent"`
	ConceptType ConceptType     `json:"conceptType"`
	Prompt      string          `json:"prompt"`
	Output      json.RawMessage `json:"output"`
}

func (c Concept) Agent() string { return c.SourceAgent }

// Counts holds the size of each collection.
type Counts struct {
	Collective  int `json:"collective"`
	Simulated   int `json:"simulated"`
	Theoretical int `json:"theoretical"`
}

// Trail groups the records of all three collections that match a query.
type Trail struct {
	Events   []Event   `json:"events"`
	Data     []Data    `json:"data"`
	Concepts []Concept `json:"concepts"`
}
