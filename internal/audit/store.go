// Package audit implements the three append-only mission logs: factual events
// (collective), generated data (simulated) and plans/ideas (theoretical).
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentric/internal/kv"
)

// Store groups the three collections over one KV backend.
type Store struct {
	Events   *Collection[Event]
	Data     *Collection[Data]
	Concepts *Collection[Concept]

	mu  sync.Mutex
	now func() time.Time
}

func New(backend kv.KV) *Store {
	s := &Store{now: time.Now}
	s.Events = newCollection[Event](CollectiveKey, backend, &s.mu)
	s.Data = newCollection[Data](SimulatedKey, backend, &s.mu)
	s.Concepts = newCollection[Concept](TheoreticalKey, backend, &s.mu)
	return s
}

func (s *Store) header(missionID string) Header {
	return Header{
		ID:        uuid.NewString(),
		MissionID: missionID,
		Timestamp: s.now().UTC(),
	}
}

// LogEvent appends a factual event.
func (s *Store) LogEvent(ctx context.Context, missionID string, logType LogType, source, content string) (Event, error) {
	rec := Event{
		Header:  s.header(missionID),
		LogType: logType,
		Source:  source,
		Content: content,
	}
	return rec, s.Events.Append(ctx, rec)
}

// LogData appends a generated-data record.
func (s *Store) LogData(ctx context.Context, missionID, agent string, dataType DataType, parameters, generated string) (Data, error) {
	rec := Data{
		Header:        s.header(missionID),
		SourceAgent:   agent,
		DataType:      dataType,
		Parameters:    parameters,
		GeneratedData: generated,
	}
	return rec, s.Data.Append(ctx, rec)
}

// LogConcept appends a plan or idea. output is stored as JSON.
func (s *Store) LogConcept(ctx context.Context, missionID, agent string, conceptType ConceptType, prompt string, output any) (Concept, error) {
	raw, err := json.Marshal(output)
	if err != nil {
		return Concept{}, fmt.Errorf("encode concept output: %w", err)
	}
	rec := Concept{
		Header:      s.header(missionID),
		SourceAgent: agent,
		ConceptType: conceptType,
		Prompt:      prompt,
		Output:      raw,
	}
	return rec, s.Concepts.Append(ctx, rec)
}

// Counts returns the size of each collection.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error
	if c.Collective, err = s.Events.Len(ctx); err != nil {
		return Counts{}, err
	}
	if c.Simulated, err = s.Data.Len(ctx); err != nil {
		return Counts{}, err
	}
	if c.Theoretical, err = s.Concepts.Len(ctx); err != nil {
		return Counts{}, err
	}
	return c, nil
}

// ClearAll removes every record from all three collections.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Events.clear(ctx); err != nil {
		return err
	}
	if err := s.Data.clear(ctx); err != nil {
		return err
	}
	return s.Concepts.clear(ctx)
}

// MissionTrail returns every record of a mission, each collection sorted by time.
func (s *Store) MissionTrail(ctx context.Context, missionID string) (Trail, error) {
	var t Trail
	var err error
	if t.Events, err = s.Events.ByMission(ctx, missionID); err != nil {
		return Trail{}, err
	}
	if t.Data, err = s.Data.ByMission(ctx, missionID); err != nil {
		return Trail{}, err
	}
	if t.Concepts, err = s.Concepts.ByMission(ctx, missionID); err != nil {
		return Trail{}, err
	}
	return t, nil
}

// AgentTrail returns every record sourced from the named agent.
func (s *Store) AgentTrail(ctx context.Context, agentName string) (Trail, error) {
	var t Trail
	var err error
	if t.Events, err = s.Events.ByAgent(ctx, agentName); err != nil {
		return Trail{}, err
	}
	if t.Data, err = s.Data.ByAgent(ctx, agentName); err != nil {
		return Trail{}, err
	}
	if t.Concepts, err = s.Concepts.ByAgent(ctx, agentName); err != nil {
		return Trail{}, err
	}
	return t, nil
}
