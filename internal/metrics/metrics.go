package metrics

import "time"

type StepMetrics struct {
	Index      int       `json:"index"`
	Agent      string    `json:"agent"`
	Kind       string    `json:"kind"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Err        string    `json:"err,omitempty"`
}

type MissionMetrics struct {
	MissionID  string        `json:"mission_id"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	DurationMs int64         `json:"duration_ms"`
	PlanningMs int64         `json:"planning_ms"`
	Succeeded  bool          `json:"succeeded"`
	Steps      []StepMetrics `json:"steps"`
}

func New(missionID string, start time.Time) *MissionMetrics {
	return &MissionMetrics{MissionID: missionID, Start: start}
}

// Planned records when planning finished.
func (m *MissionMetrics) Planned(at time.Time) {
	m.PlanningMs = at.Sub(m.Start).Milliseconds()
}

// Record appends a finished step.
func (m *MissionMetrics) Record(agent, kind string, start, end time.Time, err error) {
	s := StepMetrics{
		Index:   len(m.Steps) + 1,
		Agent:   agent,
		Kind:    kind,
		Start:   start,
		End:     end,
		Success: err == nil,
	}
	if err != nil {
		s.Err = err.Error()
	}
	s.Finalize()
	m.Steps = append(m.Steps, s)
}

// Compute derived fields for a step.
func (s *StepMetrics) Finalize() {
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

func (m *MissionMetrics) Finish(at time.Time, succeeded bool) {
	m.End = at
	m.Succeeded = succeeded
	m.DurationMs = m.End.Sub(m.Start).Milliseconds()
}
