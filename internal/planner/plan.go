// Package planner turns an objective into an ordered plan of agent steps,
// either deterministically from keyword rules or from a model response.
package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrPlanningFailure = errors.New("planning failure")

// Step is one unit of work delegated to a named agent.
type Step struct {
	AgentName string `json:"agentName"`
	Task      string `json:"task"`
}

// Plan is executed strictly in order.
type Plan []Step

// Agents returns the distinct agent names of the plan in first-use order.
func (p Plan) Agents() []string {
	seen := make(map[string]bool, len(p))
	var out []string
	for _, s := range p {
		if !seen[s.AgentName] {
			seen[s.AgentName] = true
			out = append(out, s.AgentName)
		}
	}
	return out
}

// modelPlan is the shape the planning prompt asks for.
type modelPlan struct {
	IsSimple  *bool  `json:"isSimple"`
	AgentName string `json:"agentName"`
	Task      string `json:"task"`
	Plan      []Step `json:"plan"`
}

// PlanSchema is the JSON schema sent with structured planning requests.
var PlanSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"isSimple": map[string]any{"type": "boolean"},
		"agentName": map[string]any{
			"type":        "string",
			"description": "Required if isSimple is true. The single agent to perform the task.",
		},
		"task": map[string]any{
			"type":        "string",
			"description": "Required if isSimple is true. The direct task for the single agent.",
		},
		"plan": map[string]any{
			"type":        "array",
			"description": "Required if isSimple is false. The sequence of steps.",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agentName": map[string]any{"type": "string"},
					"task":      map[string]any{"type": "string"},
				},
				"required": []string{"agentName", "task"},
			},
		},
	},
	"required": []string{"isSimple"},
}

// ParseModelPlan extracts the first well-formed JSON object from a model
// response and reads it as either a simple single-step answer or a plan.
func ParseModelPlan(text string) (Plan, error) {
	raw, ok := firstJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in model response: %q", ErrPlanningFailure, truncate(text, 200))
	}

	var mp modelPlan
	if err := json.Unmarshal(raw, &mp); err != nil {
		return nil, fmt.Errorf("%w: unexpected plan shape: %v", ErrPlanningFailure, err)
	}

	var plan Plan
	switch {
	case mp.IsSimple != nil && *mp.IsSimple:
		plan = Plan{{AgentName: mp.AgentName, Task: mp.Task}}
	case mp.Plan != nil:
		plan = Plan(mp.Plan)
	default:
		return nil, fmt.Errorf("%w: response has neither a simple answer nor a plan", ErrPlanningFailure)
	}

	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: plan is empty", ErrPlanningFailure)
	}
	for i, s := range plan {
		if strings.TrimSpace(s.AgentName) == "" {
			return nil, fmt.Errorf("%w: step %d has no agent", ErrPlanningFailure, i+1)
		}
	}
	return plan, nil
}

// firstJSONObject tries every '{' in order and returns the first position
// that decodes as a complete JSON object.
func firstJSONObject(text string) (json.RawMessage, bool) {
	b := []byte(text)
	for i := 0; i < len(b); i++ {
		if b[i] != '{' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b[i:]))
		var obj map[string]json.RawMessage
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		end := i + int(dec.InputOffset())
		return json.RawMessage(b[i:end]), true
	}
	return nil, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
