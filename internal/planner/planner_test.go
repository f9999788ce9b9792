package planner

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentric/internal/roster"
)

func team(names ...string) []roster.Agent {
	out := make([]roster.Agent, 0, len(names))
	for _, n := range names {
		out = append(out, roster.Agent{Name: n, Role: n + " role", Logic: roster.LogicRemote})
	}
	return out
}

func TestMatcherMatch(t *testing.T) {
	m := NewMatcher(DefaultRules())

	local := roster.Agent{Name: "Format As Code", Logic: roster.LogicLocal}
	tool := roster.Agent{Name: "Python Interpreter", Tool: roster.ToolScriptExecution, Logic: roster.LogicRemote}

	testCases := []struct {
		name      string
		objective string
		team      []roster.Agent
		wantOK    bool
		wantPlan  Plan
	}{
		{
			name:      "Summarize prefix maps to summarizer",
			objective: "Summarize the quarterly report",
			team:      team("Content Summarizer", "The Novelist"),
			wantOK:    true,
			wantPlan:  Plan{{AgentName: "Content Summarizer", Task: "Summarize the following content: the quarterly report"}},
		},
		{
			name:      "Sentiment strips the phrase",
			objective: "sentiment for I love this product",
			team:      team("Sentiment Analyzer"),
			wantOK:    true,
			wantPlan:  Plan{{AgentName: "Sentiment Analyzer", Task: "Analyze the sentiment of: I love this product"}},
		},
		{
			name:      "Format uses a fixed task",
			objective: "format this snippet",
			team:      []roster.Agent{local},
			wantOK:    true,
			wantPlan:  Plan{{AgentName: "Format As Code", Task: "Format the following content as a code block."}},
		},
		{
			name:      "List pros and cons",
			objective: "List pros and cons for remote work",
			team:      team("Pros/Cons Lister"),
			wantOK:    true,
			wantPlan:  Plan{{AgentName: "Pros/Cons Lister", Task: "List pros and cons for: remote work"}},
		},
		{
			name:      "Mapped agent missing falls back to best agent",
			objective: "translate hello",
			team:      team("The Novelist"),
			wantOK:    true,
			wantPlan:  Plan{{AgentName: "The Novelist", Task: "translate hello"}},
		},
		{
			name:      "Non-matching objective collapses to one step",
			objective: "write a haiku about autumn",
			team:      []roster.Agent{tool, local, team("The Novelist")[0]},
			wantOK:    true,
			wantPlan:  Plan{{AgentName: "The Novelist", Task: "write a haiku about autumn"}},
		},
		{
			name:      "Local non-tool agent when no remote agent",
			objective: "tidy this up",
			team:      []roster.Agent{tool, local},
			wantOK:    true,
			wantPlan:  Plan{{AgentName: "Format As Code", Task: "tidy this up"}},
		},
		{
			name:      "Complex keyword defers to the model",
			objective: "Summarize and then build a dashboard",
			team:      team("Content Summarizer"),
			wantOK:    false,
		},
		{
			name:      "Complexity check is case-insensitive",
			objective: "ARCHITECT a system",
			team:      team("The Alchemist"),
			wantOK:    false,
		},
		{
			name:      "Only tool agents leaves nothing to pick",
			objective: "hello there",
			team:      []roster.Agent{tool},
			wantOK:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, ok := m.Match(tc.objective, tc.team)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantPlan, plan)
			}
		})
	}
}

func TestMatcherFallbackIsAlwaysSingleStep(t *testing.T) {
	m := NewMatcher(DefaultRules())
	tm := team("A", "B", "C")
	for _, obj := range []string{"hi", "what is the time", "tell me a joke", "count to ten"} {
		plan, ok := m.Match(obj, tm)
		require.True(t, ok, obj)
		require.Len(t, plan, 1)
		assert.Equal(t, obj, plan[0].Task)
	}
}

func TestCustomRules(t *testing.T) {
	m := NewMatcher(Rules{
		ComplexityKeywords: []string{"orchestrate"},
		Mappings:           []Mapping{{Prefix: "shout", Agent: "Loud", Strip: "shout", Template: "SHOUT {input}"}},
	})

	plan, ok := m.Match("shout hello", team("Loud"))
	require.True(t, ok)
	assert.Equal(t, "SHOUT hello", plan[0].Task)

	_, ok = m.Match("orchestrate everything", team("Loud"))
	assert.False(t, ok)

	// "build" is not complex under these rules
	plan, ok = m.Match("build a shed", team("Loud"))
	require.True(t, ok)
	assert.Equal(t, "Loud", plan[0].AgentName)
}

func TestParseModelPlan(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		want      Plan
		expectErr bool
	}{
		{
			name:  "Simple answer",
			input: `{"isSimple": true, "agentName": "Writer", "task": "write"}`,
			want:  Plan{{AgentName: "Writer", Task: "write"}},
		},
		{
			name:  "Complex plan",
			input: `{"isSimple": false, "plan": [{"agentName": "A", "task": "one"}, {"agentName": "B", "task": "two"}]}`,
			want:  Plan{{AgentName: "A", Task: "one"}, {AgentName: "B", Task: "two"}},
		},
		{
			name:  "Plan without isSimple",
			input: `{"plan": [{"agentName": "A", "task": "one"}]}`,
			want:  Plan{{AgentName: "A", Task: "one"}},
		},
		{
			name:  "Object wrapped in prose and fences",
			input: "Sure! Here you go:\n```json\n{\"isSimple\": true, \"agentName\": \"A\", \"task\": \"t\"}\n```\nThanks",
			want:  Plan{{AgentName: "A", Task: "t"}},
		},
		{
			name:  "Broken brace before the real object",
			input: `note {not json} then {"isSimple": true, "agentName": "A", "task": "t"}`,
			want:  Plan{{AgentName: "A", Task: "t"}},
		},
		{
			name:      "No JSON at all",
			input:     "I cannot help with that.",
			expectErr: true,
		},
		{
			name:      "Empty plan",
			input:     `{"isSimple": false, "plan": []}`,
			expectErr: true,
		},
		{
			name:      "Neither shape",
			input:     `{"isSimple": false}`,
			expectErr: true,
		},
		{
			name:      "Step without agent",
			input:     `{"plan": [{"task": "orphan"}]}`,
			expectErr: true,
		},
		{
			name:      "Wrong field types",
			input:     `{"plan": "not a list"}`,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := ParseModelPlan(tc.input)
			if tc.expectErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrPlanningFailure))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, plan)
		})
	}
}

func TestPlanAgents(t *testing.T) {
	p := Plan{{AgentName: "A"}, {AgentName: "B"}, {AgentName: "A"}}
	assert.Equal(t, []string{"A", "B"}, p.Agents())
}

func TestPrompts(t *testing.T) {
	tm := []roster.Agent{
		{Name: "Writer", Role: "writes", Logic: roster.LogicRemote},
		{Name: "Fmt", Role: "formats", Logic: roster.LogicLocal},
	}

	remote := RemotePlanPrompt("do things", tm)
	assert.Contains(t, remote, `Objective: "do things"`)
	assert.Contains(t, remote, "- Writer (remote): writes\n- Fmt (local): formats")

	local := LocalPlanPrompt("do things", tm)
	assert.Contains(t, local, `{"isSimple": true, "agentName": "AGENT_NAME", "task": "TASK_FOR_AGENT"}`)

	agent := AgentPrompt(tm[0], "draft", "Initial Objective: x")
	assert.True(t, strings.HasPrefix(agent, "You are the agent: Writer.\nYour Role: writes\n"))
	assert.Contains(t, agent, "---\nInitial Objective: x\n---")
}
