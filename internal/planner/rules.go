package planner

import (
	"regexp"
	"strings"

	"agentric/internal/roster"
)

// Mapping routes an objective starting with Prefix to a single agent.
// Strip is removed (case-insensitively, first occurrence) from the objective
// and the remainder replaces {input} in Template.
type Mapping struct {
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	Agent    string `mapstructure:"agent" yaml:"agent"`
	Strip    string `mapstructure:"strip" yaml:"strip"`
	Template string `mapstructure:"template" yaml:"template"`
}

func (m Mapping) task(objective string) string {
	input := objective
	if m.Strip != "" {
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(m.Strip))
		if loc := re.FindStringIndex(input); loc != nil {
			input = input[:loc[0]] + input[loc[1]:]
		}
	}
	return strings.ReplaceAll(m.Template, "{input}", strings.TrimSpace(input))
}

// Rules is the data driving the deterministic planner.
type Rules struct {
	ComplexityKeywords []string  `mapstructure:"complexity_keywords" yaml:"complexity_keywords"`
	Mappings           []Mapping `mapstructure:"mappings" yaml:"mappings"`
}

func DefaultRules() Rules {
	return Rules{
		ComplexityKeywords: []string{
			"design", "develop", "plan", "create a full", "multi-step",
			"write a report", "build", "architect",
		},
		Mappings: []Mapping{
			{Prefix: "summarize", Agent: "Content Summarizer", Strip: "summarize", Template: "Summarize the following content: {input}"},
			{Prefix: "sentiment", Agent: "Sentiment Analyzer", Strip: "sentiment for", Template: "Analyze the sentiment of: {input}"},
			{Prefix: "format", Agent: "Format As Code", Template: "Format the following content as a code block."},
			{Prefix: "explain", Agent: "Concept Explainer", Strip: "explain", Template: "Explain the concept of: {input}"},
			{Prefix: "translate", Agent: "Text Translator", Strip: "translate", Template: "Translate: {input}"},
			{Prefix: "list pros and cons", Agent: "Pros/Cons Lister", Strip: "list pros and cons for", Template: "List pros and cons for: {input}"},
		},
	}
}

// Matcher is the deterministic planner.
type Matcher struct {
	rules Rules
}

func NewMatcher(rules Rules) *Matcher {
	if len(rules.ComplexityKeywords) == 0 && len(rules.Mappings) == 0 {
		rules = DefaultRules()
	}
	return &Matcher{rules: rules}
}

// IsComplex reports whether the objective mentions any complexity keyword.
func (m *Matcher) IsComplex(objective string) bool {
	lower := strings.ToLower(objective)
	for _, k := range m.rules.ComplexityKeywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Match returns a single-step plan when the objective can be planned without
// a model. ok is false when the objective is complex or no agent fits.
func (m *Matcher) Match(objective string, team []roster.Agent) (Plan, bool) {
	if m.IsComplex(objective) {
		return nil, false
	}

	lower := strings.ToLower(objective)
	for _, mp := range m.rules.Mappings {
		if mp.Prefix == "" || !strings.HasPrefix(lower, strings.ToLower(mp.Prefix)) {
			continue
		}
		if inTeam(team, mp.Agent) {
			return Plan{{AgentName: mp.Agent, Task: mp.task(objective)}}, true
		}
	}

	if best, ok := BestAgent(team); ok {
		return Plan{{AgentName: best.Name, Task: objective}}, true
	}
	return nil, false
}

// BestAgent picks the first remote non-tool agent, else the first non-tool agent.
func BestAgent(team []roster.Agent) (roster.Agent, bool) {
	for _, a := range team {
		if a.Logic == roster.LogicRemote && a.Tool == roster.ToolNone {
			return a, true
		}
	}
	for _, a := range team {
		if a.Tool == roster.ToolNone {
			return a, true
		}
	}
	return roster.Agent{}, false
}

func inTeam(team []roster.Agent, name string) bool {
	for _, a := range team {
		if a.Name == name {
			return true
		}
	}
	return false
}
