package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agentric/internal/audit"
	"agentric/internal/gate"
	"agentric/internal/mission"
	"agentric/internal/roster"
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	finalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	gateStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F7B801")).
			Padding(0, 1)
)

const maxImagePreview = 48

func labelFor(m mission.Message) (string, lipgloss.Style) {
	switch m.Type {
	case mission.MessageUser:
		return "you", userStyle
	case mission.MessageAgentOutput:
		return m.Sender, agentStyle
	case mission.MessageFinalResponse:
		return "debrief", finalStyle
	case mission.MessageError:
		return "error", errorStyle
	}
	if m.Sender != "" {
		return m.Sender, systemStyle
	}
	return "system", systemStyle
}

// FormatMessage renders one transcript entry for the terminal.
func FormatMessage(m mission.Message) string {
	label, style := labelFor(m)
	var sb strings.Builder
	sb.WriteString(style.Render("[" + label + "]"))
	if m.Content != "" {
		sb.WriteString(" " + m.Content)
	}
	if m.ImageURL != "" {
		preview := m.ImageURL
		if len(preview) > maxImagePreview {
			preview = preview[:maxImagePreview] + "..."
		}
		sb.WriteString(" " + mutedStyle.Render("<image "+preview+">"))
	}
	if len(m.Plan) > 0 {
		sb.WriteString("\n" + FormatPlan(m.Plan))
	}
	return sb.String()
}

// FormatAuthorization renders a pending gate request and the expected answer.
func FormatAuthorization(req gate.Request) string {
	body := fmt.Sprintf("Authorization required\nAgent: %s (%s)\nTask:  %s\nAllow execution? [y/n]",
		req.Agent, req.Tool, formatValueForDisplay(req.Task, maxTaskLength))
	return gateStyle.Render(body)
}

// FormatRoster lists agents, marking team members and unavailable agents.
func FormatRoster(agents []roster.Agent, team []roster.Agent, selectable func(roster.Agent) bool) string {
	onTeam := make(map[string]bool, len(team))
	for _, a := range team {
		onTeam[a.ID] = true
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Agent roster (%d agents, %d on team):\n", len(agents), len(team)))
	for _, a := range agents {
		mark := " "
		if onTeam[a.ID] {
			mark = "*"
		}
		line := fmt.Sprintf("  %s %-10s %-24s %-12s %s", mark, a.ID, a.Name, a.Kind(), a.Category)
		if selectable != nil && !selectable(a) {
			line = mutedStyle.Render(line + "  (unavailable)")
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func FormatMissionLog(log map[string]roster.Status, team []roster.Agent) string {
	var sb strings.Builder
	for _, a := range team {
		s, ok := log[a.Name]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-24s %s\n", a.Name, s))
	}
	return sb.String()
}

func FormatCounts(c audit.Counts) string {
	return fmt.Sprintf("Consciousness logs: collective=%d simulated=%d theoretical=%d", c.Collective, c.Simulated, c.Theoretical)
}

// FormatTrail renders audit records grouped by collection.
func FormatTrail(t audit.Trail) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Collective (%d):\n", len(t.Events)))
	for _, e := range t.Events {
		sb.WriteString(fmt.Sprintf("  %s  %-14s %-20s %s\n", e.Timestamp.Format("15:04:05.000"), e.LogType, e.Source, formatValueForDisplay(e.Content, maxTaskLength)))
	}
	sb.WriteString(fmt.Sprintf("Simulated (%d):\n", len(t.Data)))
	for _, d := range t.Data {
		sb.WriteString(fmt.Sprintf("  %s  %-6s %-20s %s\n", d.Timestamp.Format("15:04:05.000"), d.DataType, d.SourceAgent, formatValueForDisplay(d.GeneratedData, maxTaskLength)))
	}
	sb.WriteString(fmt.Sprintf("Theoretical (%d):\n", len(t.Concepts)))
	for _, c := range t.Concepts {
		sb.WriteString(fmt.Sprintf("  %s  %-6s %-20s %s\n", c.Timestamp.Format("15:04:05.000"), c.ConceptType, c.SourceAgent, formatValueForDisplay(c.Prompt, maxTaskLength)))
	}
	return sb.String()
}
