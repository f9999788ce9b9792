package display

import (
	"fmt"
	"strings"

	"agentric/internal/planner"
)

const maxTaskLength = 100

// stdout plan (truncated)
func FormatPlan(plan planner.Plan) string {
	return formatPlanInternal(plan, maxTaskLength)
}

// full plan (no truncation), used for logs
func FormatPlanFull(plan planner.Plan) string {
	return formatPlanInternal(plan, -1)
}

func formatPlanInternal(plan planner.Plan, limit int) string {
	var sb strings.Builder
	sb.WriteString("Mission plan:\n")
	sb.WriteString("--------------------------------------------------\n")
	for i, step := range plan {
		sb.WriteString(fmt.Sprintf("Step %d: %s\n", i+1, step.AgentName))
		sb.WriteString(fmt.Sprintf("    Task: %s\n", formatValueForDisplay(step.Task, limit)))
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// Keep values on one line; limit < 0 means no limit.
func formatValueForDisplay(value string, limit int) string {
	s := strings.ReplaceAll(value, "\n", "\\n")
	if limit >= 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
