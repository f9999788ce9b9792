package display

import (
	"fmt"
	"strings"

	"agentric/internal/metrics"
)

func FormatMissionMetrics(mm *metrics.MissionMetrics) string {
	if mm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Execution metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v)\n", mm.DurationMs, mm.Succeeded))
	sb.WriteString(fmt.Sprintf("  Planning: %d ms\n", mm.PlanningMs))
	for _, s := range mm.Steps {
		status := "ok"
		if !s.Success {
			status = "err"
		}
		sb.WriteString(fmt.Sprintf("  Step %d: %-24s %-14s %5d ms  [%s]\n",
			s.Index, s.Agent, "("+s.Kind+")", s.DurationMs, status))
	}
	return sb.String()
}
