package planner

import (
	"fmt"
	"strings"

	"agentric/internal/roster"
)

func teamList(team []roster.Agent) string {
	var sb strings.Builder
	for i, a := range team {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("- %s (%s): %s", a.Name, a.Logic, a.Role))
	}
	return sb.String()
}

// RemotePlanPrompt is sent together with PlanSchema.
func RemotePlanPrompt(objective string, team []roster.Agent) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Objective: \"%s\"\n\n", objective))
	sb.WriteString("Available Team:\n")
	sb.WriteString(teamList(team) + "\n\n")

	sb.WriteString("Analyze the objective and the available agents. Your goal is to create a JSON object that represents a plan to achieve the objective.\n\n")
	sb.WriteString("First, decide if this is a 'simple' task that can be handled by a single agent, or a 'complex' task requiring a multi-step plan.\n")
	sb.WriteString("- A task is 'simple' if it directly matches the role of a single agent and requires no further steps (e.g., \"summarize this\", \"format this code\", \"analyze sentiment\").\n")
	sb.WriteString("- A task is 'complex' if it requires multiple, distinct steps, collaboration, or a sequence of actions (e.g., \"design and then code a function\", \"read a file and then summarize it\").\n\n")
	sb.WriteString("- If the task is 'simple', set 'isSimple' to true and provide the 'agentName' of the single best agent and a clear, concise 'task'.\n")
	sb.WriteString("- If the task is 'complex', set 'isSimple' to false and provide a 'plan': an array of steps, each with an 'agentName' and a 'task', in execution order.\n\n")
	sb.WriteString("Use only agent names from the Available Team. Output only the JSON object, adhering strictly to the schema.\n")

	return sb.String()
}

// LocalPlanPrompt spells the expected JSON out for models without schema support.
func LocalPlanPrompt(objective string, team []roster.Agent) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Objective: \"%s\"\n\n", objective))
	sb.WriteString("Available Team:\n")
	sb.WriteString(teamList(team) + "\n\n")

	sb.WriteString("Analyze the objective. Is it a 'simple' one-step task, or a 'complex' multi-step task?\n")
	sb.WriteString("- If simple, respond with a JSON object: {\"isSimple\": true, \"agentName\": \"AGENT_NAME\", \"task\": \"TASK_FOR_AGENT\"}\n")
	sb.WriteString("- If complex, respond with a JSON object: {\"isSimple\": false, \"plan\": [{\"agentName\": \"AGENT_1\", \"task\": \"TASK_1\"}, {\"agentName\": \"AGENT_2\", \"task\": \"TASK_2\"}]}\n")
	sb.WriteString("Your output must be ONLY the JSON object.\n")

	return sb.String()
}

// AgentPrompt is the instruction given to a model-backed agent for one step.
func AgentPrompt(agent roster.Agent, task, missionContext string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are the agent: %s.\n", agent.Name))
	sb.WriteString(fmt.Sprintf("Your Role: %s\n", agent.Role))
	sb.WriteString(fmt.Sprintf("Your assigned task is: \"%s\"\n\n", task))
	sb.WriteString("Here is the context from previous steps in the mission:\n")
	sb.WriteString("---\n")
	sb.WriteString(missionContext + "\n")
	sb.WriteString("---\n\n")
	sb.WriteString("Based on your role and the provided context, execute your task. Provide a concise and direct response containing only the result of your task.\n")

	return sb.String()
}
