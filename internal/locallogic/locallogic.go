// Package locallogic holds the deterministic agents that run without a model.
package locallogic

import (
	"fmt"
	"regexp"
	"strings"
)

// Func computes an agent's output from its task and the mission context.
type Func func(task, input string) string

var functions = map[string]Func{
	"Format As Code":         formatAsCode,
	"Markdown Table Creator": markdownTable,
	"Sentiment Analyzer":     sentiment,
	"Data Sanitization Unit": sanitize,
}

// Has reports whether name has a dedicated function.
func Has(name string) bool {
	_, ok := functions[name]
	return ok
}

// Names lists the agents with dedicated functions.
func Names() []string {
	out := make([]string, 0, len(functions))
	for n := range functions {
		out = append(out, n)
	}
	return out
}

// Execute runs the named agent. Unknown names get a generic acknowledgement.
func Execute(name, task, input string) string {
	if fn, ok := functions[name]; ok {
		return fn(task, input)
	}
	return fmt.Sprintf("(Placeholder) Local task %q for agent %q executed.", task, name)
}

var languagePattern = regexp.MustCompile(`language:\s*(\w+)`)

func formatAsCode(task, input string) string {
	lang := "plaintext"
	if m := languagePattern.FindStringSubmatch(task); m != nil {
		lang = m[1]
	}
	return "```" + lang + "\n" + input + "\n```"
}

var (
	positiveWords = []string{"happy", "amazing", "love"}
	negativeWords = []string{"sad", "terrible", "hate"}
)

func sentiment(_, input string) string {
	lower := strings.ToLower(input)
	switch {
	case containsAny(lower, positiveWords):
		return "Sentiment: **Positive**"
	case containsAny(lower, negativeWords):
		return "Sentiment: **Negative**"
	}
	return "Sentiment: **Neutral**"
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

func sanitize(_, input string) string {
	return emailPattern.ReplaceAllString(input, "[REDACTED_EMAIL]")
}

// markdownTable builds a table from comma separated lines in the task, or
// failing that in the most recent output of the mission context. The first
// row is the header.
func markdownTable(task, input string) string {
	rows := csvRows(task)
	if len(rows) == 0 {
		rows = csvRows(lastOutput(input))
	}
	if len(rows) == 0 {
		return fmt.Sprintf("(Placeholder) A markdown table for %q based on the input would be generated here.", task)
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = strings.ReplaceAll(cells[i], "|", `\|`)
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sb.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func csvRows(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, ",") {
			continue
		}
		// drop a leading label such as "Create a table:"
		if i := strings.LastIndex(line, ":"); i >= 0 && i < strings.Index(line, ",") {
			line = line[i+1:]
		}
		var cells []string
		for _, c := range strings.Split(line, ",") {
			cells = append(cells, strings.TrimSpace(c))
		}
		rows = append(rows, cells)
	}
	return rows
}

const outputMarker = "\n--- Output from "

func lastOutput(input string) string {
	i := strings.LastIndex(input, outputMarker)
	if i < 0 {
		return ""
	}
	rest := input[i+len(outputMarker):]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		return rest[nl+1:]
	}
	return ""
}
