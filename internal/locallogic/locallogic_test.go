package locallogic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute(t *testing.T) {
	testCases := []struct {
		name  string
		agent string
		task  string
		input string
		want  string
	}{
		{
			name:  "Format with language",
			agent: "Format As Code",
			task:  "Format this, language: go",
			input: "func main() {}",
			want:  "```go\nfunc main() {}\n```",
		},
		{
			name:  "Format defaults to plaintext",
			agent: "Format As Code",
			task:  "Format the following content as a code block.",
			input: "Initial Objective: format hello",
			want:  "```plaintext\nInitial Objective: format hello\n```",
		},
		{
			name:  "Positive sentiment",
			agent: "Sentiment Analyzer",
			input: "Initial Objective: sentiment for I LOVE this",
			want:  "Sentiment: **Positive**",
		},
		{
			name:  "Negative sentiment",
			agent: "Sentiment Analyzer",
			input: "what a terrible day",
			want:  "Sentiment: **Negative**",
		},
		{
			name:  "Neutral sentiment",
			agent: "Sentiment Analyzer",
			input: "the sky is blue",
			want:  "Sentiment: **Neutral**",
		},
		{
			name:  "Emails are redacted",
			agent: "Data Sanitization Unit",
			input: "Contact jane.doe@example.com or bob@corp.io today.",
			want:  "Contact [REDACTED_EMAIL] or [REDACTED_EMAIL] today.",
		},
		{
			name:  "Unknown agent falls back",
			agent: "Mystery Agent",
			task:  "do it",
			want:  `(Placeholder) Local task "do it" for agent "Mystery Agent" executed.`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Execute(tc.agent, tc.task, tc.input))
		})
	}
}

func TestMarkdownTable(t *testing.T) {
	t.Run("Rows from the task", func(t *testing.T) {
		got := Execute("Markdown Table Creator", "Create a table: name, age\nAda, 36\nAlan, 41", "")
		assert.Equal(t, "| name | age |\n| --- | --- |\n| Ada | 36 |\n| Alan | 41 |", got)
	})

	t.Run("Rows from the last output", func(t *testing.T) {
		ctx := "Initial Objective: x\n\n--- Output from A ---\nold, row\n\n--- Output from B ---\nk, v\n1, 2"
		got := Execute("Markdown Table Creator", "tabulate", ctx)
		assert.Equal(t, "| k | v |\n| --- | --- |\n| 1 | 2 |", got)
	})

	t.Run("Ragged rows are padded", func(t *testing.T) {
		got := Execute("Markdown Table Creator", "a, b, c\n1, 2", "")
		assert.Equal(t, "| a | b | c |\n| --- | --- | --- |\n| 1 | 2 |  |", got)
	})

	t.Run("Nothing tabular", func(t *testing.T) {
		got := Execute("Markdown Table Creator", "make a table", "no commas here")
		assert.Contains(t, got, "(Placeholder) A markdown table")
	})
}

func TestHas(t *testing.T) {
	assert.True(t, Has("Format As Code"))
	assert.False(t, Has("The Novelist"))
	assert.Len(t, Names(), 4)
}
