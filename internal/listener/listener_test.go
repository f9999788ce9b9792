package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYesNo(t *testing.T) {
	testCases := []struct {
		name    string
		answer  string
		wantYes bool
		wantOK  bool
	}{
		{name: "Short yes", answer: "y", wantYes: true, wantOK: true},
		{name: "Long yes with padding", answer: "  YES ", wantYes: true, wantOK: true},
		{name: "Short no", answer: "n", wantYes: false, wantOK: true},
		{name: "Long no", answer: "No", wantYes: false, wantOK: true},
		{name: "Anything else", answer: "maybe", wantYes: false, wantOK: false},
		{name: "Empty", answer: "", wantYes: false, wantOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			yes, ok := YesNo(tc.answer)
			assert.Equal(t, tc.wantYes, yes)
			assert.Equal(t, tc.wantOK, ok)
		})
	}
}
