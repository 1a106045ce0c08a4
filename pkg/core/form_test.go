package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIssueForm(t *testing.T) {
	body := `Thanks for the template!

### Your Pack Version

2.6.1 (client)

### Crash Report

https://pastebin.com/abc123

### Additional Information

_No response_
`

	got := ParseIssueForm(body)

	assert.Equal(t, map[string]string{
		"Your Pack Version":      "2.6.1 (client)",
		"Crash Report":           "https://pastebin.com/abc123",
		"Additional Information": "",
	}, got)
}

func TestParseIssueForm_NoHeadings(t *testing.T) {
	assert.Empty(t, ParseIssueForm("just some text\nwithout any form"))
}

func TestPackVersion(t *testing.T) {
	tests := []struct {
		answer string
		want   string
	}{
		{answer: "2.6.1", want: "2.6.1"},
		{answer: " 2.7.0-beta-2 (server) ", want: "2.7.0-beta-2"},
		{answer: "Nightly 512", want: "nightly"},
		{answer: "nightly-512", want: "nightly-512"},
		{answer: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, PackVersion(tt.answer))
		})
	}
}
