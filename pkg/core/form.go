package core

import (
	"bufio"
	"strings"
)

const noResponse = "_No response_"

// ParseIssueForm splits an issue body rendered from an issue form into its sections.
// Each "### Heading" starts a section; the text up to the next heading is its value.
// Text before the first heading is dropped.
func ParseIssueForm(body string) map[string]string {
	sections := make(map[string]string)

	var (
		current string
		inForm  bool
		content []string
	)

	flush := func() {
		if !inForm {
			return
		}
		value := strings.TrimSpace(strings.Join(content, "\n"))
		if value == noResponse {
			value = ""
		}
		sections[current] = value
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if heading, ok := strings.CutPrefix(line, "### "); ok {
			flush()
			current = strings.TrimSpace(heading)
			inForm = true
			content = content[:0]
			continue
		}

		if inForm {
			content = append(content, line)
		}
	}
	flush()

	return sections
}

// PackVersion normalizes the free-form pack version answer, e.g. "2.6.1 (client)" -> "2.6.1".
func PackVersion(answer string) string {
	fields := strings.Fields(answer)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
