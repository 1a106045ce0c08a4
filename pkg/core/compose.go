package core

import (
	"fmt"
	"strings"
)

const noMatchMessage = "No known problem matched automatically."

// Result is everything found while triaging one issue
type Result struct {
	// Notes are messages for the issue author raised while collecting reports.
	Notes []string
	// Reports holds one analysis per crash report, in the order they were found.
	Reports []Analysis
	// Text is the analysis of the issue text outside of crash reports, if any.
	Text *Analysis
}

// FindingNames returns the names of the rules that fired, first occurrence first.
func (r Result) FindingNames() []string {
	seen := make(map[string]bool)
	var names []string

	collect := func(a Analysis) {
		for _, f := range a.Findings {
			if !seen[f.Rule] {
				seen[f.Rule] = true
				names = append(names, f.Rule)
			}
		}
	}

	for _, a := range r.Reports {
		collect(a)
	}
	if r.Text != nil {
		collect(*r.Text)
	}

	return names
}

// Compose renders the result as a markdown comment. It returns an empty string
// when there is nothing worth telling the issue author.
func Compose(r Result) string {
	var out []string

	out = append(out, r.Notes...)

	if len(r.Reports) > 0 {
		out = append(out, fmt.Sprintf("Found %d linked crash report(s)", len(r.Reports)))
	}

	for _, a := range r.Reports {
		out = append(out, composeReport(a)...)
	}

	if r.Text != nil && len(r.Text.Findings) > 0 {
		out = append(out, "# Automated Analysis of Issue Text")
		for _, f := range r.Text.Findings {
			out = append(out, f.Message)
		}
	}

	return strings.Join(out, "\n")
}

func composeReport(a Analysis) []string {
	out := []string{"# Primitive Automated Analysis of Crash Report " + a.Report.URL}

	for _, f := range a.Findings {
		out = append(out, f.Message)
	}

	if len(a.Findings) == 0 {
		out = append(out, noMatchMessage)
	}

	if a.Terminal {
		return out
	}

	if len(a.Report.StackTrace) > 0 {
		out = append(out, "<details><summary>Stacktrace</summary>"+strings.Join(a.Report.StackTrace, "\n")+"</details>")
	}

	if a.Diff != nil && a.Diff.Status == DiffCompared {
		out = append(out, composeDiff(*a.Diff)...)
	}

	return out
}

func composeDiff(d ModlistDiff) []string {
	var out []string

	if len(d.Missing) > 0 {
		out = append(out, "<details><summary>Missing mods</summary>")
		for _, name := range d.Missing {
			out = append(out, "* "+name)
		}
		out = append(out, "</details>")
	}

	if len(d.Extra) > 0 {
		out = append(out, "<details><summary>Added mods</summary>")
		for _, mod := range d.Extra {
			out = append(out, fmt.Sprintf("* %s (%s)", mod.Filename, mod.Name))
		}
		out = append(out, "</details>")
	}

	if len(d.Mismatched) > 0 {
		out = append(out, "<details><summary>Mods with a different version</summary>")
		for _, m := range d.Mismatched {
			out = append(out, fmt.Sprintf("* %s: expected %s, found %s", m.ModID, m.Expected, m.Actual))
		}
		out = append(out, "</details>")
	}

	return out
}
