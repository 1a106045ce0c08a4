// Package triage ties extraction, rule evaluation and the modlist check together
// for a single issue.
package triage

import (
	"context"

	"github.com/ksysoev/crash-triage/pkg/core"
	"github.com/ksysoev/crash-triage/pkg/extract"
)

// Extractor collects crash reports from issue form sections
type Extractor interface {
	Extract(ctx context.Context, form map[string]string, sections []string) *extract.Result
}

// ModlistDiffer compares the mod list of a report with a pack version
type ModlistDiffer interface {
	Diff(ctx context.Context, report *core.CrashReport, version string) core.ModlistDiff
}

// Triager analyses the crash reports attached to an issue
type Triager struct {
	extractor Extractor
	differ    ModlistDiffer
	rules     []core.Rule
	config    core.Config
	log       core.Logger
}

// New creates a triager. differ may be nil to skip the modlist check.
func New(extractor Extractor, differ ModlistDiffer, config core.Config, log core.Logger) *Triager {
	return &Triager{
		extractor: extractor,
		differ:    differ,
		rules:     core.DefaultRules(),
		config:    config,
		log:       log,
	}
}

// Run analyses every crash report found in form.
func (t *Triager) Run(ctx context.Context, form map[string]string) core.Result {
	extracted := t.extractor.Extract(ctx, form, t.config.Sections)
	version := core.PackVersion(form[t.config.VersionField])

	res := core.Result{Notes: extracted.Notes}

	for i, report := range extracted.Reports {
		var diffFn func() core.ModlistDiff
		if t.differ != nil && version != "" {
			diffFn = func() core.ModlistDiff {
				return t.differ.Diff(ctx, report, version)
			}
		}

		analysis := core.Evaluate(t.rules, core.NewRuleContext(report, diffFn), t.log)
		t.log.Infof("Crash report %d (%s): %d finding(s)", i+1, report.URL, len(analysis.Findings))
		res.Reports = append(res.Reports, analysis)
	}

	if extracted.Text != "" {
		text := core.Evaluate(t.rules, core.NewRuleContext(core.ParseCrashReport("issue text", extracted.Text), nil), t.log)
		if len(text.Findings) > 0 {
			res.Text = &text
		}
	}

	return res
}
