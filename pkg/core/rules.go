package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Rule names, also used as action output values.
const (
	RuleTruncatedReport  = "truncated-report"
	RuleWrongLogFile     = "wrong-log-file"
	RuleWorldCorruption  = "world-corruption"
	RuleAngelicaRemoval  = "angelica-removal"
	RuleAngelicaOptifine = "angelica-optifine"
	RuleDevJar           = "dev-jar"
	RuleModlistDiff      = "modlist-diff"
)

var (
	wrongLogSignature = []string{
		"java.lang.NullPointerException",
		"at cpw.mods.fml.common.network.internal.FMLProxyPacket.func_148833_a(FMLProxyPacket.java:101)",
	}

	// stack trace fragments that only show up when region files are unreadable
	corruptionStackSignatures = []string{"ChunkIOProvider"}

	chunkBuildFailed = "java.lang.RuntimeException: Chunk build failed"

	angelicaJarRegex = regexp.MustCompile(`(?i)\bangelica-[\w.+-]*\.jar`)
	optifineJarRegex = regexp.MustCompile(`(?i)\boptifine_[\w.+-]*`)
	jarNameRegex     = regexp.MustCompile(`[\w.+-]+\.jar\b`)
	devVersionRegex  = regexp.MustCompile(`(?i)(-dev\b|-pre\b|-snapshot\b|[-.]dirty\b|\+\d+-g[0-9a-f]{7,})`)
)

// Rule is a named predicate over a single piece of reported text.
// A terminal rule stops the evaluation of later rules when it fires.
type Rule struct {
	Name     string
	Terminal bool
	Check    func(rc *RuleContext) (string, bool)
}

// RuleContext is the input shared by all rules evaluated against one report.
type RuleContext struct {
	Report *CrashReport

	diffFn func() ModlistDiff
	diff   *ModlistDiff
}

// NewRuleContext creates a context for report. diffFn is called at most once,
// and only when a rule asks for the modlist comparison; it may be nil.
func NewRuleContext(report *CrashReport, diffFn func() ModlistDiff) *RuleContext {
	return &RuleContext{Report: report, diffFn: diffFn}
}

// ModlistDiff returns the comparison of the reported modlist with the pack manifest.
func (rc *RuleContext) ModlistDiff() ModlistDiff {
	if rc.diff != nil {
		return *rc.diff
	}

	d := ModlistDiff{Status: DiffUnavailable}
	if rc.diffFn != nil && rc.Report.IsCrashReport && len(rc.Report.Mods) > 0 {
		d = rc.diffFn()
	}
	rc.diff = &d

	return d
}

// Analysis is the outcome of evaluating the rule set against one report
type Analysis struct {
	Report   *CrashReport
	Findings []Finding
	Diff     *ModlistDiff
	Terminal bool
}

// DefaultRules returns the rule set in the order findings should be reported.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleTruncatedReport, Check: checkTruncated},
		{Name: RuleWrongLogFile, Check: checkWrongLogFile, Terminal: true},
		{Name: RuleWorldCorruption, Check: checkWorldCorruption, Terminal: true},
		{Name: RuleAngelicaRemoval, Check: checkAngelicaRemoval},
		{Name: RuleAngelicaOptifine, Check: checkAngelicaOptifine},
		{Name: RuleDevJar, Check: checkDevJar},
		{Name: RuleModlistDiff, Check: checkModlistDiff},
	}
}

// Evaluate runs rules in order against rc. A rule that panics is logged and
// treated as not matching.
func Evaluate(rules []Rule, rc *RuleContext, log Logger) Analysis {
	analysis := Analysis{Report: rc.Report}

	for _, rule := range rules {
		msg, ok := safeCheck(rule, rc, log)
		if !ok {
			continue
		}

		analysis.Findings = append(analysis.Findings, Finding{Rule: rule.Name, Message: msg})

		if rule.Terminal {
			analysis.Terminal = true
			break
		}
	}

	// only set when a rule asked for the comparison
	analysis.Diff = rc.diff

	return analysis
}

func safeCheck(rule Rule, rc *RuleContext, log Logger) (msg string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Errorf("rule %s failed on %s: %v", rule.Name, rc.Report.URL, r)
			}
			msg, ok = "", false
		}
	}()

	return rule.Check(rc)
}

func checkTruncated(rc *RuleContext) (string, bool) {
	if !rc.Report.IsCrashReport || !rc.Report.Truncated {
		return "", false
	}

	return "CRASH REPORT IS TRUNCATED. This will not help to get your problem fixed!!!", true
}

func checkWrongLogFile(rc *RuleContext) (string, bool) {
	trace := rc.Report.StackTrace
	if len(trace) < len(wrongLogSignature) {
		return "", false
	}

	for i, line := range wrongLogSignature {
		if trace[i] != line {
			return "", false
		}
	}

	return "This crash report is near useless. Try post fml-client-latest.log instead.", true
}

func checkWorldCorruption(rc *RuleContext) (string, bool) {
	const msg = "This crash report suggests world corruption. Try restore from a backup."

	for _, line := range rc.Report.StackTrace {
		if containsAny(line, corruptionStackSignatures) {
			return msg, true
		}
	}

	// plain log text has no parsed stack trace, look at frames directly
	if !rc.Report.IsCrashReport {
		for _, line := range strings.Split(rc.Report.Content, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "at ") && containsAny(line, corruptionStackSignatures) {
				return msg, true
			}
		}
	}

	return "", false
}

func checkAngelicaRemoval(rc *RuleContext) (string, bool) {
	trace := rc.Report.StackTrace
	if len(trace) == 0 || trace[0] != chunkBuildFailed {
		return "", false
	}

	return "Possibly an Angelica problem. Try remove this mod and see if this fixes your problem.", true
}

func checkAngelicaOptifine(rc *RuleContext) (string, bool) {
	angelica, optifine := false, false

	for _, mod := range rc.Report.Mods {
		id := strings.ToLower(mod.ModID)
		file := strings.ToLower(mod.Filename)
		if id == "angelica" || strings.HasPrefix(file, "angelica") {
			angelica = true
		}
		if id == "optifine" || strings.Contains(file, "optifine") {
			optifine = true
		}
	}

	if !angelica {
		angelica = angelicaJarRegex.MatchString(rc.Report.Content)
	}
	if !optifine {
		optifine = optifineJarRegex.MatchString(rc.Report.Content)
	}

	if !angelica || !optifine {
		return "", false
	}

	return "Both Angelica and OptiFine are installed. They are incompatible, remove OptiFine.", true
}

func checkDevJar(rc *RuleContext) (string, bool) {
	seen := make(map[string]bool)
	var devJars []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			devJars = append(devJars, name)
		}
	}

	for _, mod := range rc.Report.Mods {
		if devVersionRegex.MatchString(mod.Version) {
			add(fmt.Sprintf("%s (%s)", mod.Filename, mod.Version))
		}
	}

	if len(rc.Report.Mods) == 0 {
		for _, jar := range jarNameRegex.FindAllString(rc.Report.Content, -1) {
			if devVersionRegex.MatchString(jar) {
				add(jar)
			}
		}
	}

	if len(devJars) == 0 {
		return "", false
	}

	sort.Strings(devJars)

	return "Development builds detected: " + strings.Join(devJars, ", ") +
		". Please reproduce with released versions of these mods.", true
}

func checkModlistDiff(rc *RuleContext) (string, bool) {
	diff := rc.ModlistDiff()
	if diff.Status != DiffCompared || diff.Empty() {
		return "", false
	}

	return fmt.Sprintf("The mod list differs from the official pack: %d missing, %d added, %d with a different version.",
		len(diff.Missing), len(diff.Extra), len(diff.Mismatched)), true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
