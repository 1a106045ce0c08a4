package manifest

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/ksysoev/crash-triage/pkg/core"
)

// mods that never show up in the mod table of a crash report:
// healer has no mod container and CodeChickenLib has no entry point
var invisibleMods = []string{"healer", "codechickenlib"}

// Getter returns the manifest of a pack version and the assets database
// resolving manifest entries to jar files
type Getter interface {
	Get(ctx context.Context, version string) (*Manifest, error)
	Assets(ctx context.Context) (*Assets, error)
}

// ExpectedMod is a manifest entry resolved to the jar file it installs.
// Filename is empty when the assets database does not know the version.
type ExpectedMod struct {
	Name     string
	Version  string
	Filename string
}

// Differ compares reported mod lists with the manifest of the reported pack version
type Differ struct {
	manifests     Getter
	ignoreMissing []string
	log           core.Logger
}

// NewDiffer creates a differ. ignoreMissing lists extra name fragments of mods
// that are never reported as missing.
func NewDiffer(manifests Getter, ignoreMissing []string, log core.Logger) *Differ {
	ignore := append([]string{}, invisibleMods...)
	for _, name := range ignoreMissing {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			ignore = append(ignore, name)
		}
	}

	return &Differ{manifests: manifests, ignoreMissing: ignore, log: log}
}

// Diff compares the mod files of report with the manifest of version. A V1 manifest
// yields DiffUnsupported and a fetch failure DiffUnavailable; neither is an error.
func (d *Differ) Diff(ctx context.Context, report *core.CrashReport, version string) core.ModlistDiff {
	m, err := d.manifests.Get(ctx, version)
	switch {
	case errors.Is(err, ErrUnsupported):
		d.log.Debugf("Pack version %s uses a V1 manifest, skipping mod list check", version)
		return core.ModlistDiff{Status: core.DiffUnsupported}
	case err != nil:
		d.log.Errorf("error fetching mod list of pack version %q: %v", version, err)
		return core.ModlistDiff{Status: core.DiffUnavailable}
	}

	assets, err := d.manifests.Assets(ctx)
	if err != nil {
		d.log.Errorf("error fetching assets for pack version %q: %v", version, err)
		return core.ModlistDiff{Status: core.DiffUnavailable}
	}

	return Compare(report.Mods, d.resolve(m.ModsFor(report.Side), assets), assets, d.ignored(report))
}

func (d *Differ) resolve(entries []Entry, assets *Assets) []ExpectedMod {
	expected := make([]ExpectedMod, 0, len(entries))
	for _, e := range entries {
		filename, ok := assets.Filename(e.ModID, e.Version)
		if !ok {
			d.log.Debugf("No file known for %s %s", e.ModID, e.Version)
		}
		expected = append(expected, ExpectedMod{Name: e.ModID, Version: e.Version, Filename: filename})
	}
	return expected
}

func (d *Differ) ignored(report *core.CrashReport) func(ExpectedMod) bool {
	return func(mod ExpectedMod) bool {
		file, name := strings.ToLower(mod.Filename), strings.ToLower(mod.Name)
		for _, fragment := range d.ignoreMissing {
			if strings.Contains(file, fragment) || strings.Contains(name, fragment) {
				return true
			}
		}
		// only needed on Java 9+
		return !report.IsRecentJava() && (strings.Contains(file, "lwjgl3ify") || strings.Contains(name, "lwjgl3ify"))
	}
}

// Compare diffs installed jar files against the expected ones. A missing jar and an
// added jar of the same asset are reported as a version mismatch instead. Expected
// mods without a known file are only checked through such a pair. assets and
// skipMissing may be nil. Results are sorted.
func Compare(installed []core.InstalledMod, expected []ExpectedMod, assets *Assets, skipMissing func(ExpectedMod) bool) core.ModlistDiff {
	diff := core.ModlistDiff{Status: core.DiffCompared}

	want := make(map[string]bool, len(expected))
	for _, e := range expected {
		if e.Filename != "" {
			want[e.Filename] = true
		}
	}

	have := make(map[string]bool, len(installed))
	for _, mod := range installed {
		have[mod.Filename] = true
	}

	// expected mods without their jar, by asset name
	absent := make(map[string]ExpectedMod)
	for _, e := range expected {
		if e.Filename == "" || !have[e.Filename] {
			absent[strings.ToLower(e.Name)] = e
		}
	}

	for _, mod := range installed {
		if want[mod.Filename] {
			continue
		}

		if v, ok := assets.Lookup(mod.Filename); ok {
			key := strings.ToLower(v.Name)
			if e, ok := absent[key]; ok {
				delete(absent, key)
				if v.Version != e.Version {
					diff.Mismatched = append(diff.Mismatched, core.VersionMismatch{
						ModID:    e.Name,
						Expected: e.Version,
						Actual:   v.Version,
					})
				}
				continue
			}
		}

		diff.Extra = append(diff.Extra, mod)
	}

	for _, e := range absent {
		if e.Filename == "" || (skipMissing != nil && skipMissing(e)) {
			continue
		}
		diff.Missing = append(diff.Missing, e.Filename)
	}

	sort.Strings(diff.Missing)
	sort.Slice(diff.Extra, func(i, j int) bool { return diff.Extra[i].Filename < diff.Extra[j].Filename })
	sort.Slice(diff.Mismatched, func(i, j int) bool { return diff.Mismatched[i].ModID < diff.Mismatched[j].ModID })

	return diff
}
