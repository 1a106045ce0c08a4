package core

// Side is the environment a crash report was produced on, or the environment a mod
// is meant to be installed on.
type Side string

const (
	SideClient      Side = "CLIENT"
	SideClientJava9 Side = "CLIENT_JAVA9"
	SideServer      Side = "SERVER"
	SideServerJava9 Side = "SERVER_JAVA9"
	SideBoth        Side = "BOTH"
	SideBothJava9   Side = "BOTH_JAVA9"
	SideNone        Side = "NONE"
)

// AppliesTo reports whether a mod declared for side s is installed on a game running as target.
func (s Side) AppliesTo(target Side) bool {
	switch s {
	case SideBoth:
		return true
	case SideClient:
		return target == SideClient || target == SideClientJava9
	case SideServer:
		return target == SideServer || target == SideServerJava9
	case SideClientJava9:
		return target == SideClientJava9
	case SideServerJava9:
		return target == SideServerJava9
	case SideBothJava9:
		return target == SideClientJava9 || target == SideServerJava9
	default:
		return false
	}
}

// Issue is the triggering issue as read from the event payload
type Issue struct {
	Number int
	Title  string
	Body   string
	Author string
}

// InstalledMod is one row of the mod table of a crash report
type InstalledMod struct {
	ModID    string
	Version  string
	Name     string
	Filename string
	Errored  bool
	Disabled bool
}

// Finding is a diagnostic produced by a single rule
type Finding struct {
	Rule    string
	Message string
}

// DiffStatus tells whether a modlist comparison actually took place
type DiffStatus int

const (
	// DiffCompared means the modlist was checked against a V2 manifest.
	DiffCompared DiffStatus = iota
	// DiffUnsupported means the pack version only has a V1 manifest.
	DiffUnsupported
	// DiffUnavailable means the manifest could not be fetched or no version was given.
	DiffUnavailable
)

func (s DiffStatus) String() string {
	switch s {
	case DiffCompared:
		return "compared"
	case DiffUnsupported:
		return "unsupported"
	default:
		return "unavailable"
	}
}

// VersionMismatch is a mod present on both sides with different versions
type VersionMismatch struct {
	ModID    string
	Expected string
	Actual   string
}

// ModlistDiff is the outcome of comparing a reported modlist with the pack manifest
type ModlistDiff struct {
	Status     DiffStatus
	Missing    []string
	Extra      []InstalledMod
	Mismatched []VersionMismatch
}

// Empty reports whether a completed comparison found nothing to report.
func (d ModlistDiff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Mismatched) == 0
}

// Config represents the GitHub Action configuration
type Config struct {
	GitHubToken       string
	Sections          []string
	VersionField      string
	PostComment       bool
	ManifestBaseURL   string
	NightlyRepository string
	NightlyWorkflowID int64
	IgnoreMissing     []string
	AssetsFile        string
}

// Logger is the subset of the action logging API used outside of main.
// *githubactions.Action satisfies it.
type Logger interface {
	Debugf(msg string, args ...any)
	Infof(msg string, args ...any)
	Noticef(msg string, args ...any)
	Warningf(msg string, args ...any)
	Errorf(msg string, args ...any)
}
