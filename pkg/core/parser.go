package core

import (
	"bufio"
	"regexp"
	"strings"
)

const (
	// CrashReportHeader opens every Forge crash report.
	CrashReportHeader = "---- Minecraft Crash Report ----"
	// ModdedMarker is the last line of the system details section of a complete report.
	ModdedMarker = "Is Modded"

	// stack trace starts after header, quote, blank, time, description and blank lines
	stackTraceOffset = 6
)

var (
	modLineRegex     = regexp.MustCompile(`^([ULCHIJADE]+)\s+([^{ \t][^{]*)\{([^}]+)\} \[(.+)\] \((.+)\)$`)
	javaVersionRegex = regexp.MustCompile(`Java Version: (\S+),`)
)

// coremods that show up as minecraft.jar in the mod table, mapped to their real jar name
var coremodFilenames = map[string]func(modID, version string) string{
	"CodeChickenCore": modIDFilename,
	"PlayerAPI":       modIDFilename,
}

func modIDFilename(modID, version string) string {
	return modID + "-" + version + ".jar"
}

// CrashReport is a piece of text handed in by the issue author together with
// the views derived from it. Text that is not a crash report keeps only its content.
type CrashReport struct {
	URL           string
	Content       string
	IsCrashReport bool
	StackTrace    []string
	Mods          []InstalledMod
	Truncated     bool
	JavaVersion   string
	Side          Side
}

// ParseCrashReport derives stack trace, mod table and environment details from content.
func ParseCrashReport(url, content string) *CrashReport {
	report := &CrashReport{
		URL:     url,
		Content: content,
		Side:    SideBoth,
	}

	if !strings.HasPrefix(strings.TrimLeft(content, " \t\r\n"), CrashReportHeader) {
		return report
	}

	report.IsCrashReport = true
	report.Truncated = !strings.Contains(content, ModdedMarker)
	report.StackTrace = parseStackTrace(content)
	report.Mods = parseModTable(content)

	if m := javaVersionRegex.FindStringSubmatch(content); m != nil {
		report.JavaVersion = strings.TrimSpace(m[1])
	}

	report.Side = detectSide(content, report.IsRecentJava())

	return report
}

// IsJava8 reports whether the game ran on a Java 8 runtime.
func (r *CrashReport) IsJava8() bool {
	return strings.HasPrefix(r.JavaVersion, "1.8.0")
}

// IsRecentJava reports whether the game ran on Java 9 or newer.
// Since Java 9 the major version is no longer prefixed with "1.".
func (r *CrashReport) IsRecentJava() bool {
	return r.JavaVersion != "" && !strings.HasPrefix(r.JavaVersion, "1.")
}

func parseStackTrace(content string) []string {
	lines := strings.Split(strings.TrimLeft(content, " \t\r\n"), "\n")
	if len(lines) <= stackTraceOffset {
		return nil
	}

	var trace []string
	for _, line := range lines[stackTraceOffset:] {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		trace = append(trace, line)
	}

	return trace
}

func parseModTable(content string) []InstalledMod {
	var mods []InstalledMod
	inTable := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if !inTable {
			if strings.Contains(line, "States") {
				inTable = true
			}
			continue
		}

		mod, ok, err := parseModLine(strings.TrimSpace(line))
		if err != nil {
			break
		}
		if ok {
			mods = append(mods, mod)
		}
	}

	return mods
}

// parseModLine parses one mod table row. ok is false for rows that are valid
// but carry no installable jar (FML, Forge, unknown coremods).
func parseModLine(line string) (InstalledMod, bool, error) {
	m := modLineRegex.FindStringSubmatch(line)
	if m == nil {
		return InstalledMod{}, false, &ModLineError{Line: line}
	}

	status, modID, version, name, filename := m[1], m[2], m[3], m[4], m[5]

	if modID == "FML" || modID == "Forge" {
		return InstalledMod{}, false, nil
	}

	if filename == "minecraft.jar" {
		guess, known := coremodFilenames[modID]
		if !known {
			return InstalledMod{}, false, nil
		}
		filename = guess(modID, version)
	}

	return InstalledMod{
		ModID:    modID,
		Version:  version,
		Name:     name,
		Filename: filename,
		Errored:  strings.Contains(status, "E"),
		Disabled: strings.Contains(status, "D"),
	}, true, nil
}

func detectSide(content string, recentJava bool) Side {
	switch {
	case strings.Contains(content, "map_client.txt"):
		if recentJava {
			return SideClientJava9
		}
		return SideClient
	case strings.Contains(content, "map_server.txt"):
		if recentJava {
			return SideServerJava9
		}
		return SideServer
	}

	return SideBoth
}

// ModLineError is returned for a line that does not belong to the mod table
type ModLineError struct {
	Line string
}

func (e *ModLineError) Error() string {
	return "invalid mod table line: " + e.Line
}
