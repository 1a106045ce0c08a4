package extract

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// bare links or markdown links
	linkRegex = regexp.MustCompile(`(https://\S+)|\[[^\]]+\]\((https://\S+)\)`)

	githubFilesPathRegex = regexp.MustCompile(`^/[^/]+/GT-New-Horizons-Modpack/files/.+$`)
	pasteEEPathRegex     = regexp.MustCompile(`^/p/[^/]+/.+$`)
)

var (
	// ErrSuspiciousLink is returned for links to a known host that do not look like a paste.
	ErrSuspiciousLink = errors.New("suspicious link")
	// ErrNotImplemented is returned for hosts whose content cannot be fetched yet.
	ErrNotImplemented = errors.New("host not implemented")
	// ErrUnknownHost is returned for links to hosts that do not serve crash reports.
	ErrUnknownHost = errors.New("unknown host")
)

const ubuntuPasteNote = "Please refrain from posting crash reports to paste.ubuntu.com. " +
	"They might require login to be viewed and our automated analysis tool (like this) cannot read their content."

// Resolved is where to download a linked paste from. When URL is empty the link
// is not downloaded and Note, if set, is shown to the issue author.
type Resolved struct {
	URL  string
	Note string
}

// FindLinks returns the https links in text, in order of appearance, without duplicates.
func FindLinks(text string) []string {
	seen := make(map[string]bool)
	var links []string

	for _, m := range linkRegex.FindAllStringSubmatch(text, -1) {
		link := m[1]
		if link == "" {
			link = m[2]
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}

	return links
}

// Resolve maps a link to a paste site onto the URL serving its raw content.
func Resolve(link string) (Resolved, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Resolved{}, ErrSuspiciousLink
	}

	switch u.Hostname() {
	case "pastebin.com":
		if !singleSegment(u) {
			return Resolved{}, ErrSuspiciousLink
		}
		return Resolved{URL: u.Scheme + "://" + u.Hostname() + "/raw" + u.Path}, nil

	case "github.com":
		if !githubFilesPathRegex.MatchString(u.Path) {
			return Resolved{}, ErrUnknownHost
		}
		if u.RawQuery != "" {
			return Resolved{}, ErrSuspiciousLink
		}
		return Resolved{URL: link}, nil

	case "gist.github.com":
		return Resolved{}, ErrNotImplemented

	case "paste.ee":
		if u.RawQuery != "" || !pasteEEPathRegex.MatchString(u.Path) {
			return Resolved{}, ErrSuspiciousLink
		}
		return Resolved{URL: u.Scheme + "://" + u.Hostname() + "/d" + u.Path[2:]}, nil

	case "mclo.gs":
		if !singleSegment(u) {
			return Resolved{}, ErrSuspiciousLink
		}
		return Resolved{URL: "https://api.mclo.gs/1/raw" + u.Path}, nil

	case "paste.ubuntu.com":
		return Resolved{Note: ubuntuPasteNote}, nil
	}

	return Resolved{}, ErrUnknownHost
}

// singleSegment reports whether u has no query and a path of exactly one segment.
func singleSegment(u *url.URL) bool {
	if u.RawQuery != "" || u.Path == "" || u.Path == "/" {
		return false
	}
	return !strings.Contains(u.Path[1:], "/")
}
