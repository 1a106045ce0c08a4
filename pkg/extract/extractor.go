package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/ksysoev/crash-triage/pkg/core"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	maxDownloadSize      = 16 << 20
	maxParallelDownloads = 4
)

// first line of fml-client-latest.log and friends
var forgeLogRegex = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[[^/]+/(INFO|DEBUG|TRACE|WARN|ERROR)\] \[.+/.+\]:`)

// ErrTooLarge is returned for pastes larger than the download limit.
var ErrTooLarge = errors.New("paste too large")

// Extractor collects crash reports from the sections of an issue form
type Extractor struct {
	client  *http.Client
	log     core.Logger
	maxSize int64
}

// Result holds the reports found in an issue and the notes for its author
type Result struct {
	Reports []*core.CrashReport
	Notes   []string
	// Text is the section text with inline crash reports cut out.
	Text string
}

// New creates an extractor downloading pastes with client.
func New(client *http.Client, log core.Logger) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Extractor{client: client, log: log, maxSize: maxDownloadSize}
}

// Extract collects crash reports from the named sections. Sections missing from
// the form are skipped. Download problems never fail the extraction.
// Reports keep the order in which they appear in the form.
func (e *Extractor) Extract(ctx context.Context, form map[string]string, sections []string) *Result {
	res := &Result{}
	seen := make(map[string]bool)

	var (
		texts  []string
		queue  []*pending
		inline int
	)

	for _, name := range sections {
		data, ok := form[strings.TrimSpace(name)]
		if !ok {
			e.log.Debugf("Section %q not present in issue form", name)
			continue
		}

		reports, rest := SplitInlineReports(data)
		for _, content := range reports {
			inline++
			queue = append(queue, &pending{report: core.ParseCrashReport(fmt.Sprintf("inline %d", inline), content)})
		}
		texts = append(texts, rest)

		for _, link := range FindLinks(data) {
			if seen[link] {
				e.log.Debugf("Duplicate url: %s", link)
				continue
			}
			seen[link] = true

			if resolved, ok := e.resolve(link); ok {
				queue = append(queue, &pending{link: link, resolved: resolved})
			}
		}
	}

	e.downloadAll(ctx, queue)

	for _, p := range queue {
		if report := e.collect(p, res); report != nil {
			res.Reports = append(res.Reports, report)
		}
	}

	res.Text = strings.TrimSpace(strings.Join(texts, "\n"))

	return res
}

// pending is a crash report source waiting for its content.
// Inline reports are parsed up front and carry report.
type pending struct {
	report   *core.CrashReport
	link     string
	resolved Resolved
	content  string
	err      error
}

func (e *Extractor) resolve(link string) (Resolved, bool) {
	resolved, err := Resolve(link)
	switch {
	case errors.Is(err, ErrSuspiciousLink):
		e.log.Warningf("Suspicious link: %s. Not processing this file", link)
		return Resolved{}, false
	case errors.Is(err, ErrNotImplemented):
		e.log.Warningf("Fetching %s is not implemented. Not processing this file", link)
		return Resolved{}, false
	case err != nil:
		e.log.Noticef("Unknown url %s. Probably not a crash report", link)
		return Resolved{}, false
	}

	return resolved, true
}

func (e *Extractor) downloadAll(ctx context.Context, queue []*pending) {
	var eg errgroup.Group
	eg.SetLimit(maxParallelDownloads)

	for _, p := range queue {
		if p.report != nil || p.resolved.URL == "" {
			continue
		}

		p := p
		eg.Go(func() error {
			p.content, p.err = e.download(ctx, p.resolved.URL)
			return nil
		})
	}

	_ = eg.Wait()
}

func (e *Extractor) collect(p *pending, res *Result) *core.CrashReport {
	if p.report != nil {
		return p.report
	}

	if p.resolved.URL == "" {
		if p.resolved.Note != "" {
			res.Notes = append(res.Notes, p.resolved.Note)
		}
		return nil
	}

	if errors.Is(p.err, ErrTooLarge) {
		e.log.Warningf("Content of %s exceeds %d bytes. Not processing this file", p.link, e.maxSize)
		return nil
	}

	if p.err != nil {
		e.log.Warningf("Failed to download url: %s. Original file link: %s: %v", p.resolved.URL, p.link, p.err)
		res.Notes = append(res.Notes, fmt.Sprintf("Failed to download url: %s. Original file link: %s", p.resolved.URL, p.link))
		return nil
	}

	if strings.HasPrefix(p.content, core.CrashReportHeader) {
		return core.ParseCrashReport(p.resolved.URL, p.content)
	}

	if forgeLogRegex.MatchString(p.content) {
		e.log.Noticef("Found potential log in %s. Parsing not implemented for now.", p.link)
		return nil
	}

	e.log.Debugf("Content of %s is not a crash report", p.link)

	return nil
}

func (e *Extractor) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create download request", goerr.V("url", url))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to download", goerr.V("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", goerr.New("unexpected status code", goerr.V("url", url), goerr.V("status", resp.StatusCode))
	}

	// one byte past the limit tells a cut paste from one that fits exactly
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxSize+1))
	if err != nil {
		return "", goerr.Wrap(err, "failed to read response body", goerr.V("url", url))
	}
	if int64(len(data)) > e.maxSize {
		return "", goerr.Wrap(ErrTooLarge, "paste exceeds download limit", goerr.V("url", url), goerr.V("limit", e.maxSize))
	}

	return string(data), nil
}

// SplitInlineReports cuts crash reports pasted directly into text. A report runs
// from its header to the end of its "Is Modded" line; a report without that line
// runs up to the next header or the end of text and is therefore truncated.
// rest is text with the reports removed.
func SplitInlineReports(text string) (reports []string, rest string) {
	var other strings.Builder

	pos := 0
	for {
		start := strings.Index(text[pos:], core.CrashReportHeader)
		if start == -1 {
			other.WriteString(text[pos:])
			break
		}
		start += pos
		other.WriteString(text[pos:start])

		end := len(text)
		if next := strings.Index(text[start+len(core.CrashReportHeader):], core.CrashReportHeader); next != -1 {
			end = start + len(core.CrashReportHeader) + next
		}

		if modded := strings.Index(text[start:end], core.ModdedMarker); modded != -1 {
			lineEnd := strings.IndexByte(text[start+modded:end], '\n')
			if lineEnd != -1 {
				end = start + modded + lineEnd
			}
		}

		reports = append(reports, strings.TrimRight(text[start:end], " \t\r\n"))
		pos = end
	}

	return reports, strings.TrimSpace(other.String())
}
