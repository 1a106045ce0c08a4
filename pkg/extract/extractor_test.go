package extract

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/sethvargo/go-githubactions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const completeReport = `---- Minecraft Crash Report ----
// Oops.

Time: 1/2/24 3:04 PM
Description: Unexpected error

java.lang.Error: boom

-- System Details --
	Is Modded: Definitely; Client brand changed to 'fml,forge'`

// rewriteTransport sends every request to the test server, keeping the original host in a header.
type rewriteTransport struct {
	target *url.URL
	base   *http.Transport
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Original-Host", req.URL.Host)
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return rt.base.RoundTrip(req)
}

func newTestExtractor(t *testing.T, handler http.Handler) (*Extractor, *bytes.Buffer) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	base := &http.Transport{}
	t.Cleanup(base.CloseIdleConnections)

	var logs bytes.Buffer
	action := githubactions.New(githubactions.WithWriter(&logs))

	return New(&http.Client{Transport: &rewriteTransport{target: target, base: base}}, action), &logs
}

func TestExtract(t *testing.T) {
	var (
		mu        sync.Mutex
		requested []string
	)
	record := func(r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		requested = append(requested, r.Header.Get("X-Original-Host")+r.URL.Path)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/raw/report", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte(completeReport))
	})
	mux.HandleFunc("/1/raw/forgelog", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte("[12:00:00] [main/INFO] [LaunchWrapper/LaunchWrapper]: Loading tweak class name cpw.mods.fml.common.launcher.FMLTweaker"))
	})
	mux.HandleFunc("/raw/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	extractor, logs := newTestExtractor(t, mux)

	form := map[string]string{
		"Crash Report": "Here: https://pastebin.com/report\n" +
			"and [the log](https://mclo.gs/forgelog)\n" +
			"https://pastebin.com/gone\n" +
			"https://paste.ubuntu.com/p/xyz/\n" +
			"https://pastebin.com/report",
		"Your Pack Version": "2.6.1",
	}

	res := extractor.Extract(context.Background(), form, []string{"Crash Report", "Missing Section"})

	require.Len(t, res.Reports, 1)
	assert.Equal(t, "https://pastebin.com/raw/report", res.Reports[0].URL)
	assert.True(t, res.Reports[0].IsCrashReport)
	assert.False(t, res.Reports[0].Truncated)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"pastebin.com/raw/report", "api.mclo.gs/1/raw/forgelog"}, requested, "duplicates are fetched once")

	assert.Equal(t, []string{
		"Failed to download url: https://pastebin.com/raw/gone. Original file link: https://pastebin.com/gone",
		ubuntuPasteNote,
	}, res.Notes)

	assert.Contains(t, logs.String(), "Found potential log in https://mclo.gs/forgelog")
}

func TestExtract_InlineReports(t *testing.T) {
	extractor, _ := newTestExtractor(t, http.NotFoundHandler())

	truncated := "---- Minecraft Crash Report ----\n// Oops.\n\nTime: now\nDescription: cut\n\njava.lang.Error: cut short"
	form := map[string]string{
		"Crash Report": "My game crashed:\n" + completeReport + "\ntrailing words\n" + truncated,
	}

	res := extractor.Extract(context.Background(), form, []string{"Crash Report"})

	require.Len(t, res.Reports, 2)
	assert.Equal(t, "inline 1", res.Reports[0].URL)
	assert.False(t, res.Reports[0].Truncated)
	assert.Equal(t, "inline 2", res.Reports[1].URL)
	assert.True(t, res.Reports[1].Truncated)
	assert.Equal(t, []string{"java.lang.Error: cut short"}, res.Reports[1].StackTrace)

	assert.Equal(t, "My game crashed:\n\ntrailing words", res.Text)
}

func TestSplitInlineReports(t *testing.T) {
	reports, rest := SplitInlineReports("no reports here")
	assert.Empty(t, reports)
	assert.Equal(t, "no reports here", rest)

	reports, rest = SplitInlineReports(completeReport + "\nafter")
	require.Len(t, reports, 1)
	assert.True(t, strings.HasSuffix(reports[0], "Client brand changed to 'fml,forge'"))
	assert.Equal(t, "after", rest)
}

func TestExtract_OversizedPaste(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/raw/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completeReport))
	})
	mux.HandleFunc("/raw/fits", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completeReport))
	})

	tests := []struct {
		name    string
		link    string
		maxSize int64
		reports int
	}{
		{name: "larger than limit", link: "https://pastebin.com/big", maxSize: int64(len(completeReport)) - 1},
		{name: "exactly at limit", link: "https://pastebin.com/fits", maxSize: int64(len(completeReport)), reports: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor, logs := newTestExtractor(t, mux)
			extractor.maxSize = tt.maxSize

			res := extractor.Extract(context.Background(), map[string]string{"Crash Report": tt.link}, []string{"Crash Report"})

			assert.Len(t, res.Reports, tt.reports)
			assert.Empty(t, res.Notes)
			for _, r := range res.Reports {
				assert.False(t, r.Truncated)
			}
			if tt.reports == 0 {
				assert.Contains(t, logs.String(), "exceeds")
			}
		})
	}
}
