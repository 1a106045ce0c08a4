package github

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ksysoev/crash-triage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runsPath = "/repos/GTNewHorizons/DreamAssemblerXXL/actions/workflows/58547244/runs"

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient("", "owner/repo", core.DefaultConfig())

	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.client.BaseURL = baseURL
	client.download = server.Client()

	return client
}

func zipWith(t *testing.T, name, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateComment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "analysis", body["body"])

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"id": 1, "html_url": "https://github.com/owner/repo/issues/7#issuecomment-1"})
	})

	client := newTestClient(t, mux)

	url, err := client.CreateComment(context.Background(), 7, "analysis")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/owner/repo/issues/7#issuecomment-1", url)
}

func TestCreateComment_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/issues/7/comments", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"message": "Bad credentials"})
	})

	client := newTestClient(t, mux)

	_, err := client.CreateComment(context.Background(), 7, "   ")
	assert.Error(t, err, "empty body is rejected before calling the API")

	_, err = client.CreateComment(context.Background(), 7, "analysis")
	assert.Error(t, err)
}

func nightlyMux(t *testing.T, expired bool) *http.ServeMux {
	t.Helper()

	archive := zipWith(t, "nightly.json", `{"version": "nightly-512", "github_mods": {}}`)

	mux := http.NewServeMux()
	mux.HandleFunc(runsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("created") == "" {
			writeJSON(w, map[string]any{
				"total_count": 3,
				"workflow_runs": []map[string]any{
					{"id": 103, "run_number": 514, "created_at": "2024-03-03T00:00:00Z"},
					{"id": 102, "run_number": 513, "created_at": "2024-03-02T00:00:00Z"},
				},
			})
			return
		}

		assert.Equal(t, "<2024-03-02T00:00:00Z", r.URL.Query().Get("created"))
		writeJSON(w, map[string]any{
			"total_count": 1,
			"workflow_runs": []map[string]any{
				{"id": 101, "run_number": 512, "created_at": "2024-03-01T00:00:00Z"},
			},
		})
	})
	mux.HandleFunc("/repos/GTNewHorizons/DreamAssemblerXXL/actions/runs/101/artifacts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"total_count": 2,
			"artifacts": []map[string]any{
				{"id": 9, "name": "client-zip"},
				{"id": 10, "name": "nightly-manifest", "expired": expired},
			},
		})
	})
	mux.HandleFunc("/repos/GTNewHorizons/DreamAssemblerXXL/actions/artifacts/10/zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://"+r.Host+"/blob/10", http.StatusFound)
	})
	mux.HandleFunc("/blob/10", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	})

	return mux
}

func TestNightlyManifest(t *testing.T) {
	client := newTestClient(t, nightlyMux(t, false))

	data, err := client.NightlyManifest(context.Background(), 512)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "nightly-512", "github_mods": {}}`, string(data))
}

func TestNightlyManifest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		sequence int
		expired  bool
	}{
		{name: "newer than any run", sequence: 600},
		{name: "older than any run", sequence: 100},
		{name: "expired artifact", sequence: 512, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, nightlyMux(t, tt.expired))

			_, err := client.NightlyManifest(context.Background(), tt.sequence)
			assert.Error(t, err)
		})
	}
}
