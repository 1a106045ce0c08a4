package github

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/ksysoev/crash-triage/pkg/core"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"
)

const (
	nightlyManifestFile = "nightly.json"
	maxArtifactSize     = 32 << 20
)

// Client handles interaction with the GitHub API
type Client struct {
	client   *github.Client
	download *http.Client
	owner    string
	repo     string
	config   core.Config
}

// NewClient creates a new GitHub client for the repository the action runs in.
// An empty token gives an unauthenticated client.
func NewClient(token, repoFullName string, config core.Config) *Client {
	owner, repo := splitRepo(repoFullName)

	return &Client{
		client:   NewRawClient(token),
		download: http.DefaultClient,
		owner:    owner,
		repo:     repo,
		config:   config,
	}
}

// NewRawClient creates a new raw GitHub client
func NewRawClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	return github.NewClient(tc)
}

// CreateComment posts body as a comment on the issue
func (c *Client) CreateComment(ctx context.Context, issueNumber int, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("comment body cannot be empty")
	}

	comment, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, issueNumber, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create comment", goerr.V("issue", issueNumber))
	}

	return comment.GetHTMLURL(), nil
}

// NightlyManifest downloads the manifest artifact of the nightly build with the given run number
func (c *Client) NightlyManifest(ctx context.Context, sequence int) ([]byte, error) {
	owner, repo := splitRepo(c.config.NightlyRepository)

	run, err := c.findNightlyRun(ctx, owner, repo, sequence)
	if err != nil {
		return nil, err
	}

	artifacts, _, err := c.client.Actions.ListWorkflowRunArtifacts(ctx, owner, repo, run.GetID(), &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list nightly artifacts", goerr.V("sequence", sequence))
	}

	var artifact *github.Artifact
	for _, a := range artifacts.Artifacts {
		if strings.Contains(a.GetName(), "manifest") {
			artifact = a
			break
		}
	}
	if artifact == nil {
		return nil, goerr.New("could not find manifest artifact in nightly version", goerr.V("sequence", sequence))
	}
	if artifact.GetExpired() {
		return nil, goerr.New("nightly is too ancient, its manifest expired", goerr.V("sequence", sequence))
	}

	location, _, err := c.client.Actions.DownloadArtifact(ctx, owner, repo, artifact.GetID(), 3)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get artifact download url", goerr.V("artifact", artifact.GetID()))
	}

	archive, err := c.fetch(ctx, location.String())
	if err != nil {
		return nil, err
	}

	return readZipEntry(archive, nightlyManifestFile)
}

// findNightlyRun pages through the nightly workflow runs, newest first,
// until it meets the run with the given run number.
func (c *Client) findNightlyRun(ctx context.Context, owner, repo string, sequence int) (*github.WorkflowRun, error) {
	opts := &github.ListWorkflowRunsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	notFound := goerr.New("could not find user supplied nightly version", goerr.V("sequence", sequence))

	for {
		runs, _, err := c.client.Actions.ListWorkflowRunsByID(ctx, owner, repo, c.config.NightlyWorkflowID, opts)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list nightly runs")
		}

		for _, run := range runs.WorkflowRuns {
			if run.GetRunNumber() < sequence {
				return nil, notFound
			}
			if run.GetRunNumber() == sequence {
				return run, nil
			}
		}

		if len(runs.WorkflowRuns) == 0 || runs.GetTotalCount() == len(runs.WorkflowRuns) {
			return nil, notFound
		}

		last := runs.WorkflowRuns[len(runs.WorkflowRuns)-1]
		opts.Created = "<" + last.GetCreatedAt().Format(time.RFC3339)
	}
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create download request")
	}

	// the artifact location is pre-signed, no GitHub credentials needed
	resp, err := c.download.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download artifact")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status code for artifact", goerr.V("status", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read artifact")
	}

	return data, nil
}

func readZipEntry(archive []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact archive")
	}

	f, err := zr.Open(name)
	if err != nil {
		return nil, goerr.Wrap(err, "artifact has no manifest", goerr.V("file", name))
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, maxArtifactSize))
}

func splitRepo(fullName string) (owner, repo string) {
	owner, repo, _ = strings.Cut(fullName, "/")
	return owner, repo
}
