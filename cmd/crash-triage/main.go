package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v60/github"
	"github.com/ksysoev/crash-triage/pkg/core"
	"github.com/ksysoev/crash-triage/pkg/extract"
	"github.com/ksysoev/crash-triage/pkg/github"
	"github.com/ksysoev/crash-triage/pkg/manifest"
	"github.com/ksysoev/crash-triage/pkg/triage"
	"github.com/sethvargo/go-githubactions"
)

func main() {
	// Set up action
	action := githubactions.New()
	ctx := context.Background()

	config, err := loadConfig(action)
	if err != nil {
		action.Fatalf("Invalid configuration: %v", err)
	}

	ghctx, err := action.Context()
	if err != nil {
		action.Fatalf("Failed to read GitHub context: %v", err)
	}

	if ghctx.EventName != "issues" && ghctx.EventName != "workflow_dispatch" {
		action.Warningf("This action is meant for issues events, got: %s", ghctx.EventName)
	}

	repoFullName := ghctx.Repository
	if repoFullName == "" {
		action.Fatalf("GITHUB_REPOSITORY environment variable is not set")
	}

	issue, err := issueFromEvent(ghctx.Event)
	if err != nil {
		action.Fatalf("Malformed event payload: %v", err)
	}

	form, err := formData(action.GetInput("formdata"), issue)
	if err != nil {
		action.Fatalf("Unable to parse formdata input: %v", err)
	}

	// Initialize GitHub client
	client := github.NewClient(config.GitHubToken, repoFullName, config)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	source := manifest.NewSource(httpClient, config.ManifestBaseURL, client).WithAssetsFile(config.AssetsFile)
	differ := manifest.NewDiffer(source, config.IgnoreMissing, action)
	triager := triage.New(extract.New(httpClient, action), differ, config, action)

	action.Group("Checking crash report")
	result := triager.Run(ctx, form)
	action.EndGroup()

	body := core.Compose(result)
	findings := result.FindingNames()

	action.SetOutput("comments", body)
	action.SetOutput("findings", strings.Join(findings, ","))

	if body == "" {
		action.Infof("No crash report found in issue #%d. Nothing to comment.", issue.Number)
		return
	}

	if !config.PostComment {
		action.Infof("Commenting disabled, analysis:\n%s", body)
		return
	}

	if issue.Number == 0 {
		action.Fatalf("Cannot comment: event payload has no issue number")
	}

	url, err := client.CreateComment(ctx, issue.Number, body)
	if err != nil {
		action.Fatalf("Failed to post comment: %v", err)
	}

	action.Infof("Posted analysis with %d finding(s): %s", len(findings), url)
}

// loadConfig reads action inputs, falling back to environment variables, on top
// of the optional config file.
func loadConfig(action *githubactions.Action) (core.Config, error) {
	config := core.DefaultConfig()

	configFile := inputOrEnv(action, "config_file", "CRASH_TRIAGE_CONFIG")
	if configFile == "" {
		configFile = core.DefaultConfigFile
	}

	fc, err := core.LoadFileConfig(configFile)
	if err != nil {
		return config, err
	}
	fc.Apply(&config)

	config.GitHubToken = inputOrEnv(action, "github_token", "GITHUB_TOKEN")

	if sections := action.GetInput("sections"); sections != "" {
		config.Sections = splitList(sections)
	}

	if field := action.GetInput("version_field"); field != "" {
		config.VersionField = field
	}

	if post := action.GetInput("post_comment"); post != "" {
		config.PostComment, err = strconv.ParseBool(post)
		if err != nil {
			return config, fmt.Errorf("post_comment must be a boolean, got %q: %w", post, err)
		}
	}

	if config.PostComment && config.GitHubToken == "" {
		return config, fmt.Errorf("github_token input is required to post comments")
	}

	return config, nil
}

func inputOrEnv(action *githubactions.Action, input, env string) string {
	if v := action.GetInput(input); v != "" {
		return v
	}
	return os.Getenv(env)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// issueFromEvent extracts the issue of an issues event payload
func issueFromEvent(event map[string]any) (core.Issue, error) {
	if _, ok := event["issue"]; !ok {
		// workflow_dispatch runs carry no issue, formdata is expected instead
		return core.Issue{}, nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return core.Issue{}, fmt.Errorf("failed to encode event: %w", err)
	}

	var ev gogithub.IssuesEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.Issue{}, fmt.Errorf("failed to decode issues event: %w", err)
	}

	issue := ev.GetIssue()
	if issue.GetNumber() == 0 {
		return core.Issue{}, fmt.Errorf("issue in event has no number")
	}

	return core.Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		Author: issue.GetUser().GetLogin(),
	}, nil
}

// formData returns the issue form answers, preferring pre-parsed JSON over the issue body
func formData(raw string, issue core.Issue) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return core.ParseIssueForm(issue.Body), nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}

	// checkbox answers come as lists, only text answers are of interest
	form := make(map[string]string, len(parsed))
	for k, v := range parsed {
		if s, ok := v.(string); ok {
			form[k] = s
		}
	}

	return form, nil
}
