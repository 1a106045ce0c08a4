package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ksysoev/crash-triage/pkg/core"
	"github.com/ksysoev/crash-triage/pkg/extract"
	"github.com/ksysoev/crash-triage/pkg/github"
	"github.com/ksysoev/crash-triage/pkg/manifest"
	"github.com/ksysoev/crash-triage/pkg/triage"
	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"
)

const localAssetsFile = "tmp/assets.json"

type flags struct {
	reportFile  string
	formFile    string
	bodyFile    string
	packVersion string
	sections    []string
	configFile  string
	assetsFile  string
	noManifest  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "triage-local",
		Short: "Run the crash report analysis locally and print the comment",
		Long: `Run the same analysis the action performs on an issue, without GitHub.
Input is either a crash report file, an issue body rendered from the issue form,
or the form answers as JSON.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, cmd)
		},
	}

	cmd.Flags().StringVar(&f.reportFile, "report", "", "Path to a crash report or log file")
	cmd.Flags().StringVar(&f.bodyFile, "body", "", "Path to an issue body rendered from the issue form")
	cmd.Flags().StringVar(&f.formFile, "form", "", "Path to the issue form answers as JSON")
	cmd.Flags().StringVar(&f.packVersion, "pack-version", "", "Pack version to compare the mod list against")
	cmd.Flags().StringSliceVar(&f.sections, "sections", nil, "Form sections holding crash reports")
	cmd.Flags().StringVar(&f.configFile, "config", core.DefaultConfigFile, "Path to the optional config file")
	cmd.Flags().StringVar(&f.assetsFile, "assets", "", "Local copy of the assets database, saved after the first download (default "+localAssetsFile+")")
	cmd.Flags().BoolVar(&f.noManifest, "no-manifest", false, "Skip the mod list comparison")
	cmd.MarkFlagsMutuallyExclusive("report", "body", "form")

	return cmd
}

func run(ctx context.Context, f *flags, cmd *cobra.Command) error {
	// annotations go to stderr, the comment to stdout
	action := githubactions.New(githubactions.WithWriter(cmd.ErrOrStderr()))

	config := core.DefaultConfig()
	fc, err := core.LoadFileConfig(f.configFile)
	if err != nil {
		return err
	}
	fc.Apply(&config)

	if len(f.sections) > 0 {
		config.Sections = f.sections
	}
	switch {
	case f.assetsFile != "":
		config.AssetsFile = f.assetsFile
	case config.AssetsFile == "":
		config.AssetsFile = localAssetsFile
	}

	form, err := readForm(f, config)
	if err != nil {
		return err
	}

	if f.packVersion != "" {
		form[config.VersionField] = f.packVersion
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var differ triage.ModlistDiffer
	if !f.noManifest {
		client := github.NewClient(os.Getenv("GITHUB_TOKEN"), "", config)
		source := manifest.NewSource(httpClient, config.ManifestBaseURL, client).WithAssetsFile(config.AssetsFile)
		differ = manifest.NewDiffer(source, config.IgnoreMissing, action)
	}

	result := triage.New(extract.New(httpClient, action), differ, config, action).Run(ctx, form)

	body := core.Compose(result)
	if body == "" {
		body = "No crash report found."
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), body)

	return err
}

func readForm(f *flags, config core.Config) (map[string]string, error) {
	switch {
	case f.formFile != "":
		data, err := os.ReadFile(f.formFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read form file: %w", err)
		}

		var form map[string]string
		if err := json.Unmarshal(data, &form); err != nil {
			return nil, fmt.Errorf("failed to parse form file: %w", err)
		}
		if form == nil {
			form = make(map[string]string)
		}
		return form, nil

	case f.bodyFile != "":
		data, err := os.ReadFile(f.bodyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read issue body: %w", err)
		}
		return core.ParseIssueForm(string(data)), nil

	case f.reportFile != "":
		data, err := os.ReadFile(f.reportFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read report: %w", err)
		}
		if len(config.Sections) == 0 {
			return nil, fmt.Errorf("no form section configured for the report")
		}
		// as if the whole file was pasted into the first section
		return map[string]string{strings.TrimSpace(config.Sections[0]): string(data)}, nil
	}

	return nil, fmt.Errorf("one of --report, --body or --form is required")
}
