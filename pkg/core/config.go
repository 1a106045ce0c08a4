package core

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSection           = "Crash Report"
	DefaultVersionField      = "Your Pack Version"
	DefaultManifestBaseURL   = "https://raw.githubusercontent.com/GTNewHorizons/DreamAssemblerXXL/master"
	DefaultNightlyRepository = "GTNewHorizons/DreamAssemblerXXL"
	DefaultNightlyWorkflowID = 58547244
	DefaultConfigFile        = ".github/crash-triage.yml"
)

// FileConfig is the optional YAML configuration file checked into the repository
type FileConfig struct {
	Sections          []string `yaml:"sections,omitempty"`
	VersionField      string   `yaml:"version_field,omitempty"`
	ManifestBaseURL   string   `yaml:"manifest_base_url,omitempty"`
	NightlyRepository string   `yaml:"nightly_repository,omitempty"`
	NightlyWorkflowID int64    `yaml:"nightly_workflow_id,omitempty"`
	IgnoreMissing     []string `yaml:"ignore_missing,omitempty"`
	AssetsFile        string   `yaml:"assets_file,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Sections:          []string{DefaultSection},
		VersionField:      DefaultVersionField,
		PostComment:       true,
		ManifestBaseURL:   DefaultManifestBaseURL,
		NightlyRepository: DefaultNightlyRepository,
		NightlyWorkflowID: DefaultNightlyWorkflowID,
	}
}

// LoadFileConfig reads the YAML config at path, expanding environment variables.
// A missing file is not an error and yields a nil config.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &fc, nil
}

// Apply overrides the fields of c that are set in fc.
func (fc *FileConfig) Apply(c *Config) {
	if fc == nil {
		return
	}
	if len(fc.Sections) > 0 {
		c.Sections = fc.Sections
	}
	if fc.VersionField != "" {
		c.VersionField = fc.VersionField
	}
	if fc.ManifestBaseURL != "" {
		c.ManifestBaseURL = fc.ManifestBaseURL
	}
	if fc.NightlyRepository != "" {
		c.NightlyRepository = fc.NightlyRepository
	}
	if fc.NightlyWorkflowID != 0 {
		c.NightlyWorkflowID = fc.NightlyWorkflowID
	}
	if fc.AssetsFile != "" {
		c.AssetsFile = fc.AssetsFile
	}
	c.IgnoreMissing = append(c.IgnoreMissing, fc.IgnoreMissing...)
}
