// Package config provides configuration management for shipgate.
package config

import (
	"sort"

	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/ref"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
	"github.com/relicta-tech/shipgate/internal/domain/version"
)

// Config is the root configuration for shipgate.
type Config struct {
	// Refs configures how references are classified.
	Refs RefsConfig `mapstructure:"refs" json:"refs" yaml:"refs" toml:"refs"`
	// Environments maps each environment to its deployment target.
	Environments EnvironmentsConfig `mapstructure:"environments" json:"environments" yaml:"environments" toml:"environments"`
	// Versioning configures version generation.
	Versioning VersioningConfig `mapstructure:"versioning" json:"versioning" yaml:"versioning" toml:"versioning"`
	// Scanners configures the security scan gate, keyed by scanner name.
	Scanners map[string]ScannerConfig `mapstructure:"scanners" json:"scanners" yaml:"scanners" toml:"scanners"`
	// Reports configures scanner report loading.
	Reports ReportsConfig `mapstructure:"reports" json:"reports" yaml:"reports" toml:"reports"`
	// Output configures output settings.
	Output OutputConfig `mapstructure:"output" json:"output" yaml:"output" toml:"output"`
}

// RefsConfig configures reference classification.
type RefsConfig struct {
	// MainBranch is the main-line branch (default: "main").
	MainBranch string `mapstructure:"main_branch" json:"main_branch" yaml:"main_branch" toml:"main_branch"`
	// IntegrationBranch is the integration branch (default: "develop").
	IntegrationBranch string `mapstructure:"integration_branch" json:"integration_branch" yaml:"integration_branch" toml:"integration_branch"`
	// ReleasePrefix marks release branches (default: "release/").
	ReleasePrefix string `mapstructure:"release_prefix" json:"release_prefix" yaml:"release_prefix" toml:"release_prefix"`
}

// Rules converts the configuration into classification rules.
func (c RefsConfig) Rules() ref.Rules {
	return ref.Rules{
		MainBranch:        c.MainBranch,
		IntegrationBranch: c.IntegrationBranch,
		ReleasePrefix:     c.ReleasePrefix,
	}
}

// ClusterConfig names the cluster an environment deploys to.
type ClusterConfig struct {
	Cluster       string `mapstructure:"cluster" json:"cluster" yaml:"cluster" toml:"cluster"`
	ResourceGroup string `mapstructure:"resource_group" json:"resource_group" yaml:"resource_group" toml:"resource_group"`
}

// EnvironmentsConfig holds the deployment target of each environment.
type EnvironmentsConfig struct {
	Dev        ClusterConfig `mapstructure:"dev" json:"dev" yaml:"dev" toml:"dev"`
	Staging    ClusterConfig `mapstructure:"staging" json:"staging" yaml:"staging" toml:"staging"`
	Production ClusterConfig `mapstructure:"production" json:"production" yaml:"production" toml:"production"`
}

// ClusterTable converts the configuration into the resolver's cluster table.
func (c EnvironmentsConfig) ClusterTable() environment.ClusterTable {
	return environment.ClusterTable{
		environment.Dev:        {Name: c.Dev.Cluster, ResourceGroup: c.Dev.ResourceGroup},
		environment.Staging:    {Name: c.Staging.Cluster, ResourceGroup: c.Staging.ResourceGroup},
		environment.Production: {Name: c.Production.Cluster, ResourceGroup: c.Production.ResourceGroup},
	}
}

// VersioningConfig configures version generation.
type VersioningConfig struct {
	// TagPrefix is the prefix of version tags (default: "v").
	TagPrefix string `mapstructure:"tag_prefix" json:"tag_prefix" yaml:"tag_prefix" toml:"tag_prefix"`
	// PatchRollover carries the patch into the minor component when it
	// would reach this value. 0 disables the carry.
	PatchRollover uint64 `mapstructure:"patch_rollover" json:"patch_rollover" yaml:"patch_rollover" toml:"patch_rollover"`
	// ProductionBase prefixes manual production builds.
	ProductionBase string `mapstructure:"production_base" json:"production_base" yaml:"production_base" toml:"production_base"`
	// ChartBase prefixes chart versions of environment builds.
	ChartBase string `mapstructure:"chart_base" json:"chart_base" yaml:"chart_base" toml:"chart_base"`
	// DateLayout is the Go time layout of the production date stamp.
	DateLayout string `mapstructure:"date_layout" json:"date_layout" yaml:"date_layout" toml:"date_layout"`
	// ShortCommitLength is the length of abbreviated commit hashes.
	ShortCommitLength int `mapstructure:"short_commit_length" json:"short_commit_length" yaml:"short_commit_length" toml:"short_commit_length"`
}

// Options converts the configuration into generator options.
func (c VersioningConfig) Options() version.Options {
	return version.Options{
		TagPrefix:      c.TagPrefix,
		PatchRollover:  c.PatchRollover,
		ProductionBase: c.ProductionBase,
		ChartBase:      c.ChartBase,
		DateLayout:     c.DateLayout,
	}
}

// ScannerConfig configures one security scanner.
type ScannerConfig struct {
	// Enabled is kept as written. Only the literal "false" disables the scanner.
	Enabled string `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	// Thresholds is the maximum tolerated count per severity; negative is unlimited.
	Thresholds scan.Thresholds `mapstructure:"thresholds" json:"thresholds" yaml:"thresholds" toml:"thresholds"`
	// FailBuildOnViolation turns a threshold violation into a blocking failure.
	FailBuildOnViolation bool `mapstructure:"fail_build_on_violation" json:"fail_build_on_violation" yaml:"fail_build_on_violation" toml:"fail_build_on_violation"`
}

// IsEnabled returns whether the scanner is enabled.
func (s ScannerConfig) IsEnabled() bool {
	return scan.ParseEnabled(s.Enabled)
}

// DefaultScannerConfig is applied to scanners that have a report but no
// configuration: no high findings tolerated, and violations block.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Enabled:              "true",
		Thresholds:           scan.Thresholds{High: 0, Medium: -1, Low: -1},
		FailBuildOnViolation: true,
	}
}

// Scanner returns the configuration of a scanner, falling back to
// DefaultScannerConfig.
func (c *Config) Scanner(name string) (ScannerConfig, bool) {
	if s, ok := c.Scanners[name]; ok {
		return s, true
	}
	return DefaultScannerConfig(), false
}

// ScannerNames returns the configured scanner names, sorted.
func (c *Config) ScannerNames() []string {
	names := make([]string, 0, len(c.Scanners))
	for name := range c.Scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReportsConfig configures scanner report loading.
type ReportsConfig struct {
	// MaxSize is the largest report file read, in bytes.
	MaxSize int64 `mapstructure:"max_size" json:"max_size" yaml:"max_size" toml:"max_size"`
	// Concurrency is how many reports are read in parallel.
	Concurrency int `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency" toml:"concurrency"`
}

// OutputConfig configures output settings.
type OutputConfig struct {
	// Format is the output format (text, json, yaml, toml, github).
	Format string `mapstructure:"format" json:"format" yaml:"format" toml:"format"`
	// Color enables colored output.
	Color bool `mapstructure:"color" json:"color" yaml:"color" toml:"color"`
	// Verbose enables verbose output.
	Verbose bool `mapstructure:"verbose" json:"verbose" yaml:"verbose" toml:"verbose"`
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Output formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
	FormatTOML   = "toml"
	FormatGitHub = "github"
)

// OutputFormats lists the supported output formats.
var OutputFormats = []string{FormatText, FormatJSON, FormatYAML, FormatTOML, FormatGitHub}

// LogLevels lists the supported log levels.
var LogLevels = []string{"debug", "info", "warn", "error"}

// DefaultScanners returns the scanners configured when no config file exists.
func DefaultScanners() map[string]ScannerConfig {
	return map[string]ScannerConfig{
		"sonar": {
			Enabled:              "true",
			Thresholds:           scan.Thresholds{High: 0, Medium: 10, Low: -1},
			FailBuildOnViolation: true,
		},
		"checkmarx": {
			Enabled:              "true",
			Thresholds:           scan.Thresholds{High: 0, Medium: 5, Low: -1},
			FailBuildOnViolation: true,
		},
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	rules := ref.DefaultRules()
	opts := version.DefaultOptions()

	return &Config{
		Refs: RefsConfig{
			MainBranch:        rules.MainBranch,
			IntegrationBranch: rules.IntegrationBranch,
			ReleasePrefix:     rules.ReleasePrefix,
		},
		Environments: EnvironmentsConfig{
			Dev:        ClusterConfig{Cluster: "aks-dev", ResourceGroup: "rg-dev"},
			Staging:    ClusterConfig{Cluster: "aks-staging", ResourceGroup: "rg-staging"},
			Production: ClusterConfig{Cluster: "aks-production", ResourceGroup: "rg-production"},
		},
		Versioning: VersioningConfig{
			TagPrefix:         opts.TagPrefix,
			PatchRollover:     opts.PatchRollover,
			ProductionBase:    opts.ProductionBase,
			ChartBase:         opts.ChartBase,
			DateLayout:        opts.DateLayout,
			ShortCommitLength: 7,
		},
		Scanners: DefaultScanners(),
		Reports: ReportsConfig{
			MaxSize:     4 << 20,
			Concurrency: 4,
		},
		Output: OutputConfig{
			Format:   FormatText,
			Color:    true,
			Verbose:  false,
			LogLevel: "info",
		},
	}
}

// ConfigFileNames to search for.
var ConfigFileNames = []string{
	".shipgate",
}

// ConfigFileExtensions supported by Viper.
var ConfigFileExtensions = []string{
	"yaml",
	"yml",
	"json",
	"toml",
}
