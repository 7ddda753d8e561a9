package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/fileutil"
)

// EnvPrefix is the prefix of environment variables that override config keys.
const EnvPrefix = "SHIPGATE"

var (
	// envVarPattern matches ${VAR} or ${VAR:-default} syntax
	envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)
	// simpleEnvVarPattern matches $VAR syntax
	simpleEnvVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Viper returns the underlying viper instance so flags can be bound to it.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads the configuration.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	// Without a config file the default scanners apply. A config file owns
	// the complete scanner list.
	if !l.configFileExists() {
		l.setDefaultScanners()
	}

	if err := l.loadConfigFile(); err != nil {
		return nil, sgerrors.ConfigWrap(err, op, "failed to load config file")
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, sgerrors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	l.readRawEnabled(cfg)
	l.expandEnvVars(cfg)

	return cfg, nil
}

// setDefaults sets default values using Viper.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Ref defaults
	l.v.SetDefault("refs.main_branch", defaults.Refs.MainBranch)
	l.v.SetDefault("refs.integration_branch", defaults.Refs.IntegrationBranch)
	l.v.SetDefault("refs.release_prefix", defaults.Refs.ReleasePrefix)

	// Environment defaults
	l.v.SetDefault("environments.dev.cluster", defaults.Environments.Dev.Cluster)
	l.v.SetDefault("environments.dev.resource_group", defaults.Environments.Dev.ResourceGroup)
	l.v.SetDefault("environments.staging.cluster", defaults.Environments.Staging.Cluster)
	l.v.SetDefault("environments.staging.resource_group", defaults.Environments.Staging.ResourceGroup)
	l.v.SetDefault("environments.production.cluster", defaults.Environments.Production.Cluster)
	l.v.SetDefault("environments.production.resource_group", defaults.Environments.Production.ResourceGroup)

	// Versioning defaults
	l.v.SetDefault("versioning.tag_prefix", defaults.Versioning.TagPrefix)
	l.v.SetDefault("versioning.patch_rollover", defaults.Versioning.PatchRollover)
	l.v.SetDefault("versioning.production_base", defaults.Versioning.ProductionBase)
	l.v.SetDefault("versioning.chart_base", defaults.Versioning.ChartBase)
	l.v.SetDefault("versioning.date_layout", defaults.Versioning.DateLayout)
	l.v.SetDefault("versioning.short_commit_length", defaults.Versioning.ShortCommitLength)

	// Report defaults
	l.v.SetDefault("reports.max_size", defaults.Reports.MaxSize)
	l.v.SetDefault("reports.concurrency", defaults.Reports.Concurrency)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.color", defaults.Output.Color)
	l.v.SetDefault("output.verbose", defaults.Output.Verbose)
	l.v.SetDefault("output.log_level", defaults.Output.LogLevel)
}

// setDefaultScanners registers DefaultScanners as viper defaults.
func (l *Loader) setDefaultScanners() {
	for name, s := range DefaultScanners() {
		key := "scanners." + name
		l.v.SetDefault(key+".enabled", s.Enabled)
		l.v.SetDefault(key+".thresholds.high", s.Thresholds.High)
		l.v.SetDefault(key+".thresholds.medium", s.Thresholds.Medium)
		l.v.SetDefault(key+".thresholds.low", s.Thresholds.Low)
		l.v.SetDefault(key+".fail_build_on_violation", s.FailBuildOnViolation)
	}
}

// readRawEnabled replaces each decoded enabled flag with the value as
// written. Weak decoding turns a YAML boolean false into "0", which would
// then no longer disable the scanner.
func (l *Loader) readRawEnabled(cfg *Config) {
	for name, s := range cfg.Scanners {
		raw := l.v.Get("scanners." + name + ".enabled")
		if raw == nil {
			s.Enabled = ""
		} else {
			s.Enabled = fmt.Sprint(raw)
		}
		cfg.Scanners[name] = s
	}
}

// candidateFiles lists the config file paths to try, in order.
func (l *Loader) candidateFiles() []string {
	var files []string
	for _, searchPath := range l.searchPaths {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				files = append(files, filepath.Join(searchPath, name+"."+ext))
			}
		}
	}
	return files
}

// configFileExists checks if a config file exists in search paths.
func (l *Loader) configFileExists() bool {
	if l.configPath != "" {
		_, err := os.Stat(l.configPath)
		return err == nil
	}

	for _, configFile := range l.candidateFiles() {
		if _, err := os.Stat(configFile); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", l.configPath, err)
		}
		return nil
	}

	for _, configFile := range l.candidateFiles() {
		if _, err := os.Stat(configFile); err == nil {
			l.v.SetConfigFile(configFile)
			if err := l.v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config file %s: %w", configFile, err)
			}
			return nil
		}
	}

	// No config file found - defaults apply
	return nil
}

// expandEnvVars expands environment variables in deployment targets.
func (l *Loader) expandEnvVars(cfg *Config) {
	for _, c := range []*ClusterConfig{&cfg.Environments.Dev, &cfg.Environments.Staging, &cfg.Environments.Production} {
		c.Cluster = expandEnvVar(c.Cluster)
		c.ResourceGroup = expandEnvVar(c.ResourceGroup)
	}
}

// expandEnvVar expands ${VAR}, ${VAR:-default} and $VAR in a string.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}

		if value := os.Getenv(submatch[1]); value != "" {
			return value
		}
		if len(submatch) > 2 {
			return submatch[2]
		}
		return ""
	})

	return simpleEnvVarPattern.ReplaceAllStringFunc(result, func(match string) string {
		if value := os.Getenv(match[1:]); value != "" {
			return value
		}
		return match
	})
}

// GetConfigPath returns the path to the loaded config file, if any.
func (l *Loader) GetConfigPath() string {
	return l.v.ConfigFileUsed()
}

// Marshal encodes the configuration in the format implied by the file extension.
func Marshal(cfg *Config, path string) ([]byte, error) {
	const op = "config.Marshal"

	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, sgerrors.ConfigWrap(err, op, "failed to encode yaml")
		}
		return data, nil
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, sgerrors.ConfigWrap(err, op, "failed to encode json")
		}
		return append(data, '\n'), nil
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return nil, sgerrors.ConfigWrap(err, op, "failed to encode toml")
		}
		return data, nil
	default:
		return nil, sgerrors.Config(op, fmt.Sprintf("unsupported config file extension %q", ext))
	}
}

// WriteConfig writes the configuration to a file.
func WriteConfig(cfg *Config, path string) error {
	const op = "config.WriteConfig"

	data, err := Marshal(cfg, path)
	if err != nil {
		return err
	}

	if err := fileutil.AtomicWriteFile(path, data, 0o644); err != nil {
		return sgerrors.IOWrap(err, op, "failed to write config file")
	}
	return nil
}

// WriteDefaultConfig writes the default configuration to a file.
func WriteDefaultConfig(path string) error {
	return WriteConfig(DefaultConfig(), path)
}

// FindConfigFile searches for a config file and returns its path.
func FindConfigFile(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}

	l := &Loader{searchPaths: searchPaths}
	for _, configFile := range l.candidateFiles() {
		if _, err := os.Stat(configFile); err == nil {
			return configFile, nil
		}
	}

	return "", sgerrors.NotFound("config.FindConfigFile", "no config file found")
}
