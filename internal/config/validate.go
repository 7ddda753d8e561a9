package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/relicta-tech/shipgate/internal/domain/version"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
)

const (
	minShortCommitLength = 4
	maxShortCommitLength = 40
)

// dateLayoutProbe is a fixed instant used to check that a date layout
// contains at least one time element.
var dateLayoutProbe = time.Date(2001, time.February, 3, 4, 5, 6, 0, time.UTC)

// ValidationError contains all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string

	if len(e.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("Errors:\n  - %s", strings.Join(e.Errors, "\n  - ")))
	}

	if len(e.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("Warnings:\n  - %s", strings.Join(e.Warnings, "\n  - ")))
	}

	return fmt.Sprintf("configuration validation failed:\n%s", strings.Join(parts, "\n"))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// HasWarnings returns true if there are validation warnings.
func (e *ValidationError) HasWarnings() bool {
	return len(e.Warnings) > 0
}

// Addf adds a formatted error to the validation error.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Warnf adds a formatted warning to the validation error.
func (e *ValidationError) Warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Validator validates configuration.
type Validator struct {
	errors *ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: &ValidationError{},
	}
}

// Validate validates the configuration. Warnings never fail validation;
// read them with Warnings.
func (v *Validator) Validate(cfg *Config) error {
	v.validateRefs(cfg.Refs)
	v.validateEnvironments(cfg.Environments)
	v.validateVersioning(cfg.Versioning)
	v.validateScanners(cfg)
	v.validateReports(cfg.Reports)
	v.validateOutput(cfg.Output)

	if v.errors.HasErrors() {
		return sgerrors.Config("config.Validate", v.errors.Error())
	}

	return nil
}

// Warnings returns the warnings collected by Validate.
func (v *Validator) Warnings() []string {
	return slices.Clone(v.errors.Warnings)
}

func (v *Validator) validateRefs(cfg RefsConfig) {
	if strings.TrimSpace(cfg.MainBranch) == "" {
		v.errors.Addf("refs.main_branch: required")
	}
	if strings.TrimSpace(cfg.IntegrationBranch) == "" {
		v.errors.Addf("refs.integration_branch: required")
	}
	if cfg.MainBranch != "" && cfg.MainBranch == cfg.IntegrationBranch {
		v.errors.Addf("refs: main_branch and integration_branch must differ, both are %q", cfg.MainBranch)
	}

	if strings.TrimSpace(cfg.ReleasePrefix) == "" {
		v.errors.Addf("refs.release_prefix: required")
		return
	}
	if !strings.HasSuffix(cfg.ReleasePrefix, "/") {
		v.errors.Warnf("refs.release_prefix: %q does not end with '/', branches like %q will match", cfg.ReleasePrefix, cfg.ReleasePrefix+"s")
	}
	for _, b := range []string{cfg.MainBranch, cfg.IntegrationBranch} {
		if b != "" && strings.HasPrefix(b, cfg.ReleasePrefix) {
			v.errors.Addf("refs.release_prefix: %q also matches branch %q", cfg.ReleasePrefix, b)
		}
	}
}

func (v *Validator) validateEnvironments(cfg EnvironmentsConfig) {
	targets := []struct {
		name string
		c    ClusterConfig
	}{
		{"dev", cfg.Dev},
		{"staging", cfg.Staging},
		{"production", cfg.Production},
	}
	for _, t := range targets {
		if t.c.Cluster == "" {
			v.errors.Warnf("environments.%s.cluster: not configured, deployments will carry no cluster", t.name)
		}
		if t.c.Cluster != "" && t.c.ResourceGroup == "" {
			v.errors.Warnf("environments.%s.resource_group: not configured", t.name)
		}
	}
}

func (v *Validator) validateVersioning(cfg VersioningConfig) {
	if _, err := version.Parse(cfg.ProductionBase); err != nil {
		v.errors.Addf("versioning.production_base: %q is not a semantic version", cfg.ProductionBase)
	}
	if _, err := version.Parse(cfg.ChartBase); err != nil {
		v.errors.Addf("versioning.chart_base: %q is not a semantic version", cfg.ChartBase)
	}

	if cfg.DateLayout == "" {
		v.errors.Addf("versioning.date_layout: required")
	} else if dateLayoutProbe.Format(cfg.DateLayout) == cfg.DateLayout {
		v.errors.Addf("versioning.date_layout: %q contains no date elements", cfg.DateLayout)
	}

	if cfg.PatchRollover == 1 {
		v.errors.Warnf("versioning.patch_rollover: 1 carries every bump into the minor component")
	}

	if cfg.ShortCommitLength < minShortCommitLength || cfg.ShortCommitLength > maxShortCommitLength {
		v.errors.Addf("versioning.short_commit_length: must be between %d and %d, got %d",
			minShortCommitLength, maxShortCommitLength, cfg.ShortCommitLength)
	}

	// Note: Empty tag_prefix is valid (some repos use tags without prefix)
}

func (v *Validator) validateScanners(cfg *Config) {
	for _, name := range cfg.ScannerNames() {
		s := cfg.Scanners[name]
		if strings.ContainsAny(name, " \t/:") {
			v.errors.Addf("scanners.%s: name must not contain whitespace, '/' or ':'", name)
		}

		switch s.Enabled {
		case "", "true", "false":
		default:
			v.errors.Warnf("scanners.%s.enabled: %q is not \"false\", scanner stays enabled", name, s.Enabled)
		}

		if !s.FailBuildOnViolation && s.IsEnabled() {
			v.errors.Warnf("scanners.%s: fail_build_on_violation is off, violations are advisory", name)
		}
	}
}

func (v *Validator) validateReports(cfg ReportsConfig) {
	if cfg.MaxSize <= 0 {
		v.errors.Addf("reports.max_size: must be positive, got %d", cfg.MaxSize)
	}
	if cfg.Concurrency <= 0 {
		v.errors.Addf("reports.concurrency: must be positive, got %d", cfg.Concurrency)
	}
}

func (v *Validator) validateOutput(cfg OutputConfig) {
	if !slices.Contains(OutputFormats, cfg.Format) {
		v.errors.Addf("output.format: must be one of %v, got %q", OutputFormats, cfg.Format)
	}
	if !slices.Contains(LogLevels, cfg.LogLevel) {
		v.errors.Addf("output.log_level: must be one of %v, got %q", LogLevels, cfg.LogLevel)
	}
}

// Validate is a convenience function to validate configuration.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
