// Package scan provides security-scan results and the gate that turns them
// into a single proceed/block decision.
package scan

import "fmt"

// Severity is a finding severity category.
type Severity string

const (
	// SeverityHigh is the high severity category.
	SeverityHigh Severity = "high"
	// SeverityMedium is the medium severity category.
	SeverityMedium Severity = "medium"
	// SeverityLow is the low severity category.
	SeverityLow Severity = "low"
)

// Severities lists the categories from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// SeverityCounts holds finding counts per severity.
type SeverityCounts struct {
	High   int `json:"high" yaml:"high" toml:"high"`
	Medium int `json:"medium" yaml:"medium" toml:"medium"`
	Low    int `json:"low" yaml:"low" toml:"low"`
}

// Get returns the count for a severity.
func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	default:
		return 0
	}
}

// Thresholds holds the maximum tolerated count per severity.
// A negative threshold means the category is unlimited.
type Thresholds struct {
	High   int `json:"high" yaml:"high" toml:"high" mapstructure:"high"`
	Medium int `json:"medium" yaml:"medium" toml:"medium" mapstructure:"medium"`
	Low    int `json:"low" yaml:"low" toml:"low" mapstructure:"low"`
}

// Get returns the threshold for a severity.
func (t Thresholds) Get(s Severity) int {
	return SeverityCounts(t).Get(s)
}

// Result is the outcome of one scanner run together with its gate settings.
type Result struct {
	Name                 string
	Enabled              bool
	Counts               SeverityCounts
	Thresholds           Thresholds
	FailBuildOnViolation bool
	// Anomalies records input that could not be parsed and was replaced by a fallback.
	Anomalies []string
}

// Status is the gate status of one scan.
type Status string

const (
	// StatusPassed means the scan ran and did not block.
	StatusPassed Status = "passed"
	// StatusFailed means the scan exceeded a threshold and blocks the gate.
	StatusFailed Status = "failed"
	// StatusSkipped means the scan is disabled.
	StatusSkipped Status = "skipped"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Blocking returns true if the status stops the pipeline.
func (s Status) Blocking() bool {
	return s == StatusFailed
}

// rank orders statuses so the worst one wins when names collide.
func (s Status) rank() int {
	switch s {
	case StatusFailed:
		return 2
	case StatusPassed:
		return 1
	default:
		return 0
	}
}

// Violation is a severity whose count exceeded its threshold.
type Violation struct {
	Severity  Severity `json:"severity" yaml:"severity" toml:"severity"`
	Count     int      `json:"count" yaml:"count" toml:"count"`
	Threshold int      `json:"threshold" yaml:"threshold" toml:"threshold"`
}

// String returns a human-readable description of the violation.
func (v Violation) String() string {
	return fmt.Sprintf("%s: %d > %d", v.Severity, v.Count, v.Threshold)
}
