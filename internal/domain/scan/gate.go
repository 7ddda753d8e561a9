package scan

// Evaluation is the gate's view of one scan result.
type Evaluation struct {
	Name       string      `json:"name" yaml:"name" toml:"name"`
	Status     Status      `json:"status" yaml:"status" toml:"status"`
	Violations []Violation `json:"violations,omitempty" yaml:"violations,omitempty" toml:"violations,omitempty"`
	Anomalies  []string    `json:"anomalies,omitempty" yaml:"anomalies,omitempty" toml:"anomalies,omitempty"`
}

// Advisory returns true when thresholds were exceeded but the scan is not
// configured to fail the build.
func (e Evaluation) Advisory() bool {
	return e.Status == StatusPassed && len(e.Violations) > 0
}

// Decision is the aggregated gate outcome.
type Decision struct {
	PerScan        map[string]Status `json:"per_scan" yaml:"per_scan" toml:"per_scan"`
	OverallProceed bool              `json:"overall_proceed" yaml:"overall_proceed" toml:"overall_proceed"`
	Evaluations    []Evaluation      `json:"evaluations" yaml:"evaluations" toml:"evaluations"`
}

// Failed returns the names of blocking scans in evaluation order.
func (d Decision) Failed() []string {
	var names []string
	for _, e := range d.Evaluations {
		if e.Status.Blocking() {
			names = append(names, e.Name)
		}
	}
	return names
}

// Evaluate applies the gate rule to a single result.
func Evaluate(r Result) Evaluation {
	e := Evaluation{
		Name:      r.Name,
		Anomalies: r.Anomalies,
	}
	if !r.Enabled {
		e.Status = StatusSkipped
		return e
	}

	for _, s := range Severities {
		count, limit := r.Counts.Get(s), r.Thresholds.Get(s)
		if limit >= 0 && count > limit {
			e.Violations = append(e.Violations, Violation{Severity: s, Count: count, Threshold: limit})
		}
	}

	if len(e.Violations) > 0 && r.FailBuildOnViolation {
		e.Status = StatusFailed
	} else {
		e.Status = StatusPassed
	}
	return e
}

// Aggregate evaluates every result independently and combines them. The gate
// proceeds only if no scan failed; an empty input proceeds. Results sharing
// a name keep the worst status in PerScan. Findings are not deduplicated
// across scanners.
func Aggregate(results []Result) Decision {
	d := Decision{
		PerScan:        make(map[string]Status, len(results)),
		OverallProceed: true,
		Evaluations:    make([]Evaluation, 0, len(results)),
	}

	for _, r := range results {
		e := Evaluate(r)
		d.Evaluations = append(d.Evaluations, e)

		if prev, ok := d.PerScan[e.Name]; !ok || e.Status.rank() > prev.rank() {
			d.PerScan[e.Name] = e.Status
		}
		if e.Status.Blocking() {
			d.OverallProceed = false
		}
	}

	return d
}
