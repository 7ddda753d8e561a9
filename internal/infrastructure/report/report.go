// Package report reads security-scanner result files.
//
// A report is a YAML or JSON document with top-level high, medium and low
// keys. Values are kept as raw text so the scan gate can apply its own
// count parsing and record anomalies for anything unusable.
package report

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relicta-tech/shipgate/internal/domain/scan"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
)

// Source names a scanner and the file holding its results.
type Source struct {
	Name string
	Path string
}

// ParseSource parses a "name=path" pair. Scanner names are case-insensitive
// and returned in lower case.
func ParseSource(s string) (Source, error) {
	const op = "report.ParseSource"

	name, path, ok := strings.Cut(s, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	path = strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return Source{}, sgerrors.Validation(op, fmt.Sprintf("invalid report %q, expected name=path", s))
	}
	return Source{Name: name, Path: path}, nil
}

// ParseSources parses every "name=path" pair. A scanner named twice is an error.
func ParseSources(values []string) ([]Source, error) {
	const op = "report.ParseSources"

	sources := make([]Source, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		src, err := ParseSource(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[src.Name]; dup {
			return nil, sgerrors.Validation(op, fmt.Sprintf("report for %q given more than once", src.Name))
		}
		seen[src.Name] = struct{}{}
		sources = append(sources, src)
	}
	return sources, nil
}

// Report is the raw content of one scanner report.
type Report struct {
	Name   string
	Path   string
	High   string
	Medium string
	Low    string
	// Problem is set when the file could not be used at all.
	Problem string
}

// Counts parses the raw values. A report with a problem counts as zero
// findings and carries the problem as its only anomaly.
func (r Report) Counts() (scan.SeverityCounts, []string) {
	if r.Problem != "" {
		return scan.SeverityCounts{}, []string{r.Problem}
	}
	return scan.ParseCounts(r.High, r.Medium, r.Low)
}

// rawCount captures a scalar value as written. Null and non-scalar values
// become empty text.
type rawCount struct {
	text string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *rawCount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag != "!!null" {
		c.text = node.Value
	}
	return nil
}

type document struct {
	High   *rawCount `yaml:"high"`
	Medium *rawCount `yaml:"medium"`
	Low    *rawCount `yaml:"low"`
}

// value returns the raw text. A missing key means no findings.
func (c *rawCount) value() string {
	if c == nil {
		return "0"
	}
	return c.text
}

// Decode decodes report content. The returned error describes why the
// content is unusable.
func Decode(data []byte) (high, medium, low string, err error) {
	if strings.TrimSpace(string(data)) == "" {
		return "", "", "", errors.New("empty report")
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", "", "", fmt.Errorf("malformed report: %w", err)
	}
	return doc.High.value(), doc.Medium.value(), doc.Low.value(), nil
}
