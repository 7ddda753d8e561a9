// Package version provides semantic versions and the generator that derives
// version, image tag and chart version for a deployment.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SemanticVersion is a value object representing a semantic version.
// Immutable - all operations return new instances.
type SemanticVersion struct {
	major      uint64
	minor      uint64
	patch      uint64
	prerelease string
	metadata   string
}

var (
	// semverRegex validates semantic version strings.
	semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

	// coreRegex matches a bare major.minor.patch with optional v prefix.
	coreRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

	// Zero is the zero version (0.0.0).
	Zero = SemanticVersion{}
)

// NewSemanticVersion creates a new SemanticVersion value object.
func NewSemanticVersion(major, minor, patch uint64) SemanticVersion {
	return SemanticVersion{
		major: major,
		minor: minor,
		patch: patch,
	}
}

// Parse parses a semantic version string into a SemanticVersion value object.
// Returns an error if the string is not a valid semantic version.
func Parse(s string) (SemanticVersion, error) {
	matches := semverRegex.FindStringSubmatch(s)
	if matches == nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	v, err := parseCore(matches[1], matches[2], matches[3])
	if err != nil {
		return Zero, err
	}
	v.prerelease = matches[4]
	v.metadata = matches[5]
	return v, nil
}

// ParseCore parses a bare major.minor.patch (optional v prefix) and rejects
// pre-release or build suffixes.
func ParseCore(s string) (SemanticVersion, error) {
	matches := coreRegex.FindStringSubmatch(s)
	if matches == nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return parseCore(matches[1], matches[2], matches[3])
}

func parseCore(majorStr, minorStr, patchStr string) (SemanticVersion, error) {
	major, err := strconv.ParseUint(majorStr, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid major version: %w", err)
	}

	minor, err := strconv.ParseUint(minorStr, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid minor version: %w", err)
	}

	patch, err := strconv.ParseUint(patchStr, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid patch version: %w", err)
	}

	return SemanticVersion{major: major, minor: minor, patch: patch}, nil
}

// IsPrerelease returns true if this is a prerelease version.
func (v SemanticVersion) IsPrerelease() bool {
	return v.prerelease != ""
}

// Core returns the version without prerelease and build metadata.
func (v SemanticVersion) Core() SemanticVersion {
	return NewSemanticVersion(v.major, v.minor, v.patch)
}

// String returns the string representation of the version (without 'v' prefix).
func (v SemanticVersion) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.major, v.minor, v.patch)

	if v.prerelease != "" {
		sb.WriteString("-")
		sb.WriteString(v.prerelease)
	}

	if v.metadata != "" {
		sb.WriteString("+")
		sb.WriteString(v.metadata)
	}

	return sb.String()
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
// Build metadata is ignored in comparisons.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	if c := compareUint(v.major, other.major); c != 0 {
		return c
	}
	if c := compareUint(v.minor, other.minor); c != 0 {
		return c
	}
	if c := compareUint(v.patch, other.patch); c != 0 {
		return c
	}

	// A version without prerelease has higher precedence than one with prerelease
	switch {
	case v.prerelease == other.prerelease:
		return 0
	case v.prerelease == "":
		return 1
	case other.prerelease == "":
		return -1
	case v.prerelease < other.prerelease:
		return -1
	default:
		return 1
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
