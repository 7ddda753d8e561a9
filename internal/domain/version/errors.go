// Package version provides semantic versions and the generator that derives
// version, image tag and chart version for a deployment.
package version

import "errors"

// Domain errors for version operations.
var (
	// ErrInvalidVersion indicates an invalid version string.
	ErrInvalidVersion = errors.New("invalid semantic version")

	// ErrNoEmbeddedVersion indicates a release branch carries no major.minor.patch.
	ErrNoEmbeddedVersion = errors.New("branch has no embedded version")
)
