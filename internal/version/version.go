// Package version reports the shipgate release.
package version

import (
	_ "embed"
	"strings"
)

// devVersion is what main reports when built without ldflags.
const devVersion = "dev"

//go:embed VERSION
var embedded string

// Get returns the embedded release as a tag, e.g. v0.1.0.
func Get() string {
	return "v" + strings.TrimSpace(embedded)
}

// Resolve returns the version injected at link time, or the embedded
// release when nothing was injected.
func Resolve(injected string) string {
	injected = strings.TrimSpace(injected)
	if injected == "" || injected == devVersion {
		return Get()
	}
	return injected
}
