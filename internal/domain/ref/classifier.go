package ref

import (
	"regexp"
	"strings"
)

// versionLikeSuffix matches what may follow the release prefix: 2, 2.3, 2.3.x, v2.3.1.
var versionLikeSuffix = regexp.MustCompile(`^v?\d+(?:\.(?:\d+|x|\*))*$`)

// Rules configures reference classification.
type Rules struct {
	MainBranch        string
	IntegrationBranch string
	ReleasePrefix     string
}

// DefaultRules returns the conventional main/develop/release layout.
func DefaultRules() Rules {
	return Rules{
		MainBranch:        "main",
		IntegrationBranch: "develop",
		ReleasePrefix:     "release/",
	}
}

// Classifier maps references to their semantic kind.
type Classifier struct {
	rules Rules
}

// NewClassifier creates a classifier for the given rules.
func NewClassifier(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Rules returns the classifier's rules.
func (c *Classifier) Rules() Rules {
	return c.rules
}

// Classify returns the kind of a reference. First match wins:
// tag, main line, integration line, release line, other.
func (c *Classifier) Classify(ref string, refType RefType) Kind {
	if refType == TypeTag {
		return KindTag
	}

	name := Normalize(ref)
	switch {
	case name == "":
		return KindOther
	case c.rules.MainBranch != "" && name == c.rules.MainBranch:
		return KindMainLine
	case c.rules.IntegrationBranch != "" && name == c.rules.IntegrationBranch:
		return KindIntegrationLine
	case c.IsReleaseBranch(name):
		return KindReleaseLine
	default:
		return KindOther
	}
}

// ClassifyEvent classifies the reference carried by an event.
func (c *Classifier) ClassifyEvent(e Event) Kind {
	return c.Classify(e.Ref(), e.RefType())
}

// IsReleaseBranch reports whether name is the release prefix followed by a
// version-like suffix.
func (c *Classifier) IsReleaseBranch(name string) bool {
	suffix, ok := c.ReleaseSuffix(name)
	return ok && versionLikeSuffix.MatchString(suffix)
}

// ReleaseSuffix returns the part of name after the release prefix.
func (c *Classifier) ReleaseSuffix(name string) (string, bool) {
	if c.rules.ReleasePrefix == "" {
		return "", false
	}
	return strings.CutPrefix(Normalize(name), c.rules.ReleasePrefix)
}
