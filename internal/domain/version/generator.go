package version

import (
	"strings"
	"time"

	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/ref"
)

// Info holds the three identifiers of a deployable artifact.
// They are always produced together by one branch of Generate.
type Info struct {
	Version      string `json:"version" yaml:"version" toml:"version"`
	ImageTag     string `json:"image_tag" yaml:"image_tag" toml:"image_tag"`
	ChartVersion string `json:"chart_version" yaml:"chart_version" toml:"chart_version"`
}

func uniform(s string) Info {
	return Info{Version: s, ImageTag: s, ChartVersion: s}
}

// Options configures version generation.
type Options struct {
	// TagPrefix is stripped from the latest tag and prepended to release versions.
	TagPrefix string
	// PatchRollover carries the patch into the minor component; 0 disables it.
	PatchRollover uint64
	// ProductionBase prefixes manual production builds.
	ProductionBase string
	// ChartBase prefixes chart versions of environment builds.
	ChartBase string
	// DateLayout formats the date stamp of manual production builds.
	DateLayout string
}

// DefaultOptions returns the default generation options.
func DefaultOptions() Options {
	return Options{
		TagPrefix:      "v",
		PatchRollover:  DefaultPatchRollover,
		ProductionBase: "v1.0.0",
		ChartBase:      "0.1.0",
		DateLayout:     "20060102",
	}
}

// GenerateInput is everything Generate needs. LatestTag is empty when the
// repository has no version tag.
type GenerateInput struct {
	Event       ref.Event
	Kind        ref.Kind
	Environment environment.Environment
	LatestTag   string
	ShortCommit string
	Date        time.Time
}

// Generator derives version identifiers for a run.
type Generator struct {
	classifier *ref.Classifier
	opts       Options
}

// NewGenerator creates a generator. The classifier supplies the release
// prefix used to find versions embedded in release branch names.
func NewGenerator(classifier *ref.Classifier, opts Options) *Generator {
	return &Generator{
		classifier: classifier,
		opts:       opts,
	}
}

// Generate computes the version identifiers. It never fails: an absent or
// unparsable latest tag falls back to 0.0.0.
func (g *Generator) Generate(in GenerateInput) Info {
	switch {
	case in.Kind == ref.KindTag:
		return uniform(ref.Normalize(in.Event.Ref()))

	case in.Kind == ref.KindReleaseLine:
		return uniform(g.ReleaseVersion(in.Event.Ref(), in.LatestTag))

	case in.Environment == environment.Production:
		stamp := in.Date.UTC().Format(g.opts.DateLayout)
		return uniform(g.opts.ProductionBase + "-" + stamp + "-" + in.ShortCommit)

	default:
		qualified := in.Environment.String() + "-" + in.ShortCommit
		return Info{
			Version:      qualified,
			ImageTag:     qualified,
			ChartVersion: g.opts.ChartBase + "-" + qualified,
		}
	}
}

// ReleaseVersion returns the version for a release branch: the version
// embedded in the branch name, or the next patch after latestTag.
func (g *Generator) ReleaseVersion(branch, latestTag string) string {
	if v, err := g.EmbeddedVersion(branch); err == nil {
		return g.opts.TagPrefix + v.String()
	}
	base, _ := g.BaseVersion(latestTag)
	return g.opts.TagPrefix + NewPatchBump(g.opts.PatchRollover).Apply(base).String()
}

// EmbeddedVersion extracts major.minor.patch from a release branch name.
func (g *Generator) EmbeddedVersion(branch string) (SemanticVersion, error) {
	name := ref.Normalize(branch)
	if suffix, ok := g.classifier.ReleaseSuffix(name); ok {
		name = suffix
	}
	v, err := ParseCore(name)
	if err != nil {
		return Zero, ErrNoEmbeddedVersion
	}
	return v, nil
}

// BaseVersion parses the latest tag, keeping any prerelease so the bump can
// promote it. The boolean is false when the tag was present but could not be
// parsed; absent and unparsable both yield Zero.
func (g *Generator) BaseVersion(latestTag string) (SemanticVersion, bool) {
	tag := strings.TrimSpace(latestTag)
	if tag == "" {
		return Zero, true
	}
	if g.opts.TagPrefix != "" {
		tag = strings.TrimPrefix(tag, g.opts.TagPrefix)
	}
	v, err := Parse(tag)
	if err != nil {
		return Zero, false
	}
	return v, true
}
