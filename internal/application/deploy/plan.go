// Package deploy provides the application use cases that turn a pipeline
// trigger into a deployment plan.
package deploy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/pipeline"
	"github.com/relicta-tech/shipgate/internal/domain/ref"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
	"github.com/relicta-tech/shipgate/internal/domain/version"
	"github.com/relicta-tech/shipgate/internal/infrastructure/report"
	"github.com/relicta-tech/shipgate/internal/service/git"
)

// Repository provides repository metadata. *git.ServiceImpl implements it.
type Repository interface {
	GetHeadCommit(ctx context.Context) (*git.Commit, error)
	GetLatestVersionTag(ctx context.Context, prefix string) (*git.Tag, error)
}

// ReportLoader loads scanner reports. *report.Loader implements it.
type ReportLoader interface {
	Load(ctx context.Context, sources []report.Source) ([]report.Report, error)
}

// EventSummary is the normalized trigger of a run.
type EventSummary struct {
	Ref               string        `json:"ref" yaml:"ref" toml:"ref"`
	RefType           ref.RefType   `json:"ref_type" yaml:"ref_type" toml:"ref_type"`
	EventKind         ref.EventKind `json:"event" yaml:"event" toml:"event"`
	ManualEnvironment string        `json:"manual_environment,omitempty" yaml:"manual_environment,omitempty" toml:"manual_environment,omitempty"`
}

// Summarize returns the summary of an event.
func Summarize(e ref.Event) EventSummary {
	return EventSummary{
		Ref:               e.Ref(),
		RefType:           e.RefType(),
		EventKind:         e.EventKind(),
		ManualEnvironment: e.ManualEnvironment(),
	}
}

// VersionInput is the input of NextVersion.
type VersionInput struct {
	Event ref.Event
	// LatestTag is used as given unless DiscoverLatestTag is set.
	LatestTag         string
	DiscoverLatestTag bool
	// ShortCommit is read from HEAD when empty and shortened when too long.
	ShortCommit string
	// Date stamps production builds; zero means now.
	Date time.Time
}

// VersionOutput is the result of NextVersion.
type VersionOutput struct {
	version.Info `yaml:",inline"`

	Kind        ref.Kind `json:"ref_kind" yaml:"ref_kind" toml:"ref_kind"`
	LatestTag   string   `json:"latest_tag,omitempty" yaml:"latest_tag,omitempty" toml:"latest_tag,omitempty"`
	ShortCommit string   `json:"commit,omitempty" yaml:"commit,omitempty" toml:"commit,omitempty"`
	Anomalies   []string `json:"anomalies,omitempty" yaml:"anomalies,omitempty" toml:"anomalies,omitempty"`
}

// GateOutput is the result of Gate.
type GateOutput struct {
	Decision scan.Decision `json:"decision" yaml:"decision" toml:"decision"`
	// Scanners lists every scanner in stage order.
	Scanners []string `json:"scanners" yaml:"scanners" toml:"scanners"`
	// Pending lists enabled scanners that have no report yet.
	Pending []string `json:"pending,omitempty" yaml:"pending,omitempty" toml:"pending,omitempty"`
}

// PlanInput is the input of Plan.
type PlanInput struct {
	VersionInput
	Reports []report.Source
}

// Plan is the complete outcome for one pipeline run.
type Plan struct {
	Fingerprint string                 `json:"fingerprint" yaml:"fingerprint" toml:"fingerprint"`
	Event       EventSummary           `json:"event" yaml:"event" toml:"event"`
	Decision    environment.Decision   `json:"decision" yaml:"decision" toml:"decision"`
	Version     VersionOutput          `json:"version" yaml:"version" toml:"version"`
	Gate        GateOutput             `json:"gate" yaml:"gate" toml:"gate"`
	Stages      []pipeline.StageRecord `json:"stages" yaml:"stages" toml:"stages"`
	// Ready lists pending stages whose predecessors have all completed.
	Ready       []pipeline.StageID     `json:"ready,omitempty" yaml:"ready,omitempty" toml:"ready,omitempty"`
	Lifecycle   []string               `json:"lifecycle" yaml:"lifecycle" toml:"lifecycle"`
}

// Proceeds reports whether the run deploys and the gate lets it through.
func (p *Plan) Proceeds() bool {
	return p.Decision.ShouldDeploy && p.Gate.Decision.OverallProceed
}

// fingerprintNamespace scopes plan fingerprints.
var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/relicta-tech/shipgate/plan"))
