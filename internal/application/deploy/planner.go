package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relicta-tech/shipgate/internal/config"
	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/pipeline"
	"github.com/relicta-tech/shipgate/internal/domain/ref"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
	"github.com/relicta-tech/shipgate/internal/domain/version"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/infrastructure/report"
)

const defaultShortCommitLength = 7

// Planner runs the deployment decision use cases.
type Planner struct {
	cfg        *config.Config
	classifier *ref.Classifier
	resolver   *environment.Resolver
	generator  *version.Generator
	repo       Repository
	reports    ReportLoader
	now        func() time.Time
	logger     *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithRepository sets the source of repository metadata. Without one, the
// latest tag is absent and the commit must be given.
func WithRepository(repo Repository) PlannerOption {
	return func(p *Planner) {
		p.repo = repo
	}
}

// WithReportLoader replaces the file-based report loader.
func WithReportLoader(loader ReportLoader) PlannerOption {
	return func(p *Planner) {
		p.reports = loader
	}
}

// WithClock sets the clock used when no date is given.
func WithClock(now func() time.Time) PlannerOption {
	return func(p *Planner) {
		p.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = logger
	}
}

// NewPlanner creates a planner for the given configuration.
func NewPlanner(cfg *config.Config, opts ...PlannerOption) *Planner {
	classifier := ref.NewClassifier(cfg.Refs.Rules())

	p := &Planner{
		cfg:        cfg,
		classifier: classifier,
		resolver:   environment.NewResolver(classifier, cfg.Environments.ClusterTable()),
		generator:  version.NewGenerator(classifier, cfg.Versioning.Options()),
		reports: report.NewLoader(
			report.WithMaxSize(cfg.Reports.MaxSize),
			report.WithConcurrency(cfg.Reports.Concurrency),
		),
		now:    time.Now,
		logger: slog.Default().With("usecase", "plan"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Classify returns the kind of the event's reference.
func (p *Planner) Classify(e ref.Event) ref.Kind {
	return p.classifier.ClassifyEvent(e)
}

// Resolve returns the deployment decision for the event.
func (p *Planner) Resolve(e ref.Event) environment.Decision {
	d := p.resolver.Resolve(e)
	p.logDecision(e, d)
	return d
}

// NextVersion computes the version identifiers for the event.
func (p *Planner) NextVersion(ctx context.Context, in VersionInput) (*VersionOutput, error) {
	return p.nextVersion(ctx, in, p.resolver.Resolve(in.Event))
}

func (p *Planner) nextVersion(ctx context.Context, in VersionInput, d environment.Decision) (*VersionOutput, error) {
	latest := strings.TrimSpace(in.LatestTag)
	if in.DiscoverLatestTag {
		latest = p.discoverLatestTag(ctx)
	}

	commit, err := p.shortCommit(ctx, in.ShortCommit, d)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = p.now()
	}

	out := &VersionOutput{
		Kind:        d.Kind,
		LatestTag:   latest,
		ShortCommit: commit,
	}

	if d.Kind == ref.KindReleaseLine {
		out.Anomalies = append(out.Anomalies, p.checkReleaseBase(in.Event.Ref(), latest)...)
	}

	out.Info = p.generator.Generate(version.GenerateInput{
		Event:       in.Event,
		Kind:        d.Kind,
		Environment: d.Environment,
		LatestTag:   latest,
		ShortCommit: commit,
		Date:        date,
	})

	p.logger.Debug("version generated",
		"version", out.Version,
		"image_tag", out.ImageTag,
		"chart_version", out.ChartVersion)

	return out, nil
}

// checkReleaseBase reports latest tags that cannot serve as the base of a
// release branch version, and release branches that would not move past them.
func (p *Planner) checkReleaseBase(branch, latest string) []string {
	embedded, embErr := p.generator.EmbeddedVersion(branch)
	base, ok := p.generator.BaseVersion(latest)

	switch {
	case embErr != nil && !ok:
		p.logger.Warn("latest tag is not a semantic version, using 0.0.0", "tag", latest)
		return []string{fmt.Sprintf("latest tag %q is not a semantic version, using 0.0.0", latest)}
	case embErr == nil && ok && latest != "" && embedded.Compare(base) <= 0:
		p.logger.Warn("release branch version is not newer than the latest tag", "branch", branch, "tag", latest)
		return []string{fmt.Sprintf("release branch version %s is not newer than latest tag %q", embedded, latest)}
	default:
		return nil
	}
}

func (p *Planner) discoverLatestTag(ctx context.Context) string {
	if p.repo == nil {
		return ""
	}

	tag, err := p.repo.GetLatestVersionTag(ctx, p.cfg.Versioning.TagPrefix)
	if err != nil {
		if sgerrors.IsKind(err, sgerrors.KindNotFound) {
			p.logger.Debug("no version tags found", "tag_prefix", p.cfg.Versioning.TagPrefix)
		} else {
			p.logger.Warn("failed to read version tags", "error", err)
		}
		return ""
	}
	return tag.Name
}

// shortCommit returns the abbreviated commit hash. A missing commit is an
// error only when the version of a deploying run depends on it.
func (p *Planner) shortCommit(ctx context.Context, given string, d environment.Decision) (string, error) {
	const op = "deploy.ShortCommit"

	commit := strings.TrimSpace(given)
	if commit == "" && p.repo != nil {
		head, err := p.repo.GetHeadCommit(ctx)
		if err != nil {
			p.logger.Warn("failed to read HEAD commit", "error", err)
		} else {
			commit = head.Hash
		}
	}

	if commit == "" {
		if !d.ShouldDeploy || d.Kind == ref.KindTag || d.Kind == ref.KindReleaseLine {
			return "", nil
		}
		return "", sgerrors.Validation(op, "commit hash unavailable: pass --commit or run inside a git repository")
	}

	n := p.cfg.Versioning.ShortCommitLength
	if n <= 0 {
		n = defaultShortCommitLength
	}
	if len(commit) > n {
		commit = commit[:n]
	}
	return commit, nil
}

// Gate loads the scanner reports and evaluates the scan gate.
func (p *Planner) Gate(ctx context.Context, sources []report.Source) (*GateOutput, error) {
	reports, err := p.reports.Load(ctx, sources)
	if err != nil {
		return nil, err
	}

	results, scanners, pending := p.scanResults(reports)
	decision := scan.Aggregate(results)
	// A scan that has not reported cannot clear the gate.
	if len(pending) > 0 {
		decision.OverallProceed = false
	}
	p.logGate(decision, pending)

	return &GateOutput{
		Decision: decision,
		Scanners: scanners,
		Pending:  pending,
	}, nil
}

// scanResults pairs reports with scanner configuration. Configured scanners
// come first in name order, followed by reported but unconfigured scanners
// in report order. Enabled scanners without a report are pending: they have
// no status of their own but keep the gate closed.
func (p *Planner) scanResults(reports []report.Report) (results []scan.Result, scanners, pending []string) {
	byName := make(map[string]report.Report, len(reports))
	for _, r := range reports {
		byName[r.Name] = r
	}

	for _, name := range p.cfg.ScannerNames() {
		sc := p.cfg.Scanners[name]
		scanners = append(scanners, name)

		r, reported := byName[name]
		switch {
		case !sc.IsEnabled():
			if reported {
				p.logger.Debug("ignoring report of disabled scanner", "scanner", name)
			}
			results = append(results, newResult(name, sc, report.Report{}))
		case !reported:
			pending = append(pending, name)
		default:
			results = append(results, newResult(name, sc, r))
		}
	}

	for _, r := range reports {
		sc, configured := p.cfg.Scanner(r.Name)
		if configured {
			continue
		}
		p.logger.Info("scanner not configured, using default thresholds", "scanner", r.Name)
		scanners = append(scanners, r.Name)
		results = append(results, newResult(r.Name, sc, r))
	}

	return results, scanners, pending
}

func newResult(name string, sc config.ScannerConfig, r report.Report) scan.Result {
	res := scan.Result{
		Name:                 name,
		Enabled:              sc.IsEnabled(),
		Thresholds:           sc.Thresholds,
		FailBuildOnViolation: sc.FailBuildOnViolation,
	}
	if res.Enabled {
		res.Counts, res.Anomalies = r.Counts()
	}
	return res
}

// Plan computes the complete outcome of a run.
func (p *Planner) Plan(ctx context.Context, in PlanInput) (*Plan, error) {
	const op = "deploy.Plan"

	d := p.Resolve(in.Event)

	v, err := p.nextVersion(ctx, in.VersionInput, d)
	if err != nil {
		return nil, err
	}

	gate, err := p.Gate(ctx, in.Reports)
	if err != nil {
		return nil, err
	}

	graph := pipeline.NewGraph(gate.Scanners)
	trail, err := pipeline.Project(d, gate.Decision)
	if err != nil {
		return nil, sgerrors.InternalWrap(err, op, "failed to project run lifecycle")
	}

	lifecycle := make([]string, len(trail))
	for i, s := range trail {
		lifecycle[i] = string(s)
	}

	stages := graph.Schedule(d, gate.Decision)
	plan := &Plan{
		Event:     Summarize(in.Event),
		Decision:  d,
		Version:   *v,
		Gate:      *gate,
		Stages:    stages,
		Ready:     graph.Ready(pipeline.Outcomes(stages)),
		Lifecycle: lifecycle,
	}
	plan.Fingerprint = fingerprint(plan)

	p.logger.Info("plan computed",
		"fingerprint", plan.Fingerprint,
		"environment", d.Environment,
		"should_deploy", d.ShouldDeploy,
		"version", v.Version,
		"proceed", gate.Decision.OverallProceed)

	return plan, nil
}

// fingerprint derives a name-based UUID from everything that determines
// the plan, so identical inputs always produce the same value.
func fingerprint(plan *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ref=%s\nref_type=%s\nevent=%s\noverride=%s\n",
		plan.Event.Ref, plan.Event.RefType, plan.Event.EventKind, plan.Event.ManualEnvironment)
	fmt.Fprintf(&b, "environment=%s\ndeploy=%t\ncluster=%s/%s\n",
		plan.Decision.Environment, plan.Decision.ShouldDeploy,
		plan.Decision.Cluster.ResourceGroup, plan.Decision.Cluster.Name)
	fmt.Fprintf(&b, "version=%s\nimage=%s\nchart=%s\n",
		plan.Version.Version, plan.Version.ImageTag, plan.Version.ChartVersion)
	for _, e := range plan.Gate.Decision.Evaluations {
		fmt.Fprintf(&b, "scan=%s:%s\n", e.Name, e.Status)
	}
	for _, name := range plan.Gate.Pending {
		fmt.Fprintf(&b, "pending=%s\n", name)
	}
	return uuid.NewSHA1(fingerprintNamespace, []byte(b.String())).String()
}

func (p *Planner) logDecision(e ref.Event, d environment.Decision) {
	if d.ShouldDeploy {
		p.logger.Info("deployment approved",
			"ref", e.Ref(),
			"environment", d.Environment,
			"cluster", d.Cluster.Name,
			"reason", d.Reason)
		return
	}
	p.logger.Info("deployment skipped",
		"ref", e.Ref(),
		"ref_kind", d.Kind,
		"environment", d.Environment,
		"reason", d.Reason)
}

func (p *Planner) logGate(d scan.Decision, pending []string) {
	for _, e := range d.Evaluations {
		for _, a := range e.Anomalies {
			p.logger.Warn("scan report anomaly", "scanner", e.Name, "anomaly", a)
		}
		if len(e.Violations) == 0 {
			continue
		}
		violations := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			violations[i] = v.String()
		}
		if e.Advisory() {
			p.logger.Warn("threshold exceeded, not blocking", "scanner", e.Name, "violations", violations)
		} else {
			p.logger.Error("threshold exceeded", "scanner", e.Name, "violations", violations)
		}
	}

	for _, name := range pending {
		p.logger.Warn("enabled scanner has no report", "scanner", name)
	}

	if !d.OverallProceed {
		p.logger.Warn("scan gate blocked", "failed", d.Failed(), "pending", pending)
	}
}
