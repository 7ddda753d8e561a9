package deploy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/shipgate/internal/config"
	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/pipeline"
	"github.com/relicta-tech/shipgate/internal/domain/ref"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/infrastructure/report"
	"github.com/relicta-tech/shipgate/internal/service/git"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	head    *git.Commit
	headErr error
	tag     *git.Tag
	tagErr  error
}

func (m *mockRepository) GetHeadCommit(context.Context) (*git.Commit, error) {
	return m.head, m.headErr
}

func (m *mockRepository) GetLatestVersionTag(context.Context, string) (*git.Tag, error) {
	return m.tag, m.tagErr
}

// mockReportLoader implements ReportLoader for testing.
type mockReportLoader struct {
	reports []report.Report
	err     error
	got     []report.Source
}

func (m *mockReportLoader) Load(_ context.Context, sources []report.Source) ([]report.Report, error) {
	m.got = sources
	return m.reports, m.err
}

var planDate = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPlanner(cfg *config.Config, repo Repository, loader ReportLoader) *Planner {
	opts := []PlannerOption{
		WithLogger(discardLogger()),
		WithClock(func() time.Time { return planDate }),
	}
	if repo != nil {
		opts = append(opts, WithRepository(repo))
	}
	if loader != nil {
		opts = append(opts, WithReportLoader(loader))
	}
	return NewPlanner(cfg, opts...)
}

func headRepo() *mockRepository {
	return &mockRepository{
		head:   &git.Commit{Hash: "0123456789abcdef0123456789abcdef01234567"},
		tagErr: sgerrors.NotFound("git.GetLatestVersionTag", "no version tags found"),
	}
}

func cleanReports() *mockReportLoader {
	return &mockReportLoader{reports: []report.Report{
		{Name: "checkmarx", High: "0", Medium: "0", Low: "3"},
		{Name: "sonar", High: "0", Medium: "2", Low: "40"},
	}}
}

func stageOutcomes(records []pipeline.StageRecord) map[pipeline.StageID]pipeline.Outcome {
	out := make(map[pipeline.StageID]pipeline.Outcome, len(records))
	for _, r := range records {
		out[r.Stage] = r.Outcome
	}
	return out
}

func TestPlanner_Plan_Staging(t *testing.T) {
	loader := cleanReports()
	p := newTestPlanner(config.DefaultConfig(), headRepo(), loader)

	sources := []report.Source{{Name: "sonar", Path: "sonar.json"}, {Name: "checkmarx", Path: "cx.json"}}
	plan, err := p.Plan(context.Background(), PlanInput{
		VersionInput: VersionInput{
			Event:             ref.NewEvent("refs/heads/main", ref.TypeBranch, ref.EventPush, ""),
			DiscoverLatestTag: true,
		},
		Reports: sources,
	})
	require.NoError(t, err)

	assert.Equal(t, sources, loader.got)
	assert.Equal(t, environment.Staging, plan.Decision.Environment)
	assert.True(t, plan.Decision.ShouldDeploy)
	assert.Equal(t, "aks-staging", plan.Decision.Cluster.Name)

	assert.Equal(t, "staging-0123456", plan.Version.Version)
	assert.Equal(t, "staging-0123456", plan.Version.ImageTag)
	assert.Equal(t, "0.1.0-staging-0123456", plan.Version.ChartVersion)
	assert.Equal(t, "0123456", plan.Version.ShortCommit)
	assert.Empty(t, plan.Version.LatestTag)

	assert.True(t, plan.Gate.Decision.OverallProceed)
	assert.Equal(t, []string{"checkmarx", "sonar"}, plan.Gate.Scanners)
	assert.True(t, plan.Proceeds())

	stages := stageOutcomes(plan.Stages)
	assert.Equal(t, pipeline.OutcomePassed, stages[pipeline.ScanStage("sonar")])
	assert.Equal(t, pipeline.OutcomeSkipped, stages[pipeline.StageReleaseCreate])
	assert.Equal(t, pipeline.OutcomePending, stages[pipeline.StageHealthCheck])
	assert.Equal(t, []pipeline.StageID{pipeline.StageSetup}, plan.Ready)

	assert.Equal(t, "validating", plan.Lifecycle[0])
	assert.Equal(t, "completed", plan.Lifecycle[len(plan.Lifecycle)-1])
	assert.NotContains(t, plan.Lifecycle, "releasing")
}

func TestPlanner_Plan_NotDeployedHasNothingReady(t *testing.T) {
	p := newTestPlanner(config.DefaultConfig(), nil, cleanReports())

	plan, err := p.Plan(context.Background(), PlanInput{
		VersionInput: VersionInput{
			Event:       ref.NewEvent("feature/x", ref.TypeBranch, ref.EventPush, ""),
			ShortCommit: "abc1234",
		},
	})
	require.NoError(t, err)

	assert.False(t, plan.Decision.ShouldDeploy)
	assert.Empty(t, plan.Ready)
	assert.Equal(t, []string{"validating", string(pipeline.StateNotDeployed)}, plan.Lifecycle)
}

func TestPlanner_Plan_FingerprintIsDeterministic(t *testing.T) {
	in := PlanInput{
		VersionInput: VersionInput{
			Event:       ref.NewEvent("develop", ref.TypeBranch, ref.EventPush, ""),
			ShortCommit: "abc1234",
		},
	}

	first, err := newTestPlanner(config.DefaultConfig(), nil, cleanReports()).Plan(context.Background(), in)
	require.NoError(t, err)
	second, err := newTestPlanner(config.DefaultConfig(), nil, cleanReports()).Plan(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first, second)

	in.ShortCommit = "def5678"
	third, err := newTestPlanner(config.DefaultConfig(), nil, cleanReports()).Plan(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
}

func gateConfig(failBuild bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scanners = map[string]config.ScannerConfig{
		"sonar": {Enabled: "false"},
		"checkmarx": {
			Enabled:              "true",
			Thresholds:           scan.Thresholds{High: 0, Medium: -1, Low: -1},
			FailBuildOnViolation: failBuild,
		},
	}
	return cfg
}

func TestPlanner_Gate_BlockingViolation(t *testing.T) {
	loader := &mockReportLoader{reports: []report.Report{
		{Name: "sonar", High: "9", Medium: "9", Low: "9"},
		{Name: "checkmarx", High: "2", Medium: "0", Low: "0"},
	}}
	p := newTestPlanner(gateConfig(true), nil, loader)

	plan, err := p.Plan(context.Background(), PlanInput{
		VersionInput: VersionInput{
			Event:       ref.NewEvent("main", ref.TypeBranch, ref.EventPush, ""),
			ShortCommit: "abc1234",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]scan.Status{
		"sonar":     scan.StatusSkipped,
		"checkmarx": scan.StatusFailed,
	}, plan.Gate.Decision.PerScan)
	assert.False(t, plan.Gate.Decision.OverallProceed)
	assert.False(t, plan.Proceeds())

	stages := stageOutcomes(plan.Stages)
	assert.Equal(t, pipeline.OutcomeBlocked, stages[pipeline.StageDeploy])
	assert.Equal(t, "blocked", plan.Lifecycle[len(plan.Lifecycle)-1])
}

func TestPlanner_Gate_AdvisoryViolation(t *testing.T) {
	loader := &mockReportLoader{reports: []report.Report{
		{Name: "checkmarx", High: "2", Medium: "0", Low: "0"},
	}}
	p := newTestPlanner(gateConfig(false), nil, loader)

	out, err := p.Gate(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, scan.StatusPassed, out.Decision.PerScan["checkmarx"])
	assert.Equal(t, scan.StatusSkipped, out.Decision.PerScan["sonar"])
	assert.True(t, out.Decision.OverallProceed)
}

func TestPlanner_Gate_PendingAndUnconfigured(t *testing.T) {
	loader := &mockReportLoader{reports: []report.Report{
		{Name: "trivy", High: "1", Medium: "0", Low: "0"},
		{Name: "checkmarx", Problem: "cx.json: report not found"},
	}}
	p := newTestPlanner(config.DefaultConfig(), nil, loader)

	out, err := p.Gate(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"checkmarx", "sonar", "trivy"}, out.Scanners)
	assert.Equal(t, []string{"sonar"}, out.Pending)
	assert.NotContains(t, out.Decision.PerScan, "sonar")

	// report problems count as zero findings
	assert.Equal(t, scan.StatusPassed, out.Decision.PerScan["checkmarx"])
	require.Len(t, out.Decision.Evaluations, 2)
	assert.Equal(t, []string{"cx.json: report not found"}, out.Decision.Evaluations[0].Anomalies)

	// unconfigured scanners tolerate no high findings
	assert.Equal(t, scan.StatusFailed, out.Decision.PerScan["trivy"])
	assert.Equal(t, []string{"trivy"}, out.Decision.Failed())
	assert.False(t, out.Decision.OverallProceed)
}

func TestPlanner_Gate_MissingReportKeepsGateClosed(t *testing.T) {
	loader := &mockReportLoader{reports: []report.Report{
		{Name: "checkmarx", High: "0", Medium: "0", Low: "0"},
	}}
	p := newTestPlanner(config.DefaultConfig(), nil, loader)

	out, err := p.Gate(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"sonar"}, out.Pending)
	assert.Equal(t, scan.StatusPassed, out.Decision.PerScan["checkmarx"])
	assert.Empty(t, out.Decision.Failed())
	assert.False(t, out.Decision.OverallProceed)
}

func TestPlanner_Gate_NoReports(t *testing.T) {
	p := newTestPlanner(config.DefaultConfig(), nil, &mockReportLoader{})

	out, err := p.Gate(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"checkmarx", "sonar"}, out.Pending)
	assert.Empty(t, out.Decision.PerScan)
	assert.False(t, out.Decision.OverallProceed)
}

func TestPlanner_Plan_PendingScanHoldsDeployment(t *testing.T) {
	loader := &mockReportLoader{reports: []report.Report{
		{Name: "checkmarx", High: "0", Medium: "0", Low: "0"},
	}}
	p := newTestPlanner(config.DefaultConfig(), nil, loader)

	plan, err := p.Plan(context.Background(), PlanInput{
		VersionInput: VersionInput{
			Event:       ref.NewEvent("main", ref.TypeBranch, ref.EventPush, ""),
			ShortCommit: "abc1234",
		},
	})
	require.NoError(t, err)

	assert.False(t, plan.Proceeds())
	stages := stageOutcomes(plan.Stages)
	assert.Equal(t, pipeline.OutcomePending, stages[pipeline.ScanStage("sonar")])
	assert.Equal(t, pipeline.OutcomePending, stages[pipeline.StageImageBuild])
	assert.Equal(t, "blocked", plan.Lifecycle[len(plan.Lifecycle)-1])
}

func TestPlanner_Gate_LoaderError(t *testing.T) {
	canceled := sgerrors.Wrap(context.Canceled, sgerrors.KindCanceled, "report.Load", "report loading canceled")
	p := newTestPlanner(config.DefaultConfig(), nil, &mockReportLoader{err: canceled})

	_, err := p.Gate(context.Background(), nil)
	assert.True(t, sgerrors.IsKind(err, sgerrors.KindCanceled))
}

func TestPlanner_NextVersion(t *testing.T) {
	tests := []struct {
		name          string
		repo          *mockRepository
		in            VersionInput
		wantVersion   string
		wantChart     string
		wantAnomalies int
	}{
		{
			name:        "tag is used verbatim",
			in:          VersionInput{Event: ref.NewEvent("refs/tags/v2.4.0", ref.TypeTag, ref.EventPush, "")},
			wantVersion: "v2.4.0",
			wantChart:   "v2.4.0",
		},
		{
			name:        "release branch with embedded version",
			in:          VersionInput{Event: ref.NewEvent("release/2.3.1", ref.TypeBranch, ref.EventPush, ""), LatestTag: "v2.3.0"},
			wantVersion: "v2.3.1",
			wantChart:   "v2.3.1",
		},
		{
			name:          "release branch behind latest tag",
			in:            VersionInput{Event: ref.NewEvent("release/2.3.1", ref.TypeBranch, ref.EventPush, ""), LatestTag: "v9.9.9"},
			wantVersion:   "v2.3.1",
			wantChart:     "v2.3.1",
			wantAnomalies: 1,
		},
		{
			name:        "release branch after prerelease tag",
			in:          VersionInput{Event: ref.NewEvent("release/next", ref.TypeBranch, ref.EventPush, ""), LatestTag: "v1.5.0-rc.1"},
			wantVersion: "v1.5.0",
			wantChart:   "v1.5.0",
		},
		{
			name: "release branch bumps discovered tag",
			repo: &mockRepository{tag: &git.Tag{Name: "v1.4.9"}},
			in: VersionInput{
				Event:             ref.NewEvent("release/next", ref.TypeBranch, ref.EventPush, ""),
				LatestTag:         "ignored",
				DiscoverLatestTag: true,
			},
			wantVersion: "v1.5.0",
			wantChart:   "v1.5.0",
		},
		{
			name:        "release branch without tags",
			in:          VersionInput{Event: ref.NewEvent("release/next", ref.TypeBranch, ref.EventPush, "")},
			wantVersion: "v0.0.1",
			wantChart:   "v0.0.1",
		},
		{
			name:          "release branch with unparsable tag",
			in:            VersionInput{Event: ref.NewEvent("release/next", ref.TypeBranch, ref.EventPush, ""), LatestTag: "nightly"},
			wantVersion:   "v0.0.1",
			wantChart:     "v0.0.1",
			wantAnomalies: 1,
		},
		{
			name: "manual production from feature branch",
			in: VersionInput{
				Event:       ref.NewEvent("feature/login", ref.TypeBranch, ref.EventManual, "production"),
				ShortCommit: "abc1234ffff",
				Date:        planDate,
			},
			wantVersion: "v1.0.0-20240315-abc1234",
			wantChart:   "v1.0.0-20240315-abc1234",
		},
		{
			name:        "dev build reads HEAD",
			repo:        headRepo(),
			in:          VersionInput{Event: ref.NewEvent("develop", ref.TypeBranch, ref.EventPush, "")},
			wantVersion: "dev-0123456",
			wantChart:   "0.1.0-dev-0123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var repo Repository
			if tt.repo != nil {
				repo = tt.repo
			}
			p := newTestPlanner(config.DefaultConfig(), repo, nil)

			out, err := p.NextVersion(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, out.Version)
			assert.Equal(t, tt.wantVersion, out.ImageTag)
			assert.Equal(t, tt.wantChart, out.ChartVersion)
			assert.Len(t, out.Anomalies, tt.wantAnomalies)
		})
	}
}

func TestPlanner_NextVersion_MissingCommit(t *testing.T) {
	p := newTestPlanner(config.DefaultConfig(), nil, nil)

	_, err := p.NextVersion(context.Background(), VersionInput{
		Event: ref.NewEvent("main", ref.TypeBranch, ref.EventPush, ""),
	})
	assert.True(t, sgerrors.IsKind(err, sgerrors.KindValidation), "got %v", err)

	out, err := p.NextVersion(context.Background(), VersionInput{
		Event: ref.NewEvent("feature/x", ref.TypeBranch, ref.EventPush, ""),
	})
	require.NoError(t, err, "refs that do not deploy need no commit")
	assert.Equal(t, "unknown-", out.Version)
}

func TestPlanner_Resolve(t *testing.T) {
	p := newTestPlanner(config.DefaultConfig(), nil, nil)

	d := p.Resolve(ref.NewEvent("feature/login", ref.TypeBranch, ref.EventManual, "production"))
	assert.Equal(t, environment.Production, d.Environment)
	assert.True(t, d.ShouldDeploy)

	d = p.Resolve(ref.NewEvent("feature/login", ref.TypeBranch, ref.EventManual, "qa"))
	assert.Equal(t, environment.Unknown, d.Environment)
	assert.False(t, d.ShouldDeploy)

	assert.Equal(t, ref.KindIntegrationLine, p.Classify(ref.NewEvent("develop", ref.TypeBranch, ref.EventPush, "")))
}
