package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
)

func ids(stages []Stage) []StageID {
	out := make([]StageID, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.ID)
	}
	return out
}

func outcomesOf(records []StageRecord) map[StageID]Outcome {
	out := make(map[StageID]Outcome, len(records))
	for _, r := range records {
		out[r.Stage] = r.Outcome
	}
	return out
}

func TestNewGraph_Order(t *testing.T) {
	g := NewGraph([]string{"sonar", "checkmarx", "sonar"})

	assert.Equal(t, []StageID{
		StageValidateEnvironment,
		StageSetup,
		StageBuild,
		"scan:sonar",
		"scan:checkmarx",
		StageImageBuild,
		StageDeploy,
		StageReleaseCreate,
		StageHealthCheck,
	}, ids(g.Stages()))

	image, ok := g.Stage(StageImageBuild)
	require.True(t, ok)
	assert.Equal(t, []StageID{"scan:sonar", "scan:checkmarx"}, image.Needs)

	release, ok := g.Stage(StageReleaseCreate)
	require.True(t, ok)
	assert.True(t, release.ProductionOnly)
	assert.Equal(t, []StageID{StageDeploy}, release.Needs)
}

func TestNewGraph_NoScanners(t *testing.T) {
	g := NewGraph(nil)

	image, ok := g.Stage(StageImageBuild)
	require.True(t, ok)
	assert.Equal(t, []StageID{StageBuild}, image.Needs)
}

func TestStageID_Scanner(t *testing.T) {
	name, ok := ScanStage("trivy").Scanner()
	assert.True(t, ok)
	assert.Equal(t, "trivy", name)

	_, ok = StageDeploy.Scanner()
	assert.False(t, ok)
}

func TestGraph_CanStart(t *testing.T) {
	g := NewGraph([]string{"sonar", "checkmarx"})

	outcomes := map[StageID]Outcome{
		StageValidateEnvironment: OutcomeSuccess,
		StageSetup:               OutcomeSuccess,
		StageBuild:               OutcomeSuccess,
		"scan:sonar":             OutcomeSkipped,
	}

	assert.True(t, g.CanStart(StageValidateEnvironment, nil))
	assert.True(t, g.CanStart("scan:checkmarx", outcomes))
	assert.False(t, g.CanStart(StageImageBuild, outcomes), "checkmarx has not terminated")

	outcomes["scan:checkmarx"] = OutcomePassed
	assert.True(t, g.CanStart(StageImageBuild, outcomes))

	outcomes["scan:checkmarx"] = OutcomeFailed
	assert.False(t, g.CanStart(StageImageBuild, outcomes))

	assert.False(t, g.CanStart("scan:unknown", outcomes))
}

func TestGraph_Ready(t *testing.T) {
	g := NewGraph([]string{"sonar", "checkmarx"})

	assert.Equal(t, []StageID{StageValidateEnvironment}, g.Ready(nil))

	outcomes := map[StageID]Outcome{
		StageValidateEnvironment: OutcomeSuccess,
		StageSetup:               OutcomeSuccess,
		StageBuild:               OutcomeSuccess,
	}
	assert.Equal(t, []StageID{"scan:sonar", "scan:checkmarx"}, g.Ready(outcomes))

	outcomes["scan:sonar"] = OutcomePassed
	outcomes["scan:checkmarx"] = OutcomePassed
	outcomes[StageImageBuild] = OutcomeSuccess
	outcomes[StageDeploy] = OutcomeSuccess
	assert.Equal(t, []StageID{StageReleaseCreate, StageHealthCheck}, g.Ready(outcomes))
}

func TestGraph_ReadyAfterSchedule(t *testing.T) {
	g := NewGraph([]string{"sonar"})
	gate := scan.Decision{OverallProceed: true, PerScan: map[string]scan.Status{"sonar": scan.StatusPassed}}

	records := g.Schedule(environment.Decision{Environment: environment.Dev, ShouldDeploy: true}, gate)
	outcomes := Outcomes(records)
	assert.Len(t, outcomes, len(records))
	assert.Equal(t, OutcomePassed, outcomes["scan:sonar"])
	assert.Equal(t, []StageID{StageSetup}, g.Ready(outcomes))

	records = g.Schedule(environment.Decision{Environment: environment.Unknown}, gate)
	assert.Empty(t, g.Ready(Outcomes(records)))
}

func TestGraph_Schedule_NotDeployed(t *testing.T) {
	g := NewGraph([]string{"sonar"})

	records := g.Schedule(environment.Decision{Environment: environment.Unknown}, scan.Decision{OverallProceed: true})

	require.Len(t, records, len(g.Stages()))
	for _, r := range records {
		assert.Equal(t, OutcomeNotDeployed, r.Outcome, "stage %s", r.Stage)
	}
}

func TestGraph_Schedule_GateBlocks(t *testing.T) {
	g := NewGraph([]string{"sonar", "checkmarx"})
	gate := scan.Aggregate([]scan.Result{
		{Name: "sonar", Enabled: false},
		{Name: "checkmarx", Enabled: true, Counts: scan.SeverityCounts{High: 2}, FailBuildOnViolation: true},
	})

	got := outcomesOf(g.Schedule(environment.Decision{Environment: environment.Staging, ShouldDeploy: true}, gate))

	assert.Equal(t, OutcomeSuccess, got[StageValidateEnvironment])
	assert.Equal(t, OutcomePending, got[StageSetup])
	assert.Equal(t, OutcomeSkipped, got["scan:sonar"])
	assert.Equal(t, OutcomeFailed, got["scan:checkmarx"])
	assert.Equal(t, OutcomeBlocked, got[StageImageBuild])
	assert.Equal(t, OutcomeBlocked, got[StageDeploy])
	assert.Equal(t, OutcomeBlocked, got[StageReleaseCreate])
	assert.Equal(t, OutcomeBlocked, got[StageHealthCheck])
}

func TestGraph_Schedule_ReleaseOnlyInProduction(t *testing.T) {
	g := NewGraph([]string{"sonar"})
	gate := scan.Aggregate([]scan.Result{{Name: "sonar", Enabled: true}})

	staging := outcomesOf(g.Schedule(environment.Decision{Environment: environment.Staging, ShouldDeploy: true}, gate))
	assert.Equal(t, OutcomeSkipped, staging[StageReleaseCreate])
	assert.Equal(t, OutcomePending, staging[StageHealthCheck])
	assert.Equal(t, OutcomePassed, staging["scan:sonar"])

	prod := outcomesOf(g.Schedule(environment.Decision{Environment: environment.Production, ShouldDeploy: true}, gate))
	assert.Equal(t, OutcomePending, prod[StageReleaseCreate])
	assert.Equal(t, OutcomePending, prod[StageHealthCheck])
}

func TestGraph_Schedule_ScanWithoutResultStaysPending(t *testing.T) {
	g := NewGraph([]string{"trivy"})

	got := outcomesOf(g.Schedule(environment.Decision{Environment: environment.Dev, ShouldDeploy: true}, scan.Aggregate(nil)))
	assert.Equal(t, OutcomePending, got["scan:trivy"])
	assert.Equal(t, OutcomePending, got[StageImageBuild])
}

func TestOutcome(t *testing.T) {
	for _, o := range []Outcome{OutcomeSuccess, OutcomePassed, OutcomeSkipped} {
		assert.True(t, o.NonBlocking(), o)
		assert.True(t, o.Terminated(), o)
	}
	for _, o := range []Outcome{OutcomeFailed, OutcomeBlocked, OutcomeNotDeployed} {
		assert.False(t, o.NonBlocking(), o)
		assert.True(t, o.Terminated(), o)
	}
	assert.False(t, OutcomePending.Terminated())
	assert.False(t, Outcome("").Terminated())
}
