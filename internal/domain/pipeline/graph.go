// Package pipeline provides the stage graph that orders a deployment run and
// the state machine that tracks a run's lifecycle.
package pipeline

import (
	"strings"

	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
)

// StageID identifies a pipeline stage.
type StageID string

// Fixed stages. Scan stages are created per scanner with ScanStage.
const (
	StageValidateEnvironment StageID = "validate_environment"
	StageSetup               StageID = "setup"
	StageBuild               StageID = "build"
	StageImageBuild          StageID = "image_build"
	StageDeploy              StageID = "deploy"
	StageReleaseCreate       StageID = "release_create"
	StageHealthCheck         StageID = "health_check"
)

const scanStagePrefix = "scan:"

// ScanStage returns the stage ID of a scanner.
func ScanStage(scanner string) StageID {
	return StageID(scanStagePrefix + scanner)
}

// Scanner returns the scanner name of a scan stage.
func (id StageID) Scanner() (string, bool) {
	return strings.CutPrefix(string(id), scanStagePrefix)
}

// Outcome is the terminal or pending state of a stage.
type Outcome string

// Stage outcomes. Pending is the only non-terminal one.
const (
	OutcomePending     Outcome = "pending"
	OutcomeSuccess     Outcome = "success"
	OutcomePassed      Outcome = "passed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeNotDeployed Outcome = "not_deployed"
)

// NonBlocking returns true for outcomes that let successors start.
func (o Outcome) NonBlocking() bool {
	return o == OutcomeSuccess || o == OutcomePassed || o == OutcomeSkipped
}

// Terminated returns true once the stage has finished, whatever the result.
func (o Outcome) Terminated() bool {
	return o != OutcomePending && o != ""
}

// Stage is a node in the graph.
type Stage struct {
	ID             StageID   `json:"id" yaml:"id" toml:"id"`
	Needs          []StageID `json:"needs,omitempty" yaml:"needs,omitempty" toml:"needs,omitempty"`
	ProductionOnly bool      `json:"production_only,omitempty" yaml:"production_only,omitempty" toml:"production_only,omitempty"`
}

// Graph is the dependency graph of a run. Stages are kept in topological order.
type Graph struct {
	stages []Stage
	index  map[StageID]int
}

// NewGraph builds the graph for the given scanners. Scans run in parallel
// between build and image_build; with no scanners image_build follows build.
func NewGraph(scanners []string) *Graph {
	g := &Graph{index: make(map[StageID]int)}

	g.add(Stage{ID: StageValidateEnvironment})
	g.add(Stage{ID: StageSetup, Needs: []StageID{StageValidateEnvironment}})
	g.add(Stage{ID: StageBuild, Needs: []StageID{StageSetup}})

	imageNeeds := []StageID{StageBuild}
	if len(scanners) > 0 {
		imageNeeds = nil
		for _, name := range scanners {
			id := ScanStage(name)
			if _, dup := g.index[id]; dup {
				continue
			}
			g.add(Stage{ID: id, Needs: []StageID{StageBuild}})
			imageNeeds = append(imageNeeds, id)
		}
	}

	g.add(Stage{ID: StageImageBuild, Needs: imageNeeds})
	g.add(Stage{ID: StageDeploy, Needs: []StageID{StageImageBuild}})
	g.add(Stage{ID: StageReleaseCreate, Needs: []StageID{StageDeploy}, ProductionOnly: true})
	g.add(Stage{ID: StageHealthCheck, Needs: []StageID{StageDeploy}})

	return g
}

func (g *Graph) add(s Stage) {
	g.index[s.ID] = len(g.stages)
	g.stages = append(g.stages, s)
}

// Stages returns the stages in topological order.
func (g *Graph) Stages() []Stage {
	out := make([]Stage, len(g.stages))
	copy(out, g.stages)
	return out
}

// Stage returns a stage by ID.
func (g *Graph) Stage(id StageID) (Stage, bool) {
	i, ok := g.index[id]
	if !ok {
		return Stage{}, false
	}
	return g.stages[i], true
}

// CanStart reports whether every predecessor of id terminated non-blocking.
func (g *Graph) CanStart(id StageID, outcomes map[StageID]Outcome) bool {
	s, ok := g.Stage(id)
	if !ok {
		return false
	}
	for _, need := range s.Needs {
		if !outcomes[need].NonBlocking() {
			return false
		}
	}
	return true
}

// Ready returns the stages that have not run yet and can start now.
func (g *Graph) Ready(outcomes map[StageID]Outcome) []StageID {
	var ready []StageID
	for _, s := range g.stages {
		if outcomes[s.ID].Terminated() {
			continue
		}
		if g.CanStart(s.ID, outcomes) {
			ready = append(ready, s.ID)
		}
	}
	return ready
}

// StageRecord is the projected outcome of one stage.
type StageRecord struct {
	Stage   StageID `json:"stage" yaml:"stage" toml:"stage"`
	Outcome Outcome `json:"outcome" yaml:"outcome" toml:"outcome"`
}

// Outcomes indexes scheduled records by stage.
func Outcomes(records []StageRecord) map[StageID]Outcome {
	out := make(map[StageID]Outcome, len(records))
	for _, r := range records {
		out[r.Stage] = r.Outcome
	}
	return out
}

// Schedule projects the outcome of every stage from the deployment decision
// and the scan gate. Stages the engine cannot decide stay pending. A decision
// not to deploy marks every stage not_deployed; a failed predecessor blocks
// everything downstream.
func (g *Graph) Schedule(d environment.Decision, gate scan.Decision) []StageRecord {
	outcomes := make(map[StageID]Outcome, len(g.stages))
	records := make([]StageRecord, 0, len(g.stages))

	for _, s := range g.stages {
		var o Outcome
		switch {
		case !d.ShouldDeploy:
			o = OutcomeNotDeployed
		case s.ID == StageValidateEnvironment:
			o = OutcomeSuccess
		case g.blockedBy(s, outcomes):
			o = OutcomeBlocked
		case s.ProductionOnly && d.Environment != environment.Production:
			o = OutcomeSkipped
		default:
			o = scanOutcome(s.ID, gate)
		}
		outcomes[s.ID] = o
		records = append(records, StageRecord{Stage: s.ID, Outcome: o})
	}

	return records
}

func (g *Graph) blockedBy(s Stage, outcomes map[StageID]Outcome) bool {
	for _, need := range s.Needs {
		o := outcomes[need]
		if o.Terminated() && !o.NonBlocking() {
			return true
		}
	}
	return false
}

func scanOutcome(id StageID, gate scan.Decision) Outcome {
	name, ok := id.Scanner()
	if !ok {
		return OutcomePending
	}
	status, ok := gate.PerScan[name]
	if !ok {
		return OutcomePending
	}
	switch status {
	case scan.StatusPassed:
		return OutcomePassed
	case scan.StatusSkipped:
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}
