package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/relicta-tech/shipgate/internal/domain/environment"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
)

// RunContext is the context passed to the state machine.
type RunContext struct {
	Environment environment.Environment
}

// Event names for the state machine.
const (
	EventProceed    statekit.EventType = "PROCEED"
	EventSkipDeploy statekit.EventType = "SKIP_DEPLOY"
	EventBlock      statekit.EventType = "BLOCK"
	EventRelease    statekit.EventType = "RELEASE"
	EventFail       statekit.EventType = "FAIL"
)

// State IDs for the state machine.
const (
	StateValidating  statekit.StateID = "validating"
	StatePreparing   statekit.StateID = "preparing"
	StateScanning    statekit.StateID = "scanning"
	StatePackaging   statekit.StateID = "packaging"
	StateDeploying   statekit.StateID = "deploying"
	StateVerifying   statekit.StateID = "verifying"
	StateReleasing   statekit.StateID = "releasing"
	StateCompleted   statekit.StateID = "completed"
	StateNotDeployed statekit.StateID = "not_deployed"
	StateBlocked     statekit.StateID = "blocked"
	StateFailed      statekit.StateID = "failed"
)

const machineID = "deployment-run"

// transition is one edge of the run lifecycle.
type transition struct {
	from  statekit.StateID
	event statekit.EventType
	to    statekit.StateID
}

// transitions mirrors the machine built in NewRunMachine. Send validates
// against it and ExportXStateJSON renders it.
var transitions = []transition{
	{StateValidating, EventProceed, StatePreparing},
	{StateValidating, EventSkipDeploy, StateNotDeployed},
	{StateValidating, EventFail, StateFailed},
	{StatePreparing, EventProceed, StateScanning},
	{StatePreparing, EventFail, StateFailed},
	{StateScanning, EventProceed, StatePackaging},
	{StateScanning, EventBlock, StateBlocked},
	{StateScanning, EventFail, StateFailed},
	{StatePackaging, EventProceed, StateDeploying},
	{StatePackaging, EventFail, StateFailed},
	{StateDeploying, EventProceed, StateVerifying},
	{StateDeploying, EventFail, StateFailed},
	{StateVerifying, EventProceed, StateCompleted},
	{StateVerifying, EventRelease, StateReleasing},
	{StateVerifying, EventFail, StateFailed},
	{StateReleasing, EventProceed, StateCompleted},
	{StateReleasing, EventFail, StateFailed},
}

// orderedStates lists every state; finals are the last four.
var orderedStates = []statekit.StateID{
	StateValidating, StatePreparing, StateScanning, StatePackaging,
	StateDeploying, StateVerifying, StateReleasing,
	StateCompleted, StateNotDeployed, StateBlocked, StateFailed,
}

func isFinal(id statekit.StateID) bool {
	switch id {
	case StateCompleted, StateNotDeployed, StateBlocked, StateFailed:
		return true
	default:
		return false
	}
}

// RunMachine wraps the Statekit state machine for a deployment run.
type RunMachine struct {
	interpreter *statekit.Interpreter[RunContext]
	trail       []statekit.StateID
}

// NewRunMachine creates a new state machine for a deployment run.
func NewRunMachine() (*RunMachine, error) {
	machine, err := statekit.NewMachine[RunContext](machineID).
		WithInitial(StateValidating).
		State(StateValidating).
		On(EventProceed).Target(StatePreparing).
		On(EventSkipDeploy).Target(StateNotDeployed).
		On(EventFail).Target(StateFailed).
		Done().
		// setup and build
		State(StatePreparing).
		On(EventProceed).Target(StateScanning).
		On(EventFail).Target(StateFailed).
		Done().
		State(StateScanning).
		On(EventProceed).Target(StatePackaging).
		On(EventBlock).Target(StateBlocked).
		On(EventFail).Target(StateFailed).
		Done().
		// image build
		State(StatePackaging).
		On(EventProceed).Target(StateDeploying).
		On(EventFail).Target(StateFailed).
		Done().
		State(StateDeploying).
		On(EventProceed).Target(StateVerifying).
		On(EventFail).Target(StateFailed).
		Done().
		// health check; production continues to release creation
		State(StateVerifying).
		On(EventProceed).Target(StateCompleted).
		On(EventRelease).Target(StateReleasing).
		On(EventFail).Target(StateFailed).
		Done().
		State(StateReleasing).
		On(EventProceed).Target(StateCompleted).
		On(EventFail).Target(StateFailed).
		Done().
		State(StateCompleted).
		Final().
		Done().
		State(StateNotDeployed).
		Final().
		Done().
		State(StateBlocked).
		Final().
		Done().
		State(StateFailed).
		Final().
		Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}

	return &RunMachine{
		interpreter: statekit.NewInterpreter(machine),
	}, nil
}

// Start starts the state machine interpreter.
func (m *RunMachine) Start() {
	m.interpreter.Start()
	m.trail = append(m.trail[:0], m.CurrentState())
}

// Send sends an event and fails if the event is not valid in the current state.
func (m *RunMachine) Send(event statekit.EventType) error {
	current := m.CurrentState()
	if !canTransition(current, event) {
		return fmt.Errorf("event %s not allowed in state %s", event, current)
	}
	m.interpreter.Send(statekit.Event{Type: event})
	m.trail = append(m.trail, m.CurrentState())
	return nil
}

func canTransition(from statekit.StateID, event statekit.EventType) bool {
	for _, t := range transitions {
		if t.from == from && t.event == event {
			return true
		}
	}
	return false
}

// CurrentState returns the current state.
func (m *RunMachine) CurrentState() statekit.StateID {
	return m.interpreter.State().Value
}

// IsDone returns true if the machine is in a final state.
func (m *RunMachine) IsDone() bool {
	return m.interpreter.Done()
}

// Trail returns the states visited since Start.
func (m *RunMachine) Trail() []statekit.StateID {
	out := make([]statekit.StateID, len(m.trail))
	copy(out, m.trail)
	return out
}

// Project drives a fresh machine with the events implied by the deployment
// decision and the scan gate, assuming every external stage succeeds, and
// returns the visited states.
func Project(d environment.Decision, gate scan.Decision) ([]statekit.StateID, error) {
	m, err := NewRunMachine()
	if err != nil {
		return nil, err
	}
	m.Start()

	for _, event := range projectedEvents(d, gate) {
		if err := m.Send(event); err != nil {
			return nil, err
		}
	}
	if !m.IsDone() {
		return nil, fmt.Errorf("run stopped in non-final state %s", m.CurrentState())
	}
	return m.Trail(), nil
}

func projectedEvents(d environment.Decision, gate scan.Decision) []statekit.EventType {
	if !d.ShouldDeploy {
		return []statekit.EventType{EventSkipDeploy}
	}
	if !gate.OverallProceed {
		return []statekit.EventType{EventProceed, EventProceed, EventBlock}
	}
	events := []statekit.EventType{EventProceed, EventProceed, EventProceed, EventProceed, EventProceed}
	if d.Environment == environment.Production {
		events = append(events, EventRelease)
	}
	return append(events, EventProceed)
}

// XStateJSON represents the XState JSON format for visualization.
type XStateJSON struct {
	ID      string                     `json:"id"`
	Initial string                     `json:"initial"`
	States  map[string]XStateStateJSON `json:"states"`
}

// XStateStateJSON represents a state in XState JSON format.
type XStateStateJSON struct {
	Type string                      `json:"type,omitempty"`
	On   map[string]XStateTransition `json:"on,omitempty"`
}

// XStateTransition represents a transition in XState JSON format.
type XStateTransition struct {
	Target string `json:"target"`
}

// ExportXStateJSON exports the run lifecycle as XState-compatible JSON.
func ExportXStateJSON() ([]byte, error) {
	xstate := XStateJSON{
		ID:      machineID,
		Initial: string(StateValidating),
		States:  make(map[string]XStateStateJSON, len(orderedStates)),
	}

	for _, id := range orderedStates {
		st := XStateStateJSON{}
		if isFinal(id) {
			st.Type = "final"
		}
		for _, t := range transitions {
			if t.from != id {
				continue
			}
			if st.On == nil {
				st.On = make(map[string]XStateTransition)
			}
			st.On[string(t.event)] = XStateTransition{Target: string(t.to)}
		}
		xstate.States[string(id)] = st
	}

	return json.MarshalIndent(xstate, "", "  ")
}
