// Package ci reads run inputs from the CI runner environment.
package ci

import (
	"os"
	"strings"

	"github.com/relicta-tech/shipgate/internal/domain/ref"
)

// GitHub Actions variables read by shipgate.
const (
	VarCI               = "CI"
	VarGitHubActions    = "GITHUB_ACTIONS"
	VarRef              = "GITHUB_REF"
	VarRefType          = "GITHUB_REF_TYPE"
	VarEventName        = "GITHUB_EVENT_NAME"
	VarSHA              = "GITHUB_SHA"
	VarOutput           = "GITHUB_OUTPUT"
	VarStepSummary      = "GITHUB_STEP_SUMMARY"
	VarInputEnvironment = "INPUT_ENVIRONMENT"
)

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Env reads GitHub Actions variables through a lookup function.
type Env struct {
	lookup LookupFunc
}

// NewEnv creates an Env backed by lookup.
func NewEnv(lookup LookupFunc) *Env {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Env{lookup: lookup}
}

// FromOS creates an Env backed by the process environment.
func FromOS() *Env {
	return NewEnv(os.LookupEnv)
}

func (e *Env) get(key string) string {
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

// IsCI reports whether shipgate runs on a CI runner.
func (e *Env) IsCI() bool {
	return e.get(VarCI) == "true" || e.IsGitHubActions()
}

// IsGitHubActions reports whether shipgate runs in GitHub Actions.
func (e *Env) IsGitHubActions() bool {
	return e.get(VarGitHubActions) == "true"
}

// Ref returns the triggering ref, or "" when unset.
func (e *Env) Ref() string {
	return e.get(VarRef)
}

// RefType returns the type of the triggering ref. Without GITHUB_REF_TYPE
// it is derived from the ref namespace, and a ref outside refs/tags/ is a
// branch.
func (e *Env) RefType() ref.RefType {
	if t, err := ref.ParseRefType(e.get(VarRefType)); err == nil {
		return t
	}
	if strings.HasPrefix(e.Ref(), "refs/tags/") {
		return ref.TypeTag
	}
	return ref.TypeBranch
}

// EventName returns the raw triggering event name.
func (e *Env) EventName() string {
	return e.get(VarEventName)
}

// EventKind maps the GitHub event name onto an event kind.
// workflow_dispatch is a manual run, every pull_request flavour is a pull
// request, and everything else counts as a push.
func (e *Env) EventKind() ref.EventKind {
	return MapEventName(e.EventName())
}

// MapEventName maps a GitHub event name onto an event kind.
func MapEventName(name string) ref.EventKind {
	switch {
	case name == "workflow_dispatch":
		return ref.EventManual
	case strings.HasPrefix(name, "pull_request"):
		return ref.EventPullRequest
	default:
		return ref.EventPush
	}
}

// ManualEnvironment returns the workflow_dispatch environment input.
func (e *Env) ManualEnvironment() string {
	return e.get(VarInputEnvironment)
}

// SHA returns the commit that triggered the run.
func (e *Env) SHA() string {
	return e.get(VarSHA)
}

// OutputFile returns the path step outputs are appended to, or "".
func (e *Env) OutputFile() string {
	return e.get(VarOutput)
}

// StepSummaryFile returns the path of the job summary, or "".
func (e *Env) StepSummaryFile() string {
	return e.get(VarStepSummary)
}

// Event builds the run event from the environment. ok is false when no
// ref is available.
func (e *Env) Event() (ev ref.Event, ok bool) {
	r := e.Ref()
	if r == "" {
		return ref.Event{}, false
	}
	return ref.NewEvent(r, e.RefType(), e.EventKind(), e.ManualEnvironment()), true
}
