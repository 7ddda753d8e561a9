// Package ref provides domain types for version-control references and the
// events that carry them into a pipeline run.
package ref

import (
	"fmt"
	"strings"
)

// RefType identifies whether a reference names a branch or a tag.
type RefType string

const (
	// TypeBranch is a branch reference.
	TypeBranch RefType = "branch"
	// TypeTag is a tag reference.
	TypeTag RefType = "tag"
)

// IsValid returns true if the ref type is known.
func (t RefType) IsValid() bool {
	return t == TypeBranch || t == TypeTag
}

// String returns the string representation of the ref type.
func (t RefType) String() string {
	return string(t)
}

// ParseRefType parses a ref type. Matching is exact.
func ParseRefType(s string) (RefType, error) {
	t := RefType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid ref type: %q (must be branch or tag)", s)
	}
	return t, nil
}

// EventKind identifies what triggered a pipeline run.
type EventKind string

const (
	// EventPush is a push to a branch or tag.
	EventPush EventKind = "push"
	// EventPullRequest is a pull or merge request build.
	EventPullRequest EventKind = "pull_request"
	// EventManual is an operator-triggered run.
	EventManual EventKind = "manual"
)

// IsValid returns true if the event kind is known.
func (k EventKind) IsValid() bool {
	switch k {
	case EventPush, EventPullRequest, EventManual:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	return string(k)
}

// ParseEventKind parses an event kind. Matching is exact.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid event kind: %q (must be push, pull_request, or manual)", s)
	}
	return k, nil
}

// Kind is the semantic classification of a reference.
type Kind string

const (
	// KindMainLine is the main-line branch.
	KindMainLine Kind = "main_line"
	// KindIntegrationLine is the long-lived integration branch.
	KindIntegrationLine Kind = "integration_line"
	// KindReleaseLine is a release branch.
	KindReleaseLine Kind = "release_line"
	// KindTag is any tag.
	KindTag Kind = "tag"
	// KindOther is everything else.
	KindOther Kind = "other"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

const (
	headsPrefix = "refs/heads/"
	tagsPrefix  = "refs/tags/"
)

// Normalize strips the fully-qualified refs/heads/ or refs/tags/ prefix.
func Normalize(ref string) string {
	ref = strings.TrimSpace(ref)
	if s, ok := strings.CutPrefix(ref, headsPrefix); ok {
		return s
	}
	if s, ok := strings.CutPrefix(ref, tagsPrefix); ok {
		return s
	}
	return ref
}

// Event is the immutable input of a pipeline run.
type Event struct {
	ref               string
	refType           RefType
	eventKind         EventKind
	manualEnvironment string
}

// NewEvent creates an Event. The ref is normalized; manualEnvironment may be
// empty to mean no override was requested.
func NewEvent(ref string, refType RefType, eventKind EventKind, manualEnvironment string) Event {
	return Event{
		ref:               Normalize(ref),
		refType:           refType,
		eventKind:         eventKind,
		manualEnvironment: strings.TrimSpace(manualEnvironment),
	}
}

// Ref returns the normalized reference name.
func (e Event) Ref() string {
	return e.ref
}

// RefType returns the reference type.
func (e Event) RefType() RefType {
	return e.refType
}

// EventKind returns what triggered the run.
func (e Event) EventKind() EventKind {
	return e.eventKind
}

// ManualEnvironment returns the requested environment override, if any.
func (e Event) ManualEnvironment() string {
	return e.manualEnvironment
}

// HasOverride returns true if an environment override was supplied.
func (e Event) HasOverride() bool {
	return e.manualEnvironment != ""
}

// IsManual returns true for operator-triggered runs.
func (e Event) IsManual() bool {
	return e.eventKind == EventManual
}
