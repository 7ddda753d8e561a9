package environment

import (
	"fmt"

	"github.com/relicta-tech/shipgate/internal/domain/ref"
)

// Reasons attached to a decision.
const (
	ReasonManualOverride = "manual override"
	ReasonManualTrigger  = "manual trigger"
	ReasonBranchPolicy   = "branch policy"
	ReasonUnmappedRef    = "ref does not map to an environment"
	ReasonNotAuthorized  = "ref not authorized for environment"
)

// Decision is the outcome of resolving a run's target environment.
type Decision struct {
	Environment  Environment `json:"environment" yaml:"environment" toml:"environment"`
	ShouldDeploy bool        `json:"should_deploy" yaml:"should_deploy" toml:"should_deploy"`
	Cluster      ClusterRef  `json:"cluster" yaml:"cluster" toml:"cluster"`
	Kind         ref.Kind    `json:"ref_kind" yaml:"ref_kind" toml:"ref_kind"`
	Reason       string      `json:"reason" yaml:"reason" toml:"reason"`
}

// Resolver picks the target environment for a run.
type Resolver struct {
	classifier *ref.Classifier
	clusters   ClusterTable
}

// NewResolver creates a resolver. The cluster table is copied.
func NewResolver(classifier *ref.Classifier, clusters ClusterTable) *Resolver {
	table := make(ClusterTable, len(clusters))
	for env, c := range clusters {
		table[env] = c
	}
	return &Resolver{
		classifier: classifier,
		clusters:   table,
	}
}

// Resolve computes the deployment decision for an event. An override is only
// honoured on manual events and must name a known environment exactly;
// anything else resolves to Unknown without deploying.
func (r *Resolver) Resolve(e ref.Event) Decision {
	kind := r.classifier.ClassifyEvent(e)

	if e.IsManual() && e.HasOverride() {
		env := Parse(e.ManualEnvironment())
		if env == Unknown {
			return Decision{
				Environment: Unknown,
				Kind:        kind,
				Reason:      fmt.Sprintf("invalid override %q", e.ManualEnvironment()),
			}
		}
		return r.decide(env, kind, true, ReasonManualOverride)
	}

	env := ForKind(kind)
	if env == Unknown {
		return Decision{Environment: Unknown, Kind: kind, Reason: ReasonUnmappedRef}
	}
	if e.IsManual() {
		return r.decide(env, kind, true, ReasonManualTrigger)
	}
	if !env.Authorizes(kind) {
		return r.decide(env, kind, false, ReasonNotAuthorized)
	}
	return r.decide(env, kind, true, ReasonBranchPolicy)
}

func (r *Resolver) decide(env Environment, kind ref.Kind, deploy bool, reason string) Decision {
	return Decision{
		Environment:  env,
		ShouldDeploy: deploy && env.IsKnown(),
		Cluster:      r.clusters.Lookup(env),
		Kind:         kind,
		Reason:       reason,
	}
}
