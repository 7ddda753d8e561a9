// Package environment provides the deployment environments, the branch
// policy that guards them, and the resolver that picks one for a run.
package environment

import (
	"slices"

	"github.com/relicta-tech/shipgate/internal/domain/ref"
)

// Environment is a deployment target.
type Environment string

const (
	// Dev is the development environment.
	Dev Environment = "dev"
	// Staging is the pre-production environment.
	Staging Environment = "staging"
	// Production is the production environment.
	Production Environment = "production"
	// Unknown means no environment applies. It never deploys.
	Unknown Environment = "unknown"
)

// Known lists the deployable environments in promotion order.
var Known = []Environment{Dev, Staging, Production}

// String returns the string representation of the environment.
func (e Environment) String() string {
	return string(e)
}

// IsKnown returns true for Dev, Staging and Production.
func (e Environment) IsKnown() bool {
	return slices.Contains(Known, e)
}

// Parse returns the environment with exactly the given name, or Unknown.
// Aliases and case folding are not accepted.
func Parse(s string) Environment {
	e := Environment(s)
	if e.IsKnown() {
		return e
	}
	return Unknown
}

// authorized is the static branch policy: the ref kinds allowed to deploy
// to each environment without a manual trigger.
var authorized = map[Environment][]ref.Kind{
	Dev:        {ref.KindIntegrationLine},
	Staging:    {ref.KindMainLine},
	Production: {ref.KindReleaseLine, ref.KindTag},
}

// Authorizes reports whether kind may deploy to e automatically.
func (e Environment) Authorizes(kind ref.Kind) bool {
	return slices.Contains(authorized[e], kind)
}

// ForKind maps a ref kind to the environment it deploys to.
func ForKind(kind ref.Kind) Environment {
	switch kind {
	case ref.KindMainLine:
		return Staging
	case ref.KindIntegrationLine:
		return Dev
	case ref.KindReleaseLine, ref.KindTag:
		return Production
	default:
		return Unknown
	}
}

// ClusterRef locates a cluster for the cloud CLI.
type ClusterRef struct {
	Name          string `json:"name" yaml:"name" toml:"name"`
	ResourceGroup string `json:"resource_group" yaml:"resource_group" toml:"resource_group"`
}

// IsZero returns true if no cluster is referenced.
func (c ClusterRef) IsZero() bool {
	return c.Name == "" && c.ResourceGroup == ""
}

// ClusterTable maps environments to their clusters.
type ClusterTable map[Environment]ClusterRef

// Lookup returns the cluster for e. Unknown always yields the zero ClusterRef.
func (t ClusterTable) Lookup(e Environment) ClusterRef {
	if !e.IsKnown() {
		return ClusterRef{}
	}
	return t[e]
}
