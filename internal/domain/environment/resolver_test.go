package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relicta-tech/shipgate/internal/domain/ref"
)

func testClusters() ClusterTable {
	return ClusterTable{
		Dev:        {Name: "aks-dev", ResourceGroup: "rg-dev"},
		Staging:    {Name: "aks-stg", ResourceGroup: "rg-stg"},
		Production: {Name: "aks-prod", ResourceGroup: "rg-prod"},
	}
}

func newTestResolver() *Resolver {
	return NewResolver(ref.NewClassifier(ref.DefaultRules()), testClusters())
}

func TestResolver_BranchPolicy(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name    string
		ref     string
		refType ref.RefType
		event   ref.EventKind
		env     Environment
		deploy  bool
		cluster string
	}{
		{"main pushes to staging", "main", ref.TypeBranch, ref.EventPush, Staging, true, "aks-stg"},
		{"develop pushes to dev", "develop", ref.TypeBranch, ref.EventPush, Dev, true, "aks-dev"},
		{"release branch pushes to production", "release/1.2.0", ref.TypeBranch, ref.EventPush, Production, true, "aks-prod"},
		{"tag pushes to production", "v1.2.0", ref.TypeTag, ref.EventPush, Production, true, "aks-prod"},
		{"feature branch is unknown", "feature/x", ref.TypeBranch, ref.EventPush, Unknown, false, ""},
		{"pull request to main branch", "main", ref.TypeBranch, ref.EventPullRequest, Staging, true, "aks-stg"},
		{"pull request merge ref", "refs/pull/7/merge", ref.TypeBranch, ref.EventPullRequest, Unknown, false, ""},
		{"manual without override uses mapping", "develop", ref.TypeBranch, ref.EventManual, Dev, true, "aks-dev"},
		{"manual without override on feature branch", "feature/x", ref.TypeBranch, ref.EventManual, Unknown, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Resolve(ref.NewEvent(tt.ref, tt.refType, tt.event, ""))
			assert.Equal(t, tt.env, d.Environment)
			assert.Equal(t, tt.deploy, d.ShouldDeploy)
			assert.Equal(t, tt.cluster, d.Cluster.Name)
		})
	}
}

func TestResolver_ManualOverrideBypassesPolicy(t *testing.T) {
	r := newTestResolver()

	d := r.Resolve(ref.NewEvent("feature/hotfix-login", ref.TypeBranch, ref.EventManual, "production"))

	assert.Equal(t, Production, d.Environment)
	assert.True(t, d.ShouldDeploy)
	assert.Equal(t, ClusterRef{Name: "aks-prod", ResourceGroup: "rg-prod"}, d.Cluster)
	assert.Equal(t, ref.KindOther, d.Kind)
	assert.Equal(t, ReasonManualOverride, d.Reason)
}

func TestResolver_InvalidOverrideIsRejected(t *testing.T) {
	r := newTestResolver()

	for _, override := range []string{"qa", "Production", "prod", "unknown"} {
		d := r.Resolve(ref.NewEvent("main", ref.TypeBranch, ref.EventManual, override))
		assert.Equal(t, Unknown, d.Environment, "override %q", override)
		assert.False(t, d.ShouldDeploy, "override %q", override)
		assert.True(t, d.Cluster.IsZero(), "override %q", override)
	}
}

func TestResolver_OverrideIgnoredOnPush(t *testing.T) {
	r := newTestResolver()

	d := r.Resolve(ref.NewEvent("develop", ref.TypeBranch, ref.EventPush, "production"))

	assert.Equal(t, Dev, d.Environment)
	assert.True(t, d.ShouldDeploy)
	assert.Equal(t, ReasonBranchPolicy, d.Reason)
}

func TestResolver_UnknownNeverDeploys(t *testing.T) {
	r := newTestResolver()

	refs := []string{"main", "develop", "release/1.0.0", "feature/a", "", "v1.0.0"}
	types := []ref.RefType{ref.TypeBranch, ref.TypeTag}
	events := []ref.EventKind{ref.EventPush, ref.EventPullRequest, ref.EventManual}
	overrides := []string{"", "dev", "staging", "production", "qa", "PRODUCTION"}

	for _, rf := range refs {
		for _, rt := range types {
			for _, ev := range events {
				for _, ov := range overrides {
					d := r.Resolve(ref.NewEvent(rf, rt, ev, ov))
					if d.Environment == Unknown {
						assert.False(t, d.ShouldDeploy, "ref=%q type=%s event=%s override=%q", rf, rt, ev, ov)
						assert.True(t, d.Cluster.IsZero())
					}
				}
			}
		}
	}
}

func TestResolver_Deterministic(t *testing.T) {
	r := newTestResolver()
	e := ref.NewEvent("release/3.0.0", ref.TypeBranch, ref.EventPush, "")

	assert.Equal(t, r.Resolve(e), r.Resolve(e))
}

func TestResolver_ClusterTableIsCopied(t *testing.T) {
	clusters := testClusters()
	r := NewResolver(ref.NewClassifier(ref.DefaultRules()), clusters)
	clusters[Staging] = ClusterRef{Name: "mutated"}

	d := r.Resolve(ref.NewEvent("main", ref.TypeBranch, ref.EventPush, ""))
	assert.Equal(t, "aks-stg", d.Cluster.Name)
}

func TestResolver_MissingClusterStillDeploys(t *testing.T) {
	r := NewResolver(ref.NewClassifier(ref.DefaultRules()), ClusterTable{})

	d := r.Resolve(ref.NewEvent("main", ref.TypeBranch, ref.EventPush, ""))
	assert.Equal(t, Staging, d.Environment)
	assert.True(t, d.ShouldDeploy)
	assert.True(t, d.Cluster.IsZero())
}
