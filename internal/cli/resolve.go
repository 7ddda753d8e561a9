package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/application/deploy"
	"github.com/relicta-tech/shipgate/internal/domain/environment"
)

var resolveOpts EventOptions

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Decide the target environment and whether to deploy",
	Long: `Resolve the target environment of the run and apply the deployment policy.

main deploys to staging, develop to dev, release branches and tags to
production. A manual run deploys to the environment given with
--environment (or $INPUT_ENVIRONMENT), which must be dev, staging or
production. A run that may not deploy is not an error.`,
	RunE: runResolve,
}

func init() {
	addEventFlags(resolveCmd, &resolveOpts)
}

type resolveResult struct {
	Event    deploy.EventSummary  `json:"event" yaml:"event" toml:"event"`
	Decision environment.Decision `json:"decision" yaml:"decision" toml:"decision"`
}

// runResolve implements the resolve command.
func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo := openRepository(resolveOpts.Repo)
	event, err := buildEvent(ctx, resolveOpts, ciEnv, repoSource(repo))
	if err != nil {
		return err
	}

	d := newPlanner("resolve", repo).Resolve(event)
	res := resolveResult{Event: deploy.Summarize(event), Decision: d}

	return render(cmd.OutOrStdout(), cfg.Output.Format, ciEnv, view{
		data:    res,
		text:    func(p *printer) { printDecision(p, res.Event, d) },
		outputs: decisionOutputs(d),
	})
}

func printDecision(p *printer, e deploy.EventSummary, d environment.Decision) {
	p.Title("Deployment decision")
	if d.ShouldDeploy {
		p.Success(fmt.Sprintf("Deploy to %s", title(d.Environment.String())))
	} else {
		p.Warning("No deployment")
	}
	p.Field("ref", fmt.Sprintf("%s (%s, %s)", e.Ref, e.RefType, e.EventKind))
	p.Field("ref kind", d.Kind)
	p.Field("environment", d.Environment)
	p.Field("cluster", orNone(d.Cluster.Name))
	p.Field("resource group", orNone(d.Cluster.ResourceGroup))
	p.Field("reason", d.Reason)
}

func decisionOutputs(d environment.Decision) []output {
	return []output{
		{Key: "environment", Value: d.Environment.String()},
		{Key: "should_deploy", Value: strconv.FormatBool(d.ShouldDeploy)},
		{Key: "cluster_name", Value: d.Cluster.Name},
		{Key: "resource_group", Value: d.Cluster.ResourceGroup},
		{Key: "ref_kind", Value: d.Kind.String()},
	}
}
