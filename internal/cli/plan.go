package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/application/deploy"
	"github.com/relicta-tech/shipgate/internal/domain/pipeline"
	"github.com/relicta-tech/shipgate/internal/infrastructure/report"
)

var planOpts PlanOptions

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the complete outcome of the run",
	Long: `Resolve the environment, compute the version, evaluate the scan gate
and project the outcome of every pipeline stage.

The fingerprint identifies the plan: identical inputs always produce the
same fingerprint. Exits with code 2 when a deploying run is blocked by the
gate, unless --no-fail is set.`,
	Example: `  shipgate plan --ref main --commit "$GITHUB_SHA" --report sonar=sonar.json
  shipgate plan --event manual --environment production -o github`,
	RunE: runPlan,
}

func init() {
	addVersionFlags(planCmd, &planOpts.VersionOptions)
	addGateFlags(planCmd, &planOpts.GateOptions)
}

// runPlan implements the plan command.
func runPlan(cmd *cobra.Command, args []string) error {
	const op = "cli.plan"
	ctx := cmd.Context()

	sources, err := report.ParseSources(planOpts.Reports)
	if err != nil {
		return err
	}

	repo := openRepository(planOpts.Repo)
	in, err := buildVersionInput(ctx, planOpts.VersionOptions, ciEnv, repoSource(repo))
	if err != nil {
		return err
	}

	plan, err := newPlanner("plan", repo).Plan(ctx, deploy.PlanInput{
		VersionInput: in,
		Reports:      sources,
	})
	if err != nil {
		return err
	}

	if err := render(cmd.OutOrStdout(), cfg.Output.Format, ciEnv, view{
		data:    plan,
		text:    func(p *printer) { printPlan(p, plan) },
		outputs: planOutputs(plan),
		summary: func(w io.Writer) { writePlanSummary(w, plan) },
	}); err != nil {
		return err
	}

	if !plan.Decision.ShouldDeploy {
		return nil
	}
	return gateError(op, &plan.Gate, planOpts.NoFail)
}

func printPlan(p *printer, plan *deploy.Plan) {
	printDecision(p, plan.Event, plan.Decision)
	p.Blank()
	printVersion(p, &plan.Version)
	p.Blank()
	printGate(p, &plan.Gate)
	p.Blank()
	printStages(p, plan.Stages)
	if len(plan.Ready) > 0 {
		p.Field("ready", joinStages(plan.Ready))
	}
	p.Blank()
	p.Field("lifecycle", strings.Join(plan.Lifecycle, " → "))
	p.Subtle("fingerprint " + plan.Fingerprint)
}

func printStages(p *printer, stages []pipeline.StageRecord) {
	p.Title("Stages")
	for _, s := range stages {
		line := fmt.Sprintf("%-24s %s", s.Stage, s.Outcome)
		switch s.Outcome {
		case pipeline.OutcomeSuccess, pipeline.OutcomePassed:
			p.Success(line)
		case pipeline.OutcomeFailed, pipeline.OutcomeBlocked:
			p.Error(line)
		case pipeline.OutcomePending:
			p.Info(line)
		default:
			p.Subtle("- " + line)
		}
	}
}

func planOutputs(plan *deploy.Plan) []output {
	outputs := []output{{Key: "fingerprint", Value: plan.Fingerprint}}
	outputs = append(outputs, decisionOutputs(plan.Decision)...)
	outputs = append(outputs, versionOutputs(&plan.Version)...)
	outputs = append(outputs, gateOutputs(&plan.Gate)...)
	outputs = append(outputs, output{Key: "ready_stages", Value: joinStages(plan.Ready)})
	for _, s := range plan.Stages {
		if s.Stage == pipeline.StageReleaseCreate {
			outputs = append(outputs, output{Key: "create_release", Value: strconv.FormatBool(s.Outcome == pipeline.OutcomePending)})
		}
	}
	return outputs
}

func joinStages(ids []pipeline.StageID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ",")
}

// writePlanSummary writes the markdown job summary of a plan.
func writePlanSummary(w io.Writer, plan *deploy.Plan) {
	d := plan.Decision
	fmt.Fprintf(w, "## Deployment plan for `%s`\n\n", plan.Event.Ref)
	fmt.Fprintln(w, "| | |")
	fmt.Fprintln(w, "|---|---|")
	fmt.Fprintf(w, "| Environment | %s |\n", title(d.Environment.String()))
	fmt.Fprintf(w, "| Deploy | %t |\n", d.ShouldDeploy)
	fmt.Fprintf(w, "| Cluster | %s |\n", orNone(d.Cluster.Name))
	fmt.Fprintf(w, "| Version | `%s` |\n", plan.Version.Version)
	fmt.Fprintf(w, "| Image tag | `%s` |\n", plan.Version.ImageTag)
	fmt.Fprintf(w, "| Chart version | `%s` |\n", plan.Version.ChartVersion)
	fmt.Fprintf(w, "| Gate | %s |\n", gateWord(plan.Gate.Decision.OverallProceed))
	fmt.Fprintln(w)

	if len(plan.Gate.Decision.Evaluations) > 0 {
		fmt.Fprintln(w, "| Scanner | Status | Violations |")
		fmt.Fprintln(w, "|---|---|---|")
		for _, e := range plan.Gate.Decision.Evaluations {
			fmt.Fprintf(w, "| %s | %s | %s |\n", e.Name, e.Status, violations(e))
		}
		fmt.Fprintln(w)
	}
}

func gateWord(proceed bool) string {
	if proceed {
		return "open"
	}
	return "blocked"
}
