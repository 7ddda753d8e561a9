package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/application/deploy"
	"github.com/relicta-tech/shipgate/internal/domain/scan"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/infrastructure/report"
)

var gateOpts GateOptions

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Evaluate scanner reports against their thresholds",
	Long: `Load scanner reports and decide whether the run may proceed.

Each report is a YAML or JSON file with top-level high, medium and low
counts. A scan fails when a count exceeds its threshold and the scanner
fails the build on violations. Disabled scanners are skipped. An enabled
scanner without a report keeps the gate closed.

Exits with code 2 when the gate blocks, unless --no-fail is set.`,
	Example: `  shipgate gate --report sonar=sonar.json --report checkmarx=cx.yaml`,
	RunE:    runGate,
}

func init() {
	addGateFlags(gateCmd, &gateOpts)
}

// runGate implements the gate command.
func runGate(cmd *cobra.Command, args []string) error {
	const op = "cli.gate"

	sources, err := report.ParseSources(gateOpts.Reports)
	if err != nil {
		return err
	}

	out, err := newPlanner("gate", nil).Gate(cmd.Context(), sources)
	if err != nil {
		return err
	}

	if err := render(cmd.OutOrStdout(), cfg.Output.Format, ciEnv, view{
		data:    out,
		text:    func(p *printer) { printGate(p, out) },
		outputs: gateOutputs(out),
	}); err != nil {
		return err
	}

	return gateError(op, out, gateOpts.NoFail)
}

// gateError returns a policy error when the gate blocks and blocking is not
// waived.
func gateError(op string, g *deploy.GateOutput, noFail bool) error {
	if g.Decision.OverallProceed || noFail {
		return nil
	}

	var reasons []string
	if failed := g.Decision.Failed(); len(failed) > 0 {
		reasons = append(reasons, "failed: "+strings.Join(failed, ", "))
	}
	if len(g.Pending) > 0 {
		reasons = append(reasons, "no report: "+strings.Join(g.Pending, ", "))
	}
	return sgerrors.Policy(op, "scan gate blocked ("+strings.Join(reasons, "; ")+")")
}

func printGate(p *printer, g *deploy.GateOutput) {
	p.Title("Scan gate")

	for _, e := range g.Decision.Evaluations {
		switch {
		case e.Status == scan.StatusSkipped:
			p.Subtle(fmt.Sprintf("- %s skipped (disabled)", e.Name))
		case e.Status == scan.StatusFailed:
			p.Error(fmt.Sprintf("%s failed: %s", e.Name, violations(e)))
		case e.Advisory():
			p.Warning(fmt.Sprintf("%s passed with violations: %s", e.Name, violations(e)))
		default:
			p.Success(e.Name + " passed")
		}
		for _, a := range e.Anomalies {
			p.Subtle("    " + a)
		}
	}
	for _, name := range g.Pending {
		p.Warning(name + " pending (no report)")
	}

	p.Blank()
	if g.Decision.OverallProceed {
		p.Success("Gate open")
	} else {
		p.Error("Gate blocked")
	}
}

func violations(e scan.Evaluation) string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func gateOutputs(g *deploy.GateOutput) []output {
	outputs := []output{
		{Key: "proceed", Value: strconv.FormatBool(g.Decision.OverallProceed)},
		{Key: "failed_scans", Value: strings.Join(g.Decision.Failed(), ",")},
		{Key: "pending_scans", Value: strings.Join(g.Pending, ",")},
	}
	seen := make(map[string]bool, len(g.Decision.Evaluations))
	for _, e := range g.Decision.Evaluations {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		outputs = append(outputs, output{Key: "scan_" + e.Name, Value: g.Decision.PerScan[e.Name].String()})
	}
	return outputs
}
