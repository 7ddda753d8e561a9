package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/domain/pipeline"
)

var graphOpts GraphOptions

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the pipeline stage graph",
	Long: `Print the stages of a run with their dependencies, one scan stage per
configured scanner. With --xstate, print the run lifecycle as XState JSON
for visualisation instead.`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&graphOpts.XState, "xstate", false, "print the run lifecycle as XState JSON")
}

type graphResult struct {
	Stages []pipeline.Stage `json:"stages" yaml:"stages" toml:"stages"`
}

// runGraph implements the graph command.
func runGraph(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if graphOpts.XState {
		data, err := pipeline.ExportXStateJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	res := graphResult{Stages: pipeline.NewGraph(cfg.ScannerNames()).Stages()}

	return render(out, cfg.Output.Format, ciEnv, view{
		data: res,
		text: func(p *printer) {
			p.Title("Stages")
			for _, s := range res.Stages {
				needs := make([]string, len(s.Needs))
				for i, n := range s.Needs {
					needs[i] = string(n)
				}
				line := string(s.ID)
				if len(needs) > 0 {
					line += " ← " + strings.Join(needs, ", ")
				}
				if s.ProductionOnly {
					line += p.styles.Subtle.Render(" (production only)")
				}
				p.println("  " + line)
			}
		},
		outputs: []output{{Key: "stages", Value: stageList(res.Stages)}},
	})
}

func stageList(stages []pipeline.Stage) string {
	ids := make([]string, len(stages))
	for i, s := range stages {
		ids[i] = string(s.ID)
	}
	return strings.Join(ids, ",")
}
