package cli

import (
	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/domain/ref"
)

var classifyOpts EventOptions

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Print the kind of the triggering ref",
	Long: `Classify the triggering ref as main_line, integration_line,
release_line, tag or other, using the branch names configured under refs.`,
	RunE: runClassify,
}

func init() {
	addEventFlags(classifyCmd, &classifyOpts)
}

type classifyResult struct {
	Ref     string      `json:"ref" yaml:"ref" toml:"ref"`
	RefType ref.RefType `json:"ref_type" yaml:"ref_type" toml:"ref_type"`
	Kind    ref.Kind    `json:"ref_kind" yaml:"ref_kind" toml:"ref_kind"`
}

// runClassify implements the classify command.
func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo := openRepository(classifyOpts.Repo)
	event, err := buildEvent(ctx, classifyOpts, ciEnv, repoSource(repo))
	if err != nil {
		return err
	}

	res := classifyResult{
		Ref:     event.Ref(),
		RefType: event.RefType(),
		Kind:    newPlanner("classify", repo).Classify(event),
	}

	return render(cmd.OutOrStdout(), cfg.Output.Format, ciEnv, view{
		data: res,
		text: func(p *printer) {
			p.Title(title(res.Kind.String()))
			p.Field("ref", res.Ref)
			p.Field("type", res.RefType)
		},
		outputs: []output{{Key: "ref_kind", Value: res.Kind.String()}},
	})
}
