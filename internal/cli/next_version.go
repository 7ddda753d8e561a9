package cli

import (
	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/application/deploy"
)

var nextVersionOpts VersionOptions

var nextVersionCmd = &cobra.Command{
	Use:   "next-version",
	Short: "Compute the version, image tag and chart version",
	Long: `Compute the version identifiers of the artifact built by this run.

  tag             the tag itself
  release branch  the version in the branch name, or the next patch after
                  the latest version tag
  production      <production_base>-<date>-<commit>
  otherwise       <environment>-<commit>, chart <chart_base>-<environment>-<commit>`,
	RunE: runNextVersion,
}

func init() {
	addVersionFlags(nextVersionCmd, &nextVersionOpts)
}

// runNextVersion implements the next-version command.
func runNextVersion(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo := openRepository(nextVersionOpts.Repo)
	in, err := buildVersionInput(ctx, nextVersionOpts, ciEnv, repoSource(repo))
	if err != nil {
		return err
	}

	out, err := newPlanner("next_version", repo).NextVersion(ctx, in)
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), cfg.Output.Format, ciEnv, view{
		data:    out,
		text:    func(p *printer) { printVersion(p, out) },
		outputs: versionOutputs(out),
	})
}

func printVersion(p *printer, v *deploy.VersionOutput) {
	p.Title("Version")
	p.Field("version", v.Version)
	p.Field("image tag", v.ImageTag)
	p.Field("chart version", v.ChartVersion)
	p.Field("latest tag", orNone(v.LatestTag))
	p.Field("commit", orNone(v.ShortCommit))
	for _, a := range v.Anomalies {
		p.Warning(a)
	}
}

func versionOutputs(v *deploy.VersionOutput) []output {
	return []output{
		{Key: "version", Value: v.Version},
		{Key: "image_tag", Value: v.ImageTag},
		{Key: "chart_version", Value: v.ChartVersion},
	}
}
