package cli

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/application/deploy"
	"github.com/relicta-tech/shipgate/internal/domain/ref"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/infrastructure/ci"
	"github.com/relicta-tech/shipgate/internal/service/git"
)

// dateLayout is the layout of the --date flag.
const dateLayout = time.DateOnly

func addEventFlags(cmd *cobra.Command, o *EventOptions) {
	cmd.Flags().StringVar(&o.Ref, "ref", "", "triggering ref (default: $GITHUB_REF, then the checked-out branch)")
	cmd.Flags().StringVar(&o.RefType, "ref-type", "", "ref type: branch or tag (default: derived from the ref)")
	cmd.Flags().StringVar(&o.Event, "event", "", "event kind: push, pull_request or manual (default: from $GITHUB_EVENT_NAME)")
	cmd.Flags().StringVarP(&o.Environment, "environment", "e", "", "target environment of a manual run (default: $INPUT_ENVIRONMENT)")
	cmd.Flags().StringVar(&o.Repo, "repo", ".", "path to the git repository")
}

func addVersionFlags(cmd *cobra.Command, o *VersionOptions) {
	addEventFlags(cmd, &o.EventOptions)
	cmd.Flags().StringVar(&o.LatestTag, "latest-tag", "", "latest version tag (default: highest version tag in the repository)")
	cmd.Flags().StringVar(&o.Commit, "commit", "", "commit hash (default: $GITHUB_SHA, then HEAD)")
	cmd.Flags().StringVar(&o.Date, "date", "", "build date as YYYY-MM-DD for production stamps (default: today, UTC)")
}

func addGateFlags(cmd *cobra.Command, o *GateOptions) {
	cmd.Flags().StringArrayVarP(&o.Reports, "report", "r", nil, "scanner report as name=path (repeatable)")
	cmd.Flags().BoolVar(&o.NoFail, "no-fail", false, "exit 0 even when the gate blocks")
}

// refSource provides the checked-out ref when neither flags nor CI name one.
type refSource interface {
	GetCurrentBranch(ctx context.Context) (string, error)
	GetHeadTags(ctx context.Context) ([]git.Tag, error)
}

// openRepository opens the git repository at path. A missing repository is
// not an error: callers fall back to explicit inputs.
func openRepository(path string) *git.ServiceImpl {
	svc, err := git.NewService(
		git.WithRepoPath(path),
		git.WithShortCommitLength(cfg.Versioning.ShortCommitLength),
	)
	if err != nil {
		logger.Debug("no git repository", "path", path, "error", err)
		return nil
	}
	return svc
}

// buildEvent assembles the run event. Flags win over the CI environment,
// which wins over the repository.
func buildEvent(ctx context.Context, o EventOptions, env *ci.Env, repo refSource) (ref.Event, error) {
	const op = "cli.buildEvent"

	name := strings.TrimSpace(o.Ref)
	var refType ref.RefType

	switch {
	case name != "":
	case env.Ref() != "":
		name, refType = env.Ref(), env.RefType()
	case repo != nil:
		name, refType = refFromRepository(ctx, repo)
	}
	if name == "" {
		return ref.Event{}, sgerrors.Validation(op, "no ref: pass --ref, run in GitHub Actions or inside a git repository")
	}

	if o.RefType != "" {
		t, err := ref.ParseRefType(o.RefType)
		if err != nil {
			return ref.Event{}, sgerrors.ValidationWrap(err, op, "invalid --ref-type")
		}
		refType = t
	}
	if refType == "" {
		refType = ref.TypeBranch
		if strings.HasPrefix(name, "refs/tags/") {
			refType = ref.TypeTag
		}
	}

	kind := ref.EventPush
	if env.EventName() != "" {
		kind = env.EventKind()
	}
	if o.Event != "" {
		k, err := ref.ParseEventKind(o.Event)
		if err != nil {
			return ref.Event{}, sgerrors.ValidationWrap(err, op, "invalid --event")
		}
		kind = k
	}

	override := o.Environment
	if override == "" {
		override = env.ManualEnvironment()
	}

	return ref.NewEvent(name, refType, kind, override), nil
}

// refFromRepository returns the checked-out branch, or the first tag at HEAD
// when HEAD is detached.
func refFromRepository(ctx context.Context, repo refSource) (string, ref.RefType) {
	branch, err := repo.GetCurrentBranch(ctx)
	if err == nil {
		return branch, ref.TypeBranch
	}

	tags, tagErr := repo.GetHeadTags(ctx)
	if tagErr != nil || len(tags) == 0 {
		logger.Debug("cannot determine ref from repository", "error", err)
		return "", ""
	}
	return tags[0].Name, ref.TypeTag
}

// buildVersionInput assembles the input of version computation.
func buildVersionInput(ctx context.Context, o VersionOptions, env *ci.Env, repo refSource) (deploy.VersionInput, error) {
	const op = "cli.buildVersionInput"

	event, err := buildEvent(ctx, o.EventOptions, env, repo)
	if err != nil {
		return deploy.VersionInput{}, err
	}

	in := deploy.VersionInput{
		Event:             event,
		LatestTag:         o.LatestTag,
		DiscoverLatestTag: o.LatestTag == "",
		ShortCommit:       o.Commit,
	}
	if in.ShortCommit == "" {
		in.ShortCommit = env.SHA()
	}

	if o.Date != "" {
		date, err := time.Parse(dateLayout, o.Date)
		if err != nil {
			return deploy.VersionInput{}, sgerrors.ValidationWrap(err, op, "invalid --date, want YYYY-MM-DD")
		}
		in.Date = date
	}

	return in, nil
}

// newPlanner creates the planner for a command. repo may be nil.
func newPlanner(usecase string, repo *git.ServiceImpl) *deploy.Planner {
	opts := []deploy.PlannerOption{
		deploy.WithLogger(slog.Default().With("usecase", usecase)),
	}
	if repo != nil {
		opts = append(opts, deploy.WithRepository(repo))
	}
	return deploy.NewPlanner(cfg, opts...)
}

// repoSource converts a possibly nil repository into a refSource.
func repoSource(repo *git.ServiceImpl) refSource {
	if repo == nil {
		return nil
	}
	return repo
}
