package git

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
)

// Ensure ServiceImpl implements Service.
var _ Service = (*ServiceImpl)(nil)

// ServiceImpl is the go-git implementation of the git service.
type ServiceImpl struct {
	cfg  ServiceConfig
	repo *git.Repository
}

// NewService opens the repository at the configured path or any parent of it.
func NewService(opts ...ServiceOption) (*ServiceImpl, error) {
	const op = "git.NewService"

	cfg := DefaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	absPath, err := filepath.Abs(cfg.RepoPath)
	if err != nil {
		return nil, sgerrors.GitWrap(err, op, "failed to get absolute path")
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, sgerrors.GitWrap(err, op, "failed to open repository")
	}

	return &ServiceImpl{cfg: cfg, repo: repo}, nil
}

// NewServiceFromRepository wraps an already opened repository.
func NewServiceFromRepository(repo *git.Repository, opts ...ServiceOption) *ServiceImpl {
	cfg := DefaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ServiceImpl{cfg: cfg, repo: repo}
}

// GetHeadCommit returns the current HEAD commit.
func (s *ServiceImpl) GetHeadCommit(_ context.Context) (*Commit, error) {
	const op = "git.GetHeadCommit"

	head, err := s.repo.Head()
	if err != nil {
		return nil, sgerrors.GitWrap(err, op, "failed to get HEAD")
	}

	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, sgerrors.GitWrap(err, op, "failed to get HEAD commit")
	}

	return s.convertCommit(commit), nil
}

// GetCurrentBranch returns the checked-out branch.
func (s *ServiceImpl) GetCurrentBranch(_ context.Context) (string, error) {
	const op = "git.GetCurrentBranch"

	head, err := s.repo.Head()
	if err != nil {
		return "", sgerrors.GitWrap(err, op, "failed to get HEAD")
	}
	if !head.Name().IsBranch() {
		return "", sgerrors.Git(op, "HEAD is detached")
	}
	return head.Name().Short(), nil
}

// GetHeadTags returns the tags that point at HEAD, sorted by name.
func (s *ServiceImpl) GetHeadTags(ctx context.Context) ([]Tag, error) {
	const op = "git.GetHeadTags"

	head, err := s.repo.Head()
	if err != nil {
		return nil, sgerrors.GitWrap(err, op, "failed to get HEAD")
	}

	tags, err := s.listTags(ctx)
	if err != nil {
		return nil, err
	}

	var atHead []Tag
	for _, t := range tags {
		if t.Hash == head.Hash().String() {
			atHead = append(atHead, t)
		}
	}
	sort.Slice(atHead, func(i, j int) bool {
		return atHead[i].Name < atHead[j].Name
	})
	return atHead, nil
}

// GetLatestVersionTag returns the highest version tag matching the prefix.
func (s *ServiceImpl) GetLatestVersionTag(ctx context.Context, prefix string) (*Tag, error) {
	tags, err := s.ListVersionTags(ctx, prefix)
	if err != nil {
		return nil, err
	}

	if len(tags) == 0 {
		return nil, sgerrors.NotFound("git.GetLatestVersionTag", "no version tags found")
	}

	return &tags[0], nil
}

// versionTagCache holds a tag with its pre-parsed semver version.
type versionTagCache struct {
	tag     Tag
	version *semver.Version
}

// ListVersionTags returns all version tags matching the prefix, highest first.
func (s *ServiceImpl) ListVersionTags(ctx context.Context, prefix string) ([]Tag, error) {
	allTags, err := s.listTags(ctx)
	if err != nil {
		return nil, err
	}

	cache := make([]versionTagCache, 0, len(allTags))
	for _, tag := range allTags {
		name := tag.Name
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}

		if v, err := semver.StrictNewVersion(strings.TrimPrefix(name, prefix)); err == nil {
			cache = append(cache, versionTagCache{tag: tag, version: v})
		}
	}

	sort.SliceStable(cache, func(i, j int) bool {
		return cache[i].version.GreaterThan(cache[j].version)
	})

	versionTags := make([]Tag, len(cache))
	for i, c := range cache {
		versionTags[i] = c.tag
	}

	return versionTags, nil
}

// listTags returns every tag sorted by name.
func (s *ServiceImpl) listTags(ctx context.Context) ([]Tag, error) {
	const op = "git.ListTags"

	iter, err := s.repo.Tags()
	if err != nil {
		return nil, sgerrors.GitWrap(err, op, "failed to get tags iterator")
	}
	defer iter.Close()

	var tags []Tag
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		tags = append(tags, s.convertTag(ref))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, sgerrors.Wrap(ctx.Err(), sgerrors.KindCanceled, op, "operation canceled")
		}
		return nil, sgerrors.GitWrap(err, op, "failed to iterate tags")
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Name < tags[j].Name
	})
	return tags, nil
}

// convertCommit converts a go-git commit to our Commit type.
func (s *ServiceImpl) convertCommit(c *object.Commit) *Commit {
	hash := c.Hash.String()
	n := s.cfg.ShortCommitLength
	if n <= 0 || n > len(hash) {
		n = DefaultShortCommitLength
	}

	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")

	return &Commit{
		Hash:      hash,
		ShortHash: hash[:n],
		Subject:   strings.TrimSpace(subject),
		Author: Author{
			Name:  c.Author.Name,
			Email: c.Author.Email,
		},
		Date: c.Author.When,
	}
}

// convertTag converts a go-git tag reference, peeling annotated tags to their commit.
func (s *ServiceImpl) convertTag(ref *plumbing.Reference) Tag {
	tag := Tag{
		Name: ref.Name().Short(),
		Hash: ref.Hash().String(),
	}

	tagObj, err := s.repo.TagObject(ref.Hash())
	if err == nil {
		tag.Message = tagObj.Message
		tag.IsAnnotated = true
		tag.Date = tagObj.Tagger.When
		if commit, err := tagObj.Commit(); err == nil {
			tag.Hash = commit.Hash.String()
		}
		return tag
	}

	if commit, err := s.repo.CommitObject(ref.Hash()); err == nil {
		tag.Date = commit.Author.When
	}
	return tag
}
