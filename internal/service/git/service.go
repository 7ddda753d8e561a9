// Package git provides read-only repository metadata for deployment runs.
package git

import (
	"context"
	"time"
)

// Service defines the repository metadata a run needs.
type Service interface {
	// GetHeadCommit returns the current HEAD commit.
	GetHeadCommit(ctx context.Context) (*Commit, error)

	// GetCurrentBranch returns the checked-out branch, or an error on a detached HEAD.
	GetCurrentBranch(ctx context.Context) (string, error)

	// GetHeadTags returns the tags that point at HEAD.
	GetHeadTags(ctx context.Context) ([]Tag, error)

	// GetLatestVersionTag returns the highest semantic version tag with the prefix.
	GetLatestVersionTag(ctx context.Context, prefix string) (*Tag, error)

	// ListVersionTags returns version tags with the prefix, highest first.
	ListVersionTags(ctx context.Context, prefix string) ([]Tag, error)
}

// Commit is a git commit.
type Commit struct {
	Hash      string
	ShortHash string
	Subject   string
	Author    Author
	Date      time.Time
}

// Author is a commit author or tagger.
type Author struct {
	Name  string
	Email string
}

// Tag is a git tag resolved to the commit it points at.
type Tag struct {
	Name        string
	Hash        string
	Message     string
	IsAnnotated bool
	Date        time.Time
}

// ServiceConfig configures the git service.
type ServiceConfig struct {
	RepoPath          string
	ShortCommitLength int
}

// DefaultShortCommitLength is the length of abbreviated commit hashes.
const DefaultShortCommitLength = 7

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		RepoPath:          ".",
		ShortCommitLength: DefaultShortCommitLength,
	}
}

// ServiceOption configures the git service.
type ServiceOption func(*ServiceConfig)

// WithRepoPath sets the repository path.
func WithRepoPath(path string) ServiceOption {
	return func(c *ServiceConfig) {
		c.RepoPath = path
	}
}

// WithShortCommitLength sets the length of abbreviated commit hashes.
func WithShortCommitLength(n int) ServiceOption {
	return func(c *ServiceConfig) {
		if n > 0 {
			c.ShortCommitLength = n
		}
	}
}
