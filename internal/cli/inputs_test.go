package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relicta-tech/shipgate/internal/domain/ref"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/infrastructure/ci"
	"github.com/relicta-tech/shipgate/internal/service/git"
)

// stubRefSource implements refSource for testing.
type stubRefSource struct {
	branch string
	tags   []git.Tag
}

func (s stubRefSource) GetCurrentBranch(context.Context) (string, error) {
	if s.branch == "" {
		return "", errors.New("HEAD is detached")
	}
	return s.branch, nil
}

func (s stubRefSource) GetHeadTags(context.Context) ([]git.Tag, error) {
	return s.tags, nil
}

func envOf(vars map[string]string) *ci.Env {
	return ci.NewEnv(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
}

func TestBuildEvent(t *testing.T) {
	actions := envOf(map[string]string{
		ci.VarRef:              "refs/tags/v1.2.0",
		ci.VarRefType:          "tag",
		ci.VarEventName:        "workflow_dispatch",
		ci.VarInputEnvironment: "staging",
	})

	tests := []struct {
		name         string
		opts         EventOptions
		env          *ci.Env
		repo         refSource
		wantRef      string
		wantType     ref.RefType
		wantEvent    ref.EventKind
		wantOverride string
	}{
		{
			name:      "flags only",
			opts:      EventOptions{Ref: "main"},
			env:       ci.NewEnv(nil),
			wantRef:   "main",
			wantType:  ref.TypeBranch,
			wantEvent: ref.EventPush,
		},
		{
			name:      "tag namespace sets the type",
			opts:      EventOptions{Ref: "refs/tags/v3.0.0"},
			env:       ci.NewEnv(nil),
			wantRef:   "refs/tags/v3.0.0",
			wantType:  ref.TypeTag,
			wantEvent: ref.EventPush,
		},
		{
			name:         "ci environment",
			env:          actions,
			repo:         stubRefSource{branch: "ignored"},
			wantRef:      "refs/tags/v1.2.0",
			wantType:     ref.TypeTag,
			wantEvent:    ref.EventManual,
			wantOverride: "staging",
		},
		{
			name:         "flags win over ci",
			opts:         EventOptions{Ref: "develop", Event: "push", Environment: "dev"},
			env:          actions,
			wantRef:      "develop",
			wantType:     ref.TypeBranch,
			wantEvent:    ref.EventPush,
			wantOverride: "dev",
		},
		{
			name:      "checked-out branch",
			env:       ci.NewEnv(nil),
			repo:      stubRefSource{branch: "release/2.3"},
			wantRef:   "release/2.3",
			wantType:  ref.TypeBranch,
			wantEvent: ref.EventPush,
		},
		{
			name:      "detached HEAD uses its tag",
			env:       ci.NewEnv(nil),
			repo:      stubRefSource{tags: []git.Tag{{Name: "v2.0.0"}, {Name: "v2.0.0-rc.1"}}},
			wantRef:   "v2.0.0",
			wantType:  ref.TypeTag,
			wantEvent: ref.EventPush,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := buildEvent(context.Background(), tt.opts, tt.env, tt.repo)
			if err != nil {
				t.Fatalf("buildEvent() error = %v", err)
			}
			if e.Ref() != tt.wantRef || e.RefType() != tt.wantType || e.EventKind() != tt.wantEvent {
				t.Errorf("buildEvent() = (%q, %q, %q), want (%q, %q, %q)",
					e.Ref(), e.RefType(), e.EventKind(), tt.wantRef, tt.wantType, tt.wantEvent)
			}
			if e.ManualEnvironment() != tt.wantOverride {
				t.Errorf("ManualEnvironment() = %q, want %q", e.ManualEnvironment(), tt.wantOverride)
			}
		})
	}
}

func TestBuildEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts EventOptions
		repo refSource
	}{
		{name: "no ref anywhere"},
		{name: "detached HEAD without tags", repo: stubRefSource{}},
		{name: "bad ref type", opts: EventOptions{Ref: "main", RefType: "commit"}},
		{name: "bad event", opts: EventOptions{Ref: "main", Event: "schedule"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildEvent(context.Background(), tt.opts, ci.NewEnv(nil), tt.repo)
			if !sgerrors.IsKind(err, sgerrors.KindValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestBuildVersionInput(t *testing.T) {
	env := envOf(map[string]string{ci.VarSHA: "0123456789abcdef"})

	in, err := buildVersionInput(context.Background(), VersionOptions{
		EventOptions: EventOptions{Ref: "main"},
		Date:         "2024-03-15",
	}, env, nil)
	if err != nil {
		t.Fatalf("buildVersionInput() error = %v", err)
	}
	if in.ShortCommit != "0123456789abcdef" {
		t.Errorf("ShortCommit = %q, want GITHUB_SHA", in.ShortCommit)
	}
	if !in.DiscoverLatestTag {
		t.Error("DiscoverLatestTag should be set without --latest-tag")
	}
	if want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC); !in.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", in.Date, want)
	}

	in, err = buildVersionInput(context.Background(), VersionOptions{
		EventOptions: EventOptions{Ref: "main"},
		LatestTag:    "v1.0.0",
		Commit:       "abc",
	}, env, nil)
	if err != nil {
		t.Fatalf("buildVersionInput() error = %v", err)
	}
	if in.DiscoverLatestTag || in.LatestTag != "v1.0.0" || in.ShortCommit != "abc" {
		t.Errorf("explicit inputs not kept: %+v", in)
	}

	_, err = buildVersionInput(context.Background(), VersionOptions{
		EventOptions: EventOptions{Ref: "main"},
		Date:         "15/03/2024",
	}, env, nil)
	if !sgerrors.IsKind(err, sgerrors.KindValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestRepoSource_Nil(t *testing.T) {
	if repoSource(nil) != nil {
		t.Error("repoSource(nil) should be a nil interface")
	}
}
