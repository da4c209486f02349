package source

import (
	"context"
	"fmt"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
	"github.com/forgevault/github-backup/internal/filter"
	"github.com/forgevault/github-backup/internal/github"
	"github.com/forgevault/github-backup/internal/pipeline"
)

// RepoSource emits the repositories selected by a github/repo policy.
type RepoSource struct {
	Client *github.Client
}

func (s *RepoSource) Kind() string { return config.KindRepo }

// Validate rejects `from` declarations that cannot produce
// repositories.
func (s *RepoSource) Validate(policy *config.BackupPolicy) error {
	spec, err := github.ParseFrom(policy.From)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidPolicy, err)
	}
	if _, err := spec.RepoEndpoint(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidPolicy, err)
	}
	return nil
}

func (s *RepoSource) Load(ctx context.Context, policy *config.BackupPolicy) <-chan pipeline.Item[*entity.GitRepo] {
	out := newEmitter[*entity.GitRepo](ctx)

	go func() {
		defer close(out.ch)

		spec, err := github.ParseFrom(policy.From)
		if err != nil {
			out.fail(err)
			return
		}
		endpoint, err := spec.RepoEndpoint()
		if err != nil {
			out.fail(err)
			return
		}

		if spec.Single() {
			url := github.CollectionURL(apiBase(policy), endpoint, "")
			var repo github.Repo
			if err := s.Client.Get(ctx, url, policy.Credentials, &repo); err != nil {
				out.fail(err)
				return
			}
			out.entity(repoEntity(policy, &repo))
			return
		}

		url := github.CollectionURL(apiBase(policy), endpoint, policy.Property("query", ""))
		err = github.ForEachPage(ctx, s.Client, url, policy.Credentials, func(repo github.Repo) error {
			if !out.entity(repoEntity(policy, &repo)) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			out.fail(err)
		}
	}()

	return out.ch
}

// repoEntity projects an API repository into a mirror entity with its
// filterable metadata.
func repoEntity(policy *config.BackupPolicy, repo *github.Repo) *entity.GitRepo {
	e := entity.NewGitRepo(repo.GetFullName(), repo.GetCloneURL()).
		WithCredentials(policy.Credentials).
		WithRefspecs(refspecs(policy))

	e.Meta.Set("repo.name", filter.String(repo.GetName()))
	e.Meta.Set("repo.fullname", filter.String(repo.GetFullName()))
	e.Meta.Set("repo.private", filter.Bool(repo.GetPrivate()))
	e.Meta.Set("repo.public", filter.Bool(!repo.GetPrivate()))
	e.Meta.Set("repo.fork", filter.Bool(repo.GetFork()))
	e.Meta.Set("repo.size", filter.Number(float64(repo.GetSize())))
	e.Meta.Set("repo.empty", filter.Bool(repo.GetSize() == 0))
	e.Meta.Set("repo.archived", filter.Bool(repo.GetArchived()))
	e.Meta.Set("repo.disabled", filter.Bool(repo.GetDisabled()))
	e.Meta.Set("repo.default_branch", filter.String(repo.GetDefaultBranch()))
	e.Meta.Set("repo.template", filter.Bool(repo.GetIsTemplate()))
	e.Meta.Set("repo.forks", filter.Number(float64(repo.GetForksCount())))
	e.Meta.Set("repo.stargazers", filter.Number(float64(repo.GetStargazersCount())))
	e.Meta.Set("repo.clone_url", filter.String(repo.GetCloneURL()))
	return e
}
