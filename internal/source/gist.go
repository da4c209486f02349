package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
	"github.com/forgevault/github-backup/internal/filter"
	"github.com/forgevault/github-backup/internal/github"
	"github.com/forgevault/github-backup/internal/pipeline"
)

// GistSource emits the gists selected by a github/gist policy. Gists
// back up as git repositories keyed by their stable gist ID.
type GistSource struct {
	Client *github.Client
}

func (s *GistSource) Kind() string { return config.KindGist }

// Validate rejects `from` declarations that cannot produce gists.
func (s *GistSource) Validate(policy *config.BackupPolicy) error {
	spec, err := github.ParseFrom(policy.From)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidPolicy, err)
	}
	if _, err := spec.GistEndpoint(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidPolicy, err)
	}
	return nil
}

func (s *GistSource) Load(ctx context.Context, policy *config.BackupPolicy) <-chan pipeline.Item[*entity.GitRepo] {
	out := newEmitter[*entity.GitRepo](ctx)

	go func() {
		defer close(out.ch)

		spec, err := github.ParseFrom(policy.From)
		if err != nil {
			out.fail(err)
			return
		}
		endpoint, err := spec.GistEndpoint()
		if err != nil {
			out.fail(err)
			return
		}

		if spec.Single() {
			url := github.CollectionURL(apiBase(policy), endpoint, "")
			var gist github.Gist
			if err := s.Client.Get(ctx, url, policy.Credentials, &gist); err != nil {
				out.fail(err)
				return
			}
			out.entity(gistEntity(policy, &gist))
			return
		}

		url := github.CollectionURL(apiBase(policy), endpoint, policy.Property("query", ""))
		err = github.ForEachPage(ctx, s.Client, url, policy.Credentials, func(gist github.Gist) error {
			if !out.entity(gistEntity(policy, &gist)) {
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

// gistEntity projects an API gist into a mirror entity with its
// filterable metadata.
func gistEntity(policy *config.BackupPolicy, gist *github.Gist) *entity.GitRepo {
	e := entity.NewGitRepo(gist.GetID(), gist.GetGitPullURL()).
		WithCredentials(policy.Credentials).
		WithRefspecs(refspecs(policy))

	e.Meta.Set("gist.public", filter.Bool(gist.GetPublic()))
	e.Meta.Set("gist.private", filter.Bool(!gist.GetPublic()))
	if gist.CommentsEnabled != nil {
		e.Meta.Set("gist.comments_enabled", filter.Bool(*gist.CommentsEnabled))
	} else {
		e.Meta.Set("gist.comments_enabled", filter.Null)
	}
	e.Meta.Set("gist.comments", filter.Number(float64(gist.GetComments())))
	e.Meta.Set("gist.files", filter.Number(float64(len(gist.Files))))
	e.Meta.Set("gist.forks", filter.Number(float64(len(gist.Forks))))
	e.Meta.Set("gist.clone_url", filter.String(gist.GetGitPullURL()))

	names := make([]string, 0, len(gist.Files))
	for name := range gist.Files {
		names = append(names, string(name))
	}
	sort.Strings(names)
	e.Meta.Set("gist.file_names", filter.Strings(names...))

	var languages, types []filter.Value
	for _, name := range names {
		file := gist.Files[github.GistFilename(name)]
		if lang := file.GetLanguage(); lang != "" {
			languages = append(languages, filter.String(lang))
		}
		types = append(types, filter.String(file.GetType()))
	}
	e.Meta.Set("gist.languages", filter.Tuple(languages...))
	e.Meta.Set("gist.type", filter.Tuple(types...))

	return e
}
