package source

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/forgevault/github-backup/internal/artifact"
	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
	"github.com/forgevault/github-backup/internal/filter"
	"github.com/forgevault/github-backup/internal/github"
	"github.com/forgevault/github-backup/internal/pipeline"
)

// ReleaseSource emits one downloadable file per release asset of every
// repository selected by a github/release policy, plus a synthetic
// source tarball per release.
type ReleaseSource struct {
	Client *github.Client
}

func (s *ReleaseSource) Kind() string { return config.KindRelease }

// Validate accepts the repository `from` forms except `starred`:
// starred repositories belong to other people and their release
// artifacts are not this user's to mirror wholesale.
func (s *ReleaseSource) Validate(policy *config.BackupPolicy) error {
	spec, err := github.ParseFrom(policy.From)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidPolicy, err)
	}
	if spec.Kind == github.FromStarred {
		return fmt.Errorf("%w: 'starred' cannot be used with %s", config.ErrInvalidPolicy, config.KindRelease)
	}
	if _, err := spec.RepoEndpoint(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidPolicy, err)
	}
	return nil
}

func (s *ReleaseSource) Load(ctx context.Context, policy *config.BackupPolicy) <-chan pipeline.Item[*entity.HTTPFile] {
	out := newEmitter[*entity.HTTPFile](ctx)

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

		emitRepo := func(repo *github.Repo) error {
			if !repo.GetHasDownloads() {
				return nil
			}
			return s.loadReleases(ctx, policy, repo, out)
		}

		if spec.Single() {
			url := github.CollectionURL(apiBase(policy), endpoint, "")
			var repo github.Repo
			if err := s.Client.Get(ctx, url, policy.Credentials, &repo); err != nil {
				out.fail(err)
				return
			}
			if err := emitRepo(&repo); err != nil && ctx.Err() == nil {
				out.fail(err)
			}
			return
		}

		url := github.CollectionURL(apiBase(policy), endpoint, policy.Property("query", ""))
		err = github.ForEachPage(ctx, s.Client, url, policy.Credentials, func(repo github.Repo) error {
			return emitRepo(&repo)
		})
		if err != nil && ctx.Err() == nil {
			out.fail(err)
		}
	}()

	return out.ch
}

// loadReleases pages a repository's releases and flattens them into
// file entities.
func (s *ReleaseSource) loadReleases(ctx context.Context, policy *config.BackupPolicy, repo *github.Repo, out *emitter[*entity.HTTPFile]) error {
	url := github.CollectionURL(apiBase(policy), "repos/"+repo.GetFullName()+"/releases", "")

	return github.ForEachPage(ctx, s.Client, url, policy.Credentials, func(release github.Release) error {
		tag := release.GetTagName()

		if tarball := release.GetTarballURL(); tarball != "" {
			name := fmt.Sprintf("%s/%s/source.tar.gz", repo.GetFullName(), tag)
			file := entity.NewHTTPFile(name, tarball).
				WithCredentials(downloadCredentials(policy.Credentials)).
				WithLastModified(timePtr(release.PublishedAt))
			annotate(file, repo, &release)
			file.Meta.Set("asset.name", filter.String(tag+".tar.gz"))
			file.Meta.Set("asset.source-code", filter.Bool(true))
			setDownloaded(file, policy)
			if !out.entity(file) {
				return ctx.Err()
			}
		}

		for _, asset := range release.Assets {
			if asset.GetState() != "uploaded" {
				continue
			}

			name := fmt.Sprintf("%s/%s/%s", repo.GetFullName(), tag, asset.GetName())
			file := entity.NewHTTPFile(name, asset.GetURL()).
				WithContentType("application/octet-stream").
				WithCredentials(downloadCredentials(policy.Credentials)).
				WithSize(int64(asset.GetSize())).
				WithLastModified(timePtr(asset.UpdatedAt))
			annotate(file, repo, &release)
			file.Meta.Set("asset.name", filter.String(asset.GetName()))
			file.Meta.Set("asset.size", filter.Number(float64(asset.GetSize())/1024))
			file.Meta.Set("asset.content_type", filter.String(asset.GetContentType()))
			file.Meta.Set("asset.source-code", filter.Bool(false))
			setDownloaded(file, policy)
			if !out.entity(file) {
				return ctx.Err()
			}
		}
		return nil
	})
}

// annotate copies the repository and release attributes every flattened
// file shares.
func annotate(file *entity.HTTPFile, repo *github.Repo, release *github.Release) {
	file.Meta.Set("repo.name", filter.String(repo.GetName()))
	file.Meta.Set("repo.fullname", filter.String(repo.GetFullName()))
	file.Meta.Set("repo.private", filter.Bool(repo.GetPrivate()))
	file.Meta.Set("repo.public", filter.Bool(!repo.GetPrivate()))
	file.Meta.Set("repo.fork", filter.Bool(repo.GetFork()))

	file.Meta.Set("release.tag", filter.String(release.GetTagName()))
	file.Meta.Set("release.name", filter.String(release.GetName()))
	file.Meta.Set("release.draft", filter.Bool(release.GetDraft()))
	file.Meta.Set("release.prerelease", filter.Bool(release.GetPrerelease()))
	file.Meta.Set("release.published", filter.Bool(!release.GetDraft()))
	file.Meta.Set("release.semver", semverOf(release.GetTagName()))
}

// semverOf normalizes a release tag into its semver form, or null when
// the tag is not a version.
func semverOf(tag string) filter.Value {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return filter.Null
	}
	return filter.String(v.String())
}

// setDownloaded reports whether a verified local copy of the file
// already exists under the policy target. The field only becomes true
// after a first successful download.
func setDownloaded(file *entity.HTTPFile, policy *config.BackupPolicy) {
	downloaded := artifact.Downloaded(filepath.Join(policy.To, filepath.FromSlash(file.TargetPath())), file.Size, file.Digest)
	file.Meta.Set("asset.downloaded", filter.Bool(downloaded))
}

// downloadCredentials downgrades a bearer token to basic auth for
// asset and tarball endpoints, which reject bearer headers on some
// GitHub Enterprise versions.
func downloadCredentials(creds config.Credentials) config.Credentials {
	if creds.Kind == config.CredentialToken {
		return config.UsernamePasswordCredentials(creds.Token, "")
	}
	return creds
}
