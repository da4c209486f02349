// Package mirror materializes git repositories as local bare mirrors:
// a first backup clones, subsequent backups fetch with forced refspecs
// so the mirror tracks the remote exactly, force-pushes included.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
	"github.com/forgevault/github-backup/internal/pipeline"
)

// DefaultRefspec forces local refs to match the remote's heads, so a
// force-pushed branch never diverges the mirror.
const DefaultRefspec = "+refs/heads/*:refs/remotes/origin/*"

// Target mirrors git repositories below a policy's target directory.
type Target struct {
	Log *slog.Logger
}

// NewTarget creates a mirror target.
func NewTarget() *Target {
	return &Target{Log: slog.Default()}
}

// Backup clones or fetches the repository's bare mirror at
// `<to>/<name>.git`.
func (t *Target) Backup(ctx context.Context, repo *entity.GitRepo, policy *config.BackupPolicy) (pipeline.State, error) {
	path := LocalPath(policy.To, repo)

	existing, err := git.PlainOpen(path)
	if err == nil {
		return t.fetch(ctx, repo, existing, path)
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return pipeline.StateSkipped, fmt.Errorf("failed to open mirror %s: %w", path, err)
	}
	return t.clone(ctx, repo, path)
}

func (t *Target) clone(ctx context.Context, repo *entity.GitRepo, path string) (pipeline.State, error) {
	t.Log.Debug("cloning mirror", "repo", repo.Name(), "path", path)

	cloned, err := git.PlainCloneContext(ctx, path, true, &git.CloneOptions{
		URL:    repo.CloneURL,
		Auth:   auth(repo.Credentials),
		Mirror: true,
		Tags:   git.AllTags,
	})
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.StateSkipped, ctx.Err()
		}
		return pipeline.StateSkipped, fmt.Errorf("failed to clone %s: %w", repo.CloneURL, err)
	}

	// A custom refspec set is applied with a follow-up fetch: the
	// mirror clone itself always transfers every ref.
	if len(repo.Refspecs) > 0 {
		if err := cloned.FetchContext(ctx, fetchOptions(repo)); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return pipeline.StateNew, fmt.Errorf("failed to apply refspecs to fresh mirror %s: %w", path, err)
		}
	}
	return pipeline.StateNew, nil
}

func (t *Target) fetch(ctx context.Context, repo *entity.GitRepo, repository *git.Repository, path string) (pipeline.State, error) {
	t.Log.Debug("fetching mirror", "repo", repo.Name(), "path", path)

	err := repository.FetchContext(ctx, fetchOptions(repo))
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return pipeline.StateUnchanged, nil
	case err == nil:
		return pipeline.StateUpdated, nil
	case ctx.Err() != nil:
		return pipeline.StateSkipped, ctx.Err()
	default:
		return pipeline.StateSkipped, fmt.Errorf("failed to fetch %s into %s: %w", repo.CloneURL, path, err)
	}
}

// LocalPath is the mirror directory of an entity below a policy
// target: `<to>/<name>.git`.
func LocalPath(to string, repo *entity.GitRepo) string {
	return filepath.Join(to, filepath.FromSlash(repo.TargetPath()))
}

// Refspecs returns the entity's configured refspecs, or the forced
// default.
func Refspecs(repo *entity.GitRepo) []gitconfig.RefSpec {
	if len(repo.Refspecs) == 0 {
		return []gitconfig.RefSpec{DefaultRefspec}
	}
	specs := make([]gitconfig.RefSpec, len(repo.Refspecs))
	for i, s := range repo.Refspecs {
		specs[i] = gitconfig.RefSpec(s)
	}
	return specs
}

func fetchOptions(repo *entity.GitRepo) *git.FetchOptions {
	return &git.FetchOptions{
		RemoteURL: repo.CloneURL,
		RefSpecs:  Refspecs(repo),
		Auth:      auth(repo.Credentials),
		Tags:      git.AllTags,
		Force:     true,
	}
}

// auth maps policy credentials onto the git transport; tokens ride as
// the basic-auth username, matching GitHub's smart-HTTP contract.
func auth(creds config.Credentials) transport.AuthMethod {
	switch creds.Kind {
	case config.CredentialToken:
		return &githttp.BasicAuth{Username: creds.Token}
	case config.CredentialUsernamePassword:
		return &githttp.BasicAuth{Username: creds.Username, Password: creds.Password}
	default:
		return nil
	}
}
