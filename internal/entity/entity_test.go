package entity

import (
	"testing"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/filter"
)

func TestMetadataIsCaseInsensitive(t *testing.T) {
	var m Metadata
	m.Set("Repo.Name", filter.String("widget"))

	if got := m.Get("repo.name"); !got.Equal(filter.String("widget")) {
		t.Errorf("Get(repo.name) = %s", got)
	}
	if got := m.Get("REPO.NAME"); !got.Equal(filter.String("widget")) {
		t.Errorf("Get(REPO.NAME) = %s", got)
	}
	if got := m.Get("repo.missing"); got.Kind() != filter.KindNull {
		t.Errorf("missing key should be null, got %s", got)
	}
}

func TestGitRepoProjection(t *testing.T) {
	repo := NewGitRepo("acme/widget", "https://github.example.com/acme/widget.git").
		WithCredentials(config.TokenCredentials("tok")).
		WithRefspecs([]string{"+refs/heads/*:refs/remotes/origin/*"}).
		WithMeta("repo.archived", filter.Bool(true)).
		WithMeta("repo.public", filter.Bool(true)).
		WithMeta("repo.fork", filter.Bool(false))

	if repo.Name() != "acme/widget" {
		t.Errorf("Name() = %q", repo.Name())
	}
	if repo.TargetPath() != "acme/widget.git" {
		t.Errorf("TargetPath() = %q", repo.TargetPath())
	}
	if !repo.Get("repo.archived").Truthy() {
		t.Error("repo.archived should be true")
	}
	if repo.Get("repo.fork").Truthy() {
		t.Error("repo.fork should be false")
	}
	if repo.Get("release.tag").Kind() != filter.KindNull {
		t.Error("an unknown root must project as null")
	}
}

func TestHTTPFileProjection(t *testing.T) {
	file := NewHTTPFile("acme/widget/v1.0.0/widget.tar.gz", "https://api.github.example.com/assets/1").
		WithContentType("application/octet-stream").
		WithSize(1024).
		WithMeta("asset.name", filter.String("widget.tar.gz"))

	if file.TargetPath() != "acme/widget/v1.0.0/widget.tar.gz" {
		t.Errorf("TargetPath() = %q", file.TargetPath())
	}
	if !file.Get("asset.name").Equal(filter.String("Widget.tar.gz")) {
		t.Error("asset.name should compare case-insensitively")
	}
	if file.Size != 1024 {
		t.Errorf("Size = %d", file.Size)
	}
}
