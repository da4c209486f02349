package mirror

import (
	"path/filepath"
	"testing"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
)

func TestLocalPath(t *testing.T) {
	repo := entity.NewGitRepo("acme/widget", "https://x/acme/widget.git")
	want := filepath.Join("/backups", "acme", "widget.git")
	if got := LocalPath("/backups", repo); got != want {
		t.Errorf("LocalPath = %q, want %q", got, want)
	}

	gist := entity.NewGitRepo("aa11", "https://gist.example.com/aa11.git")
	want = filepath.Join("/backups", "aa11.git")
	if got := LocalPath("/backups", gist); got != want {
		t.Errorf("LocalPath(gist) = %q, want %q", got, want)
	}
}

func TestRefspecsDefault(t *testing.T) {
	repo := entity.NewGitRepo("acme/widget", "https://x/acme/widget.git")

	specs := Refspecs(repo)
	if len(specs) != 1 || string(specs[0]) != DefaultRefspec {
		t.Errorf("default refspecs = %v", specs)
	}
	if err := specs[0].Validate(); err != nil {
		t.Errorf("default refspec does not validate: %v", err)
	}
	if !specs[0].IsForceUpdate() {
		t.Error("the default refspec must be forced so force-pushes converge")
	}

	repo.WithRefspecs([]string{"+refs/heads/main:refs/heads/main", "refs/tags/*:refs/tags/*"})
	specs = Refspecs(repo)
	if len(specs) != 2 || string(specs[0]) != "+refs/heads/main:refs/heads/main" {
		t.Errorf("custom refspecs = %v", specs)
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			t.Errorf("refspec %s does not validate: %v", spec, err)
		}
	}
}

func TestAuthMapping(t *testing.T) {
	if auth(config.Credentials{}) != nil {
		t.Error("no credentials must map to nil auth")
	}

	tok := auth(config.TokenCredentials("tok"))
	basic, ok := tok.(*githttp.BasicAuth)
	if !ok || basic.Username != "tok" || basic.Password != "" {
		t.Errorf("token auth = %#v", tok)
	}

	up := auth(config.UsernamePasswordCredentials("u", "p"))
	basic, ok = up.(*githttp.BasicAuth)
	if !ok || basic.Username != "u" || basic.Password != "p" {
		t.Errorf("username+password auth = %#v", up)
	}
}
