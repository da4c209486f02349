package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgevault/github-backup/internal/filter"
)

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
schedule: "0 2 * * *"
state_db: /var/lib/github-backup/state.db
backups:
  - kind: github/repo
    from: users/octocat
    to: /backups/repos
    filter: '!repo.fork && !repo.empty'
  - kind: github/release
    from: repos/octocat/hello-world
    to: /backups/releases
    credentials: !Token "ghp_secret"
    properties:
      api_url: https://github.example.com/api/v3
  - kind: github/gist
    from: user
    to: /backups/gists
    credentials: !UsernamePassword
      username: octocat
      password: hunter2
`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if cfg.Schedule != "0 2 * * *" {
		t.Errorf("Schedule = %q, want %q", cfg.Schedule, "0 2 * * *")
	}
	if cfg.StateDB != "/var/lib/github-backup/state.db" {
		t.Errorf("StateDB = %q", cfg.StateDB)
	}
	if len(cfg.Backups) != 3 {
		t.Fatalf("got %d backups, want 3", len(cfg.Backups))
	}

	repo := cfg.Backups[0]
	if repo.Filter == nil || repo.Filter.String() != "!repo.fork && !repo.empty" {
		t.Errorf("filter not compiled: %v", repo.Filter)
	}
	if !repo.Credentials.IsNone() {
		t.Errorf("expected no credentials, got %s", repo.Credentials)
	}

	release := cfg.Backups[1]
	if release.Credentials.Kind != CredentialToken || release.Credentials.Token != "ghp_secret" {
		t.Errorf("token credentials not decoded: %+v", release.Credentials)
	}
	if got := release.Property("api_url", "https://api.github.com"); got != "https://github.example.com/api/v3" {
		t.Errorf("Property(api_url) = %q", got)
	}
	if got := release.Property("query", "fallback"); got != "fallback" {
		t.Errorf("Property(query) = %q, want fallback", got)
	}

	gist := cfg.Backups[2]
	if gist.Credentials.Kind != CredentialUsernamePassword || gist.Credentials.Username != "octocat" {
		t.Errorf("username credentials not decoded: %+v", gist.Credentials)
	}
}

func TestParseDefaultsFilterToTrue(t *testing.T) {
	cfg, err := Parse([]byte(`
backups:
  - kind: github/repo
    from: user
    to: /backups
`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	p := cfg.Backups[0]
	if p.Filter == nil || p.Filter.String() != "true" {
		t.Errorf("missing filter should default to true, got %v", p.Filter)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"no backups", "schedule: '* * * * *'\n", ErrNoBackups},
		{"missing kind", "backups:\n  - from: user\n    to: /tmp\n", ErrMissingKind},
		{"missing from", "backups:\n  - kind: github/repo\n    to: /tmp\n", ErrMissingFrom},
		{"missing to", "backups:\n  - kind: github/repo\n    from: user\n", ErrMissingTo},
		{"unknown kind", "backups:\n  - kind: github/wiki\n    from: user\n    to: /tmp\n", ErrInvalidPolicy},
		{"empty token", "backups:\n  - kind: github/repo\n    from: user\n    to: /tmp\n    credentials: !Token \"\"\n", ErrEmptyToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseRejectsBadSchedule(t *testing.T) {
	_, err := Parse([]byte(`
schedule: "not cron"
backups:
  - kind: github/repo
    from: user
    to: /tmp
`))
	if err == nil || !strings.Contains(err.Error(), "invalid schedule") {
		t.Errorf("expected a schedule error, got %v", err)
	}
}

func TestParseRejectsBadFilter(t *testing.T) {
	_, err := Parse([]byte(`
backups:
  - kind: github/repo
    from: user
    to: /tmp
    filter: 'repo.name =='
`))
	if err == nil {
		t.Fatal("expected a filter parse error")
	}
	var perr *filter.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("error %v does not carry a filter.ParseError", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backups:\n  - kind: github/repo\n    from: starred\n    to: /tmp/stars\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Backups) != 1 || cfg.Backups[0].From != "starred" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
