package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/urfave/cli/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/forgevault/github-backup/internal/artifact"
	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
	"github.com/forgevault/github-backup/internal/github"
	"github.com/forgevault/github-backup/internal/mirror"
	"github.com/forgevault/github-backup/internal/pipeline"
	"github.com/forgevault/github-backup/internal/schedule"
	"github.com/forgevault/github-backup/internal/source"
	"github.com/forgevault/github-backup/internal/store"
	"github.com/forgevault/github-backup/internal/telemetry"
)

// engine holds the per-kind pairings serving a run.
type engine struct {
	repos    *pipeline.Pairing[*entity.GitRepo]
	gists    *pipeline.Pairing[*entity.GitRepo]
	releases *pipeline.Pairing[*entity.HTTPFile]
}

func newEngine(log *slog.Logger, concurrency int64, dryRun bool, recorder pipeline.Recorder) *engine {
	client := github.NewClient(nil)
	gitTarget := mirror.NewTarget()
	gitTarget.Log = log
	fileTarget := artifact.NewTarget(nil)
	fileTarget.Log = log

	return &engine{
		repos: &pipeline.Pairing[*entity.GitRepo]{
			Source:      &source.RepoSource{Client: client},
			Target:      gitTarget,
			Concurrency: concurrency,
			DryRun:      dryRun,
			Log:         log,
			Recorder:    recorder,
		},
		gists: &pipeline.Pairing[*entity.GitRepo]{
			Source:      &source.GistSource{Client: client},
			Target:      gitTarget,
			Concurrency: concurrency,
			DryRun:      dryRun,
			Log:         log,
			Recorder:    recorder,
		},
		releases: &pipeline.Pairing[*entity.HTTPFile]{
			Source:      &source.ReleaseSource{Client: client},
			Target:      fileTarget,
			Concurrency: concurrency,
			DryRun:      dryRun,
			Log:         log,
			Recorder:    recorder,
		},
	}
}

// validate rejects policies no pairing can serve; it runs before the
// first pipeline starts so bad configs fail with exit code 1.
func (e *engine) validate(policy *config.BackupPolicy) error {
	switch policy.Kind {
	case config.KindRepo:
		return e.repos.Source.Validate(policy)
	case config.KindGist:
		return e.gists.Source.Validate(policy)
	case config.KindRelease:
		return e.releases.Source.Validate(policy)
	default:
		return fmt.Errorf("%w: unknown kind %q", config.ErrInvalidPolicy, policy.Kind)
	}
}

func (e *engine) run(ctx context.Context, policy *config.BackupPolicy) pipeline.Summary {
	switch policy.Kind {
	case config.KindRepo:
		return e.repos.Run(ctx, policy)
	case config.KindGist:
		return e.gists.Run(ctx, policy)
	default:
		return e.releases.Run(ctx, policy)
	}
}

func runCommand(c *cli.Context) error {
	log := NewLogger(ParseLogLevelOrDefault(c.String("log-level")))
	slog.SetDefault(log)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("configuration error: %v", err), ExitConfig)
	}

	session, err := telemetry.Setup(c.Context, "github-backup", Version)
	if err != nil {
		return cli.Exit(fmt.Sprintf("telemetry error: %v", err), ExitConfig)
	}
	defer session.Shutdown(context.Background())

	var recorder pipeline.Recorder
	if cfg.StateDB != "" {
		ledger, err := store.Open(cfg.StateDB)
		if err != nil {
			return cli.Exit(fmt.Sprintf("configuration error: %v", err), ExitConfig)
		}
		defer func() { _ = ledger.Close() }()
		recorder = ledger
	}

	eng := newEngine(log, c.Int64("concurrency"), c.Bool("dry-run"), recorder)
	for i, policy := range cfg.Backups {
		if err := eng.validate(policy); err != nil {
			return cli.Exit(fmt.Sprintf("configuration error: backups[%d]: %v", i, err), ExitConfig)
		}
	}

	code := ExitOK
	job := func(ctx context.Context) error {
		if runCode := runAll(ctx, eng, cfg, log); runCode > code {
			code = runCode
		}
		return nil
	}

	if err := schedule.Run(c.Context, cfg.Schedule, log, job); err != nil && c.Context.Err() != nil {
		return cli.Exit("cancelled", ExitCancelled)
	}
	if c.Context.Err() != nil {
		return cli.Exit("cancelled", ExitCancelled)
	}
	if code != ExitOK {
		return cli.Exit("", code)
	}
	return nil
}

// runAll executes every policy concurrently and returns the worst exit
// code.
func runAll(ctx context.Context, eng *engine, cfg *config.Config, log *slog.Logger) int {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		total     pipeline.Summary
		cancelled bool
		terminal  bool
	)

	for _, policy := range cfg.Backups {
		wg.Add(1)
		go func(policy *config.BackupPolicy) {
			defer wg.Done()
			summary := eng.run(ctx, policy)

			mu.Lock()
			defer mu.Unlock()
			total.New += summary.New
			total.Updated += summary.Updated
			total.Unchanged += summary.Unchanged
			total.Skipped += summary.Skipped
			total.Errors += summary.Errors
			switch {
			case summary.Cancelled():
				cancelled = true
			case !summary.Ok():
				terminal = true
			}
		}(policy)
	}
	wg.Wait()

	caser := cases.Title(language.English)
	log.Info("run finished", "summary", fmt.Sprintf(
		"%s: %d, %s: %d, %s: %d, %s: %d, %s: %d",
		caser.String("new"), total.New,
		caser.String("updated"), total.Updated,
		caser.String("unchanged"), total.Unchanged,
		caser.String("skipped"), total.Skipped,
		caser.String("errors"), total.Errors,
	))

	switch {
	case cancelled:
		return ExitCancelled
	case terminal:
		return ExitPolicy
	default:
		return ExitOK
	}
}
