// Package pipeline composes a backup source, a policy filter, and a
// backup target into a streaming run: the source emits entities
// lazily, the filter prunes them, and the target materializes them
// with bounded concurrency and per-entity failure isolation.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
)

// DefaultConcurrency is the number of target operations allowed in
// flight per policy when no override is configured.
const DefaultConcurrency = 4

// State describes the outcome of materializing a single entity.
type State int

const (
	// StateSkipped means the entity was excluded by the filter or a
	// dry run.
	StateSkipped State = iota
	// StateNew means the entity was materialized for the first time.
	StateNew
	// StateUpdated means the local copy was brought up to date.
	StateUpdated
	// StateUnchanged means the local copy already matched the remote.
	StateUnchanged
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUpdated:
		return "updated"
	case StateUnchanged:
		return "unchanged"
	default:
		return "skipped"
	}
}

// Item is one element of a source stream: an entity or a source-side
// error. Source errors are terminal for the policy.
type Item[E entity.Entity] struct {
	Entity E
	Err    error
}

// Source produces a lazy, single-pass stream of entities for a policy.
type Source[E entity.Entity] interface {
	// Kind is the policy kind this source serves, e.g. "github/repo".
	Kind() string

	// Validate rejects policies this source cannot serve. It runs at
	// configuration time; failures are configuration errors.
	Validate(policy *config.BackupPolicy) error

	// Load starts producing entities. The returned channel is closed
	// once the stream ends; the producer honors context cancellation
	// and stops sending promptly. Channel sends are unbuffered so the
	// consumer's pace backpressures pagination.
	Load(ctx context.Context, policy *config.BackupPolicy) <-chan Item[E]
}

// Target materializes entities below a policy's `to` directory.
type Target[E entity.Entity] interface {
	Backup(ctx context.Context, e E, policy *config.BackupPolicy) (State, error)
}

// Recorder receives per-entity outcomes, e.g. for a run ledger. Nil
// recorders are allowed.
type Recorder interface {
	Record(policy, entityName, state string, backupErr error)
}

// Summary aggregates the outcome of a single policy run.
type Summary struct {
	New       int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    int

	// Terminal is the source-side error that ended the policy early,
	// if any. Context cancellation surfaces here as context.Canceled.
	Terminal error
}

// Ok reports whether the policy completed without a terminal error.
// Per-entity errors do not fail a policy.
func (s Summary) Ok() bool { return s.Terminal == nil }

// Cancelled reports whether the policy ended due to cancellation.
func (s Summary) Cancelled() bool {
	return errors.Is(s.Terminal, context.Canceled) || errors.Is(s.Terminal, context.DeadlineExceeded)
}

// Pairing binds a source to a compatible target. One pairing serves
// all policies of its kind.
type Pairing[E entity.Entity] struct {
	Source      Source[E]
	Target      Target[E]
	Concurrency int64
	DryRun      bool
	Log         *slog.Logger
	Recorder    Recorder
}

// Run drives one policy to completion and returns its summary. The
// producer evaluates the filter synchronously and dispatches accepted
// entities onto goroutines gated by a weighted semaphore; a failed
// entity is logged and counted without stopping the stream.
func (p *Pairing[E]) Run(ctx context.Context, policy *config.BackupPolicy) Summary {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("policy", policy.String())

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	tracer := otel.Tracer("github-backup/pipeline")
	ctx, span := tracer.Start(ctx, "backup.policy")
	span.SetAttributes(
		attribute.String("backup.kind", policy.Kind),
		attribute.String("backup.from", policy.From),
	)
	defer span.End()

	var (
		mu      sync.Mutex
		summary Summary
		wg      sync.WaitGroup
	)
	sem := semaphore.NewWeighted(concurrency)

	record := func(e E, state State, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			summary.Errors++
		case state == StateNew:
			summary.New++
		case state == StateUpdated:
			summary.Updated++
		case state == StateUnchanged:
			summary.Unchanged++
		default:
			summary.Skipped++
		}
		if p.Recorder != nil {
			p.Recorder.Record(policy.String(), e.Name(), state.String(), err)
		}
	}

	items := p.Source.Load(ctx, policy)
	for item := range items {
		if item.Err != nil {
			// Source-side failures are terminal: record and stop
			// consuming. The source closes its channel on its own.
			if ctx.Err() != nil {
				summary.Terminal = ctx.Err()
			} else {
				summary.Terminal = item.Err
				log.Error("backup source failed", "error", item.Err)
			}
			break
		}

		e := item.Entity
		if !policy.Filter.Matches(e) {
			record(e, StateSkipped, nil)
			continue
		}
		if p.DryRun {
			log.Info("would back up", "entity", e.Name(), "to", policy.To)
			record(e, StateSkipped, nil)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			summary.Terminal = ctx.Err()
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			ctx, span := tracer.Start(ctx, "backup.entity")
			span.SetAttributes(attribute.String("backup.entity", e.Name()))
			defer span.End()

			state, err := p.Target.Backup(ctx, e, policy)
			if err != nil {
				if ctx.Err() != nil {
					// Cancellation is a clean outcome, not a failure.
					record(e, StateSkipped, nil)
					return
				}
				span.SetStatus(codes.Error, err.Error())
				log.Error("backup failed", "entity", e.Name(), "error", err)
				record(e, state, err)
				return
			}
			log.Info("backed up", "entity", e.Name(), "state", state.String())
			record(e, state, nil)
		}()
	}

	// Unblock the producer if the loop ended early; whatever it still
	// has queued is discarded.
	go func() {
		for range items {
		}
	}()

	wg.Wait()

	if summary.Terminal == nil && ctx.Err() != nil {
		summary.Terminal = ctx.Err()
	}
	if summary.Terminal != nil {
		span.SetStatus(codes.Error, summary.Terminal.Error())
	}

	log.Info("policy finished",
		"new", summary.New,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"terminal", summary.Terminal != nil)

	return summary
}
