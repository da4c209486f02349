// Package source implements the backup sources: adapters that turn a
// policy's `from` declaration into a lazy stream of entities read from
// the forge API.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/forgevault/github-backup/internal/config"
	"github.com/forgevault/github-backup/internal/entity"
	"github.com/forgevault/github-backup/internal/github"
	"github.com/forgevault/github-backup/internal/pipeline"
)

// emitter sends stream items while honoring cancellation. Sends are
// unbuffered, so a slow consumer backpressures pagination naturally.
type emitter[E entity.Entity] struct {
	ctx context.Context
	ch  chan pipeline.Item[E]
}

func newEmitter[E entity.Entity](ctx context.Context) *emitter[E] {
	return &emitter[E]{ctx: ctx, ch: make(chan pipeline.Item[E])}
}

// send delivers one item; it reports false when the context ended
// before the consumer accepted it.
func (e *emitter[E]) send(item pipeline.Item[E]) bool {
	select {
	case e.ch <- item:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *emitter[E]) entity(ent E) bool {
	return e.send(pipeline.Item[E]{Entity: ent})
}

func (e *emitter[E]) fail(err error) bool {
	return e.send(pipeline.Item[E]{Err: err})
}

// timePtr unwraps an API timestamp into a plain time pointer.
func timePtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}

// apiBase resolves the API base URL for a policy.
func apiBase(policy *config.BackupPolicy) string {
	return strings.TrimSuffix(policy.Property("api_url", github.DefaultAPIBase), "/")
}

// refspecs parses the comma-separated properties.refspecs list.
func refspecs(policy *config.BackupPolicy) []string {
	raw := policy.Property("refspecs", "")
	if raw == "" {
		return nil
	}
	var specs []string
	for _, spec := range strings.Split(raw, ",") {
		if spec = strings.TrimSpace(spec); spec != "" {
			specs = append(specs, spec)
		}
	}
	return specs
}
