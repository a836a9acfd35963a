package counter

import (
	"context"
	"log/slog"

	"github.com/jgivc/dltracker/internal/entity"
)

const defaultQueueSize = 128

type record struct {
	kind    entity.EventKind
	outcome entity.Outcome
	bytes   int64
}

// Recorder is a session listener that counts item outcomes in the repository.
// Handle never blocks: records are queued and written by Run. When the queue is
// full records are dropped.
type Recorder struct {
	session string
	repo    CounterRepository
	queue   chan record
	log     *slog.Logger
}

func NewRecorder(session string, repo CounterRepository, queueSize int, log *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Recorder{
		session: session,
		repo:    repo,
		queue:   make(chan record, queueSize),
		log:     log.With(slog.String("item", "Recorder"), slog.String("session", session)),
	}
}

func (r *Recorder) Handle(ev entity.Event) bool {
	switch ev.Kind {
	case entity.EventStarted:
		r.push(record{kind: ev.Kind})

		return true
	case entity.EventDone:
		r.push(record{kind: ev.Kind, outcome: ev.Outcome, bytes: ev.Item.TotalBytes()})
	}

	return false
}

func (r *Recorder) push(rec record) {
	select {
	case r.queue <- rec:
	default:
		r.log.Warn("Queue is full, record dropped", slog.String("kind", rec.kind.String()))
	}
}

// Run writes queued records until ctx is done or done is closed. Records queued
// before done was closed are written.
func (r *Recorder) Run(ctx context.Context, done <-chan struct{}) error {
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-done:
			for {
				select {
				case rec := <-r.queue:
					r.write(ctx, rec)
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	var err error
	if rec.kind == entity.EventStarted {
		err = r.repo.IncStarted(ctx, r.session)
	} else {
		err = r.repo.IncOutcome(ctx, r.session, rec.outcome, rec.bytes)
	}

	if err != nil {
		r.log.Error("Cannot write record", slog.Any("error", err))
	}
}
