package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
)

const defaultQueueSize = 256

// Listener receives the events of a session. For EventStarted the return value tells
// whether the listener adopted the item; only adopting listeners get its later events.
type Listener interface {
	Handle(ev entity.Event) bool
}

type envelope struct {
	ev  entity.Event
	ack chan struct{}
}

// Session is the event source of one download session. Events are queued in a
// mailbox and delivered one by one from the goroutine running Run.
type Session struct {
	name    string
	mailbox chan envelope
	closing chan struct{}
	done    chan struct{}
	once    sync.Once

	mu        sync.Mutex
	listeners []Listener

	// routes is only touched by the dispatch goroutine.
	routes map[string][]Listener

	log *slog.Logger
}

func NewSession(name string, queueSize int, log *slog.Logger) *Session {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Session{
		name:    name,
		mailbox: make(chan envelope, queueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		routes:  make(map[string][]Listener),
		log:     log.With(slog.String("item", "Session"), slog.String("session", name)),
	}
}

func (s *Session) Name() string {
	return s.name
}

// AddListener subscribes l to new-transfer events. Safe to call from a handler.
func (s *Session) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
}

// RemoveListener stops delivering new-transfer events to l. Items l already adopted
// keep being routed to it. Safe to call from a handler.
func (s *Session) RemoveListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.listeners, l); i >= 0 {
		s.listeners = slices.Delete(s.listeners, i, i+1)
		s.log.Debug("Listener removed", slog.Int("listeners", len(s.listeners)))
	}
}

func (s *Session) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.listeners)
}

// Start queues the new-transfer event of item and waits until it was dispatched,
// so listeners have had the chance to set the save path. ctx only bounds the
// wait for a mailbox slot: a queued event is always waited for, its listeners
// expect a terminal event afterwards.
func (s *Session) Start(ctx context.Context, item entity.Item, win entity.Window) error {
	ack := make(chan struct{})
	if err := s.enqueue(ctx, envelope{ev: entity.Started(item, win), ack: ack}); err != nil {
		return err
	}

	select {
	case <-ack:
		return nil
	case <-s.done:
		select {
		case <-ack:
			return nil
		default:
			return common.ErrSessionClosed
		}
	}
}

func (s *Session) Update(ctx context.Context, item entity.Item) error {
	return s.enqueue(ctx, envelope{ev: entity.Updated(item)})
}

func (s *Session) Finish(ctx context.Context, item entity.Item, outcome entity.Outcome) error {
	return s.enqueue(ctx, envelope{ev: entity.Done(item, outcome)})
}

func (s *Session) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-s.closing:
		return common.ErrSessionClosed
	default:
	}

	select {
	case s.mailbox <- env:
		return nil
	case <-s.closing:
		return common.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches events until ctx is done or Close is called. Queued events are
// delivered before it returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	s.log.Info("Started")

	for {
		select {
		case env := <-s.mailbox:
			s.dispatch(env)
		case <-s.closing:
			s.drain()
			s.log.Info("Stopped")

			return nil
		case <-ctx.Done():
			s.Close()
			s.drain()
			s.log.Info("Interrupted")

			return ctx.Err()
		}
	}
}

// Close stops accepting events.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closing)
	})
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) drain() {
	for {
		select {
		case env := <-s.mailbox:
			s.dispatch(env)
		default:
			return
		}
	}
}

func (s *Session) dispatch(env envelope) {
	if env.ack != nil {
		defer close(env.ack)
	}

	ev := env.ev
	id := ev.Item.ID()

	switch ev.Kind {
	case entity.EventStarted:
		s.mu.Lock()
		listeners := slices.Clone(s.listeners)
		s.mu.Unlock()

		for _, l := range listeners {
			if l.Handle(ev) {
				s.routes[id] = append(s.routes[id], l)
			}
		}

		if len(s.routes[id]) == 0 {
			s.log.Debug("Nobody adopted item", slog.String("id", id))
		}
	case entity.EventUpdated:
		for _, l := range s.routes[id] {
			l.Handle(ev)
		}
	case entity.EventDone:
		listeners := s.routes[id]
		delete(s.routes, id)

		for _, l := range listeners {
			l.Handle(ev)
		}
	}
}
