package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Host owns the sessions of the process and runs their dispatch loops.
type Host struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	created   []func(*Session)
	g         *errgroup.Group
	ctx       context.Context
	queueSize int
	log       *slog.Logger
}

func NewHost(ctx context.Context, queueSize int, log *slog.Logger) *Host {
	g, gctx := errgroup.WithContext(ctx)

	return &Host{
		sessions:  make(map[string]*Session),
		g:         g,
		ctx:       gctx,
		queueSize: queueSize,
		log:       log,
	}
}

// OnSessionCreated calls fn for every session created afterwards.
func (h *Host) OnSessionCreated(fn func(*Session)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.created = append(h.created, fn)
}

// Session returns the session called name, creating and starting it if needed.
func (h *Host) Session(name string) *Session {
	h.mu.Lock()
	if s, exists := h.sessions[name]; exists {
		h.mu.Unlock()

		return s
	}

	s := NewSession(name, h.queueSize, h.log)
	h.sessions[name] = s
	created := append([]func(*Session){}, h.created...)
	h.mu.Unlock()

	for _, fn := range created {
		fn(s)
	}

	h.g.Go(func() error {
		return s.Run(h.ctx)
	})

	return s
}

// Go runs fn next to the session loops. Close and Wait wait for it too.
func (h *Host) Go(fn func(ctx context.Context) error) {
	h.g.Go(func() error {
		return fn(h.ctx)
	})
}

func (h *Host) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.sessions))
	for name := range h.sessions {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Close stops all sessions and waits for their loops.
func (h *Host) Close() error {
	h.mu.Lock()
	for _, s := range h.sessions {
		s.Close()
	}
	h.mu.Unlock()

	return h.Wait()
}

// Wait blocks until every session loop has returned.
func (h *Host) Wait() error {
	if err := h.g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
