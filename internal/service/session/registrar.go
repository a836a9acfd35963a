package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jgivc/dltracker/internal/adapter/surface"
	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
	"github.com/jgivc/dltracker/internal/service/lifecycle"
)

// Source is a stream of new-transfer events that listeners can attach to.
type Source interface {
	AddListener(l Listener)
	RemoveListener(l Listener)
}

type Registrar struct {
	resolver  lifecycle.PathResolver
	platform  surface.Platform
	directory string
	now       func() time.Time

	mu          sync.Mutex
	controllers map[string]*lifecycle.Controller

	log *slog.Logger
}

func NewRegistrar(resolver lifecycle.PathResolver, platform surface.Platform, directory string, log *slog.Logger) *Registrar {
	return &Registrar{
		resolver:    resolver,
		platform:    platform,
		directory:   directory,
		now:         time.Now,
		controllers: make(map[string]*lifecycle.Controller),
		log:         log,
	}
}

// Register attaches a new lifecycle controller to src. With
// opts.UnregisterWhenDone the controller detaches itself after the first
// terminal event.
func (r *Registrar) Register(src Source, opts lifecycle.Options, onComplete lifecycle.CompletionFunc) *lifecycle.Controller {
	ctrl := lifecycle.NewController(lifecycle.Config{
		Options:          opts,
		DefaultDirectory: r.directory,
		Resolver:         r.resolver,
		Platform:         r.platform,
		OnComplete:       onComplete,
		Now:              r.now,
	}, r.log)

	ctrl.SetDetach(func() {
		src.RemoveListener(ctrl)
	})
	src.AddListener(ctrl)

	return ctrl
}

// RegisterAll registers a controller with opts on every session host creates from
// now on. The controllers are kept for Controller.
func (r *Registrar) RegisterAll(host *Host, opts lifecycle.Options, onComplete lifecycle.CompletionFunc) {
	host.OnSessionCreated(func(s *Session) {
		ctrl := r.Register(s, opts, onComplete)

		r.mu.Lock()
		r.controllers[s.Name()] = ctrl
		r.mu.Unlock()

		r.log.Debug("Registered session listener", slog.String("session", s.Name()))
	})
}

// Controller returns the controller RegisterAll attached to the named session.
func (r *Registrar) Controller(session string) (*lifecycle.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctrl, exists := r.controllers[session]

	return ctrl, exists
}

// Progress returns the current snapshot of the controller RegisterAll attached to
// the named session.
func (r *Registrar) Progress(session string, detailed bool) (entity.Progress, error) {
	ctrl, exists := r.Controller(session)
	if !exists {
		return entity.Progress{}, common.ErrSessionNotFound
	}

	return ctrl.Snapshot(detailed), nil
}
