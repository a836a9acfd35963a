package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
)

const (
	serviceName = "page"
)

type SessionLister interface {
	Names() []string
}

type ProgressService interface {
	Progress(session string, detailed bool) (entity.Progress, error)
}

type PageRenderer interface {
	Parse(page *entity.StatusPage) (string, error)
}

type pageService struct {
	sessions SessionLister
	progress ProgressService
	title    string
	now      func() time.Time
	log      *slog.Logger

	mu  sync.Mutex
	tpl PageRenderer
}

func NewPageService(sessions SessionLister, progress ProgressService, tpl PageRenderer, title string, log *slog.Logger) *pageService {
	return &pageService{
		sessions: sessions,
		progress: progress,
		tpl:      tpl,
		title:    title,
		now:      time.Now,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// GetPage renders the status page with a detailed snapshot of every session that
// has a listener.
func (p *pageService) GetPage(ctx context.Context) (string, error) {
	page := &entity.StatusPage{
		Title:     p.title,
		Generated: p.now(),
	}

	for _, name := range p.sessions.Names() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		progress, err := p.progress.Progress(name, true)
		if err != nil {
			if !errors.Is(err, common.ErrSessionNotFound) {
				p.log.Error("Cannot get session progress", slog.String("session", name), slog.Any("error", err))
			}

			continue
		}

		page.Sessions = append(page.Sessions, entity.SessionStatus{Name: name, Progress: progress})
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	content, err := p.tpl.Parse(page)
	if err != nil {
		p.log.Error("Cannot render page", slog.Any("error", err))

		return "", fmt.Errorf("cannot render status page: %w", err)
	}

	return content, nil
}
