package counter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jgivc/dltracker/internal/entity"
)

const (
	serviceName = "counter"
)

type CounterRepository interface {
	IncStarted(ctx context.Context, session string) error
	IncOutcome(ctx context.Context, session string, outcome entity.Outcome, bytes int64) error
	GetCounters(ctx context.Context, session string) (*entity.StatCounters, error)
	Sessions(ctx context.Context) ([]string, error)
}

type counterService struct {
	repo CounterRepository
	log  *slog.Logger
}

func NewCounterService(repo CounterRepository, log *slog.Logger) *counterService {
	return &counterService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (c *counterService) GetCounters(ctx context.Context, session string) (*entity.StatCounters, error) {
	counters, err := c.repo.GetCounters(ctx, session)
	if err != nil {
		c.log.Error("Cannot get session counters", slog.String("session", session), slog.Any("error", err))

		return nil, fmt.Errorf("cannot get session %s counters: %w", session, err)
	}

	return counters, nil
}

// Sessions returns the sorted names of the sessions that have statistics.
func (c *counterService) Sessions(ctx context.Context) ([]string, error) {
	names, err := c.repo.Sessions(ctx)
	if err != nil {
		c.log.Error("Cannot get sessions", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get sessions: %w", err)
	}

	slices.Sort(names)

	return names, nil
}
