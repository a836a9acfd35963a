package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jgivc/dltracker/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeySessionStats = "ss" // HASH. ss:{session} counter_name: value
	KeySessions     = "sl" // SET. Names of the sessions that have statistics.

	FieldStarted        = "started"
	FieldCompleted      = "completed"
	FieldCancelled      = "cancelled"
	FieldInterrupted    = "interrupted"
	FieldCompletedBytes = "completed_bytes"

	KeySeparator = ":"
)

type statsRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewStatsRepository(cl *redis.Client, log *slog.Logger) *statsRepository {
	return &statsRepository{
		cl:  cl,
		log: log.With(slog.String("item", "StatsRepository")),
	}
}

func (r *statsRepository) IncStarted(ctx context.Context, session string) error {
	pipe := r.cl.Pipeline()
	pipe.SAdd(ctx, KeySessions, session)
	pipe.HIncrBy(ctx, getKey(KeySessionStats, session), FieldStarted, 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot increment started counter of session %s: %w", session, err)
	}

	return nil
}

// IncOutcome counts a finished item. bytes is added to the completed bytes of the
// session for completed items only.
func (r *statsRepository) IncOutcome(ctx context.Context, session string, outcome entity.Outcome, bytes int64) error {
	field, err := outcomeField(outcome)
	if err != nil {
		return err
	}

	key := getKey(KeySessionStats, session)

	pipe := r.cl.Pipeline()
	pipe.SAdd(ctx, KeySessions, session)
	pipe.HIncrBy(ctx, key, field, 1)
	if outcome == entity.OutcomeCompleted && bytes > 0 {
		pipe.HIncrBy(ctx, key, FieldCompletedBytes, bytes)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot increment %s counter of session %s: %w", field, session, err)
	}

	return nil
}

func (r *statsRepository) GetCounters(ctx context.Context, session string) (*entity.StatCounters, error) {
	values, err := r.cl.HGetAll(ctx, getKey(KeySessionStats, session)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get session %s counters: %w", session, err)
	}

	counters := &entity.StatCounters{Session: session}
	fields := map[string]*int64{
		FieldStarted:        &counters.Started,
		FieldCompleted:      &counters.Completed,
		FieldCancelled:      &counters.Cancelled,
		FieldInterrupted:    &counters.Interrupted,
		FieldCompletedBytes: &counters.CompletedBytes,
	}

	for name, val := range values {
		dst, exists := fields[name]
		if !exists {
			continue
		}

		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter value", slog.String("session", session), slog.String("field", name), slog.Any("error", err))

			continue
		}

		*dst = n
	}

	return counters, nil
}

func (r *statsRepository) Sessions(ctx context.Context) ([]string, error) {
	names, err := r.cl.SMembers(ctx, KeySessions).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get sessions: %w", err)
	}

	return names, nil
}

func outcomeField(outcome entity.Outcome) (string, error) {
	switch outcome {
	case entity.OutcomeCompleted:
		return FieldCompleted, nil
	case entity.OutcomeCancelled:
		return FieldCancelled, nil
	case entity.OutcomeInterrupted:
		return FieldInterrupted, nil
	}

	return "", fmt.Errorf("unknown outcome %d", outcome)
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
