package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
)

// Counters is a consistent copy of the aggregate state of one aggregation window.
type Counters struct {
	Active         int
	ReceivedBytes  int64
	CompletedBytes int64
	TotalBytes     int64
	StartTime      time.Time
}

// View is the read-only side of a Tracker.
type View interface {
	Counters() Counters
}

// Tracker owns the active items of one listener and the session wide byte counters.
// Mutations are expected from a single goroutine; the lock only keeps concurrent
// readers from seeing a half updated window.
type Tracker struct {
	mu        sync.RWMutex
	items     map[string]entity.Item
	received  int64
	completed int64
	total     int64
	startTime time.Time
	now       func() time.Time
	log       *slog.Logger
}

func NewTracker(now func() time.Time, log *slog.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}

	return &Tracker{
		items:     make(map[string]entity.Item),
		startTime: now(),
		now:       now,
		log:       log.With(slog.String("item", "Tracker")),
	}
}

func (t *Tracker) AddItem(item entity.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[item.ID()]; exists {
		return fmt.Errorf("cannot add item %s: %w", item.ID(), common.ErrItemAlreadyTracked)
	}

	t.items[item.ID()] = item
	t.total += item.TotalBytes()

	t.log.Debug("Add item", slog.String("id", item.ID()), slog.Int64("total_bytes", item.TotalBytes()), slog.Int("active", len(t.items)))

	return nil
}

// RecordProgress recomputes received bytes from the items' own counters.
func (t *Tracker) RecordProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()

	received := t.completed
	for _, item := range t.items {
		received += item.ReceivedBytes()
	}

	t.received = received
}

func (t *Tracker) RemoveItem(item entity.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[item.ID()]; !exists {
		return fmt.Errorf("cannot remove item %s: %w", item.ID(), common.ErrItemNotTracked)
	}

	t.completed += item.TotalBytes()
	delete(t.items, item.ID())

	t.log.Debug("Remove item", slog.String("id", item.ID()), slog.Int("active", len(t.items)))

	return nil
}

func (t *Tracker) Contains(item entity.Item) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, exists := t.items[item.ID()]

	return exists
}

func (t *Tracker) IsEmpty() bool {
	return t.ActiveCount() == 0
}

func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.items)
}

// Reset closes the aggregation window.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.received = 0
	t.completed = 0
	t.total = 0
	t.startTime = t.now()

	t.log.Debug("Reset aggregation window")
}

func (t *Tracker) Counters() Counters {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Counters{
		Active:         len(t.items),
		ReceivedBytes:  t.received,
		CompletedBytes: t.completed,
		TotalBytes:     t.total,
		StartTime:      t.startTime,
	}
}
