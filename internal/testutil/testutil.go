// Package testutil holds fakes shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jgivc/dltracker/internal/adapter/surface"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// Item is an in-memory transfer item.
type Item struct {
	id       string
	url      string
	filename string
	mimeType string
	total    atomic.Int64
	received atomic.Int64

	mu       sync.Mutex
	savePath string
}

func NewItem(id, filename, mimeType string, total int64) *Item {
	it := &Item{
		id:       id,
		url:      "https://example.com/" + filename,
		filename: filename,
		mimeType: mimeType,
	}
	it.total.Store(total)

	return it
}

func (i *Item) ID() string           { return i.id }
func (i *Item) URL() string          { return i.url }
func (i *Item) Filename() string     { return i.filename }
func (i *Item) MIMEType() string     { return i.mimeType }
func (i *Item) TotalBytes() int64    { return i.total.Load() }
func (i *Item) ReceivedBytes() int64 { return i.received.Load() }

func (i *Item) SetReceived(n int64) {
	i.received.Store(n)
}

func (i *Item) SavePath() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.savePath
}

func (i *Item) SetSavePath(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.savePath = path
}

// Window records progress bar writes.
type Window struct {
	mu        sync.Mutex
	values    []float64
	destroyed atomic.Bool
}

func (w *Window) SetProgressBar(fraction float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.values = append(w.values, fraction)
}

func (w *Window) IsDestroyed() bool {
	return w.destroyed.Load()
}

func (w *Window) Destroy() {
	w.destroyed.Store(true)
}

func (w *Window) Values() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]float64(nil), w.values...)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// NoopPlatform returns a platform without any capability.
func NoopPlatform() surface.Platform {
	return surface.Platform{}.WithDefaults()
}
