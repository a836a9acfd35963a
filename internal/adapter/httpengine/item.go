package httpengine

import (
	"context"
	"sync"
	"sync/atomic"
)

// Item is a transfer started by the engine.
type Item struct {
	id       string
	url      string
	filename string
	mimeType string
	total    int64
	received atomic.Int64

	mu       sync.Mutex
	savePath string

	cancel context.CancelFunc
}

func (i *Item) ID() string           { return i.id }
func (i *Item) URL() string          { return i.url }
func (i *Item) Filename() string     { return i.filename }
func (i *Item) MIMEType() string     { return i.mimeType }
func (i *Item) TotalBytes() int64    { return i.total }
func (i *Item) ReceivedBytes() int64 { return i.received.Load() }

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

// Cancel stops the transfer. The item finishes as cancelled.
func (i *Item) Cancel() {
	if i.cancel != nil {
		i.cancel()
	}
}
