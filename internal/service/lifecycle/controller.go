package lifecycle

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jgivc/dltracker/internal/adapter/surface"
	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
	"github.com/jgivc/dltracker/internal/service/progress"
	"github.com/jgivc/dltracker/internal/service/tracker"
	"github.com/jgivc/dltracker/internal/util"
)

type PathResolver interface {
	Resolve(directory, explicitName, suggestedName, mimeType string) (string, error)
}

// PathReleaser is implemented by resolvers that hold resolved paths until the
// item that got them has finished.
type PathReleaser interface {
	Release(path string)
}

// CompletionFunc receives the item on success or an *common.InterruptedError.
type CompletionFunc func(item entity.Item, err error)

type Config struct {
	Options Options
	// DefaultDirectory is used when Options.Directory is empty.
	DefaultDirectory string
	Resolver         PathResolver
	Platform         surface.Platform
	OnComplete       CompletionFunc
	Now              func() time.Time
}

type itemState struct {
	state    entity.State
	window   entity.Window
	resolved string
}

// Controller is the per-listener state machine. Handle must only be called from
// the dispatch goroutine of the owning session.
type Controller struct {
	opts       Options
	resolver   PathResolver
	platform   surface.Platform
	onComplete CompletionFunc
	tracker    *tracker.Tracker
	progress   *progress.Aggregator
	items      map[string]*itemState
	detach     func()
	log        *slog.Logger
}

func NewController(cfg Config, log *slog.Logger) *Controller {
	onComplete := cfg.OnComplete
	if onComplete == nil {
		onComplete = func(entity.Item, error) {}
	}

	t := tracker.NewTracker(cfg.Now, log)

	return &Controller{
		opts:       cfg.Options.withDefaults(cfg.DefaultDirectory),
		resolver:   cfg.Resolver,
		platform:   cfg.Platform.WithDefaults(),
		onComplete: onComplete,
		tracker:    t,
		progress:   progress.NewAggregator(t, cfg.Now),
		items:      make(map[string]*itemState),
		log:        log.With(slog.String("item", "LifecycleController")),
	}
}

// SetDetach installs the function that removes the controller from its source.
func (c *Controller) SetDetach(detach func()) {
	c.detach = detach
}

func (c *Controller) Options() Options {
	return c.opts
}

// Snapshot is safe to call from any goroutine.
func (c *Controller) Snapshot(detailed bool) entity.Progress {
	return c.progress.Snapshot(detailed)
}

func (c *Controller) Counters() tracker.Counters {
	return c.tracker.Counters()
}

// State returns the state of a tracked item. Items leave the controller when they
// reach a terminal state.
func (c *Controller) State(item entity.Item) (entity.State, bool) {
	st, exists := c.items[item.ID()]
	if !exists {
		return 0, false
	}

	return st.state, true
}

// Handle applies one event. For EventStarted it reports whether the item was
// adopted; other events report whether they were acted upon.
func (c *Controller) Handle(ev entity.Event) bool {
	if ev.Item == nil {
		return false
	}

	switch ev.Kind {
	case entity.EventStarted:
		return c.started(ev.Item, ev.Window)
	case entity.EventUpdated:
		return c.updated(ev.Item)
	case entity.EventDone:
		return c.done(ev.Item, ev.Outcome)
	}

	return false
}

func (c *Controller) started(item entity.Item, win entity.Window) bool {
	log := c.log.With(slog.String("id", item.ID()))

	if _, exists := c.items[item.ID()]; exists {
		log.Debug("Item is already tracked")

		return false
	}

	var resolved string
	if !c.opts.SaveAs {
		resolved = c.setSavePath(item)
	}

	if err := c.tracker.AddItem(item); err != nil {
		log.Error("Cannot track item", slog.Any("error", err))
		c.release(resolved)

		return false
	}

	c.items[item.ID()] = &itemState{state: entity.StateStarted, window: win, resolved: resolved}
	log.Info("Download started", slog.String("filename", item.Filename()), slog.String("save_path", item.SavePath()), slog.Int64("total_bytes", item.TotalBytes()))

	if c.opts.OnStarted != nil {
		c.safeCall("OnStarted", func() { c.opts.OnStarted(item) })
	}

	return true
}

// setSavePath returns the path it got from the resolver, if any.
func (c *Controller) setSavePath(item entity.Item) string {
	// A path set by an earlier listener is kept unless this one names the file.
	if item.SavePath() != "" && c.opts.Filename == "" {
		return ""
	}

	if c.resolver == nil {
		name := c.opts.Filename
		if name == "" {
			name = filepath.Base(item.Filename())
		}
		item.SetSavePath(filepath.Join(c.opts.Directory, name))

		return ""
	}

	path, err := c.resolver.Resolve(c.opts.Directory, c.opts.Filename, item.Filename(), item.MIMEType())
	if err != nil {
		c.log.Error("Cannot resolve save path", slog.String("id", item.ID()), slog.Any("error", err))

		return ""
	}

	item.SetSavePath(path)

	return path
}

func (c *Controller) release(path string) {
	if path == "" {
		return
	}

	if r, ok := c.resolver.(PathReleaser); ok {
		r.Release(path)
	}
}

func (c *Controller) updated(item entity.Item) bool {
	st, exists := c.items[item.ID()]
	if !exists {
		c.log.Debug("Update for untracked item", slog.String("id", item.ID()))

		return false
	}

	st.state = entity.StateActive
	c.tracker.RecordProgress()
	c.updateBadge()

	if c.opts.ShowProgressBar && surface.Alive(st.window) {
		view := c.progress.Snapshot(false)
		if view.Indeterminate {
			st.window.SetProgressBar(surface.IndicatorIndeterminate)
		} else {
			st.window.SetProgressBar(view.Fraction)
		}
	}

	if c.opts.OnProgress != nil {
		view := c.progress.Snapshot(c.opts.DetailedProgress)
		c.safeCall("OnProgress", func() { c.opts.OnProgress(view) })
	}

	return true
}

func (c *Controller) done(item entity.Item, outcome entity.Outcome) bool {
	log := c.log.With(slog.String("id", item.ID()), slog.String("state", outcome.State().String()))

	st, exists := c.items[item.ID()]
	if !exists {
		log.Debug("Done for untracked item")

		return false
	}

	delete(c.items, item.ID())
	c.release(st.resolved)

	if err := c.tracker.RemoveItem(item); err != nil {
		log.Error("Cannot remove item", slog.Any("error", err))
	}

	c.updateBadge()

	if c.tracker.IsEmpty() {
		if c.opts.ShowProgressBar && surface.Alive(st.window) {
			st.window.SetProgressBar(surface.IndicatorClear)
		}
		c.tracker.Reset()
	}

	if c.opts.UnregisterWhenDone && c.detach != nil {
		c.detach()
	}

	switch outcome {
	case entity.OutcomeCancelled:
		log.Info("Download cancelled")

		if c.opts.OnCancel != nil {
			c.safeCall("OnCancel", func() { c.opts.OnCancel(item) })
		}
	case entity.OutcomeInterrupted:
		message := util.Interpolate(c.opts.ErrorMessage, map[string]string{"filename": item.Filename()})
		log.Warn("Download interrupted", slog.String("message", message))

		if *c.opts.ShowErrorDialog {
			c.platform.Dialog.ShowErrorDialog(c.opts.ErrorTitle, message)
		}

		err := &common.InterruptedError{ItemID: item.ID(), Filename: item.Filename(), Message: message}
		c.safeCall("OnComplete", func() { c.onComplete(item, err) })
	case entity.OutcomeCompleted:
		log.Info("Download completed", slog.String("save_path", item.SavePath()))

		c.platform.Dock.MarkDownloadFinished(item.SavePath())

		if c.opts.OpenFolderWhenDone {
			c.platform.Shell.RevealInFolder(c.revealPath(item))
		}

		c.safeCall("OnComplete", func() { c.onComplete(item, nil) })
	}

	return true
}

func (c *Controller) revealPath(item entity.Item) string {
	if path := item.SavePath(); path != "" {
		return path
	}

	return filepath.Join(c.opts.Directory, item.Filename())
}

func (c *Controller) updateBadge() {
	if *c.opts.ShowBadge {
		c.platform.Badge.SetBadgeCount(c.tracker.ActiveCount())
	}
}

func (c *Controller) safeCall(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Hook panicked", slog.String("hook", hook), slog.Any("panic", r))
		}
	}()

	fn()
}
