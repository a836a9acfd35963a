package httpengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

const (
	defaultFilename = "download"
	bufferSize      = 32 * 1024
	dirPerm         = 0o755
)

// Emitter receives the lifecycle events of the transfers. session.Session
// implements it.
type Emitter interface {
	Start(ctx context.Context, item entity.Item, win entity.Window) error
	Update(ctx context.Context, item entity.Item) error
	Finish(ctx context.Context, item entity.Item, outcome entity.Outcome) error
}

type Engine struct {
	client   *http.Client
	fs       afero.Fs
	interval time.Duration
	log      *slog.Logger
}

func NewEngine(client *http.Client, interval time.Duration, log *slog.Logger) *Engine {
	return NewEngineWithFS(afero.NewOsFs(), client, interval, log)
}

func NewEngineWithFS(fs afero.Fs, client *http.Client, interval time.Duration, log *slog.Logger) *Engine {
	if client == nil {
		client = http.DefaultClient
	}

	return &Engine{
		client:   client,
		fs:       fs,
		interval: interval,
		log:      log.With(slog.String("item", "HTTPEngine")),
	}
}

// DownloadURL fetches rawURL and reports the transfer to em. Errors that happen
// before a response arrives are returned without an item. Once the item was
// started every outcome is delivered through em.Finish and the returned error
// is nil. The returned item is an *Item.
func (e *Engine) DownloadURL(ctx context.Context, em Emitter, win entity.Window, rawURL string) (entity.Item, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("cannot create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("cannot get %s: %w", rawURL, err)
	}

	item := newItem(rawURL, resp)
	item.cancel = cancel

	go func() {
		defer cancel()
		defer resp.Body.Close()

		e.transfer(ctx, em, win, item, resp)
	}()

	return item, nil
}

func (e *Engine) transfer(ctx context.Context, em Emitter, win entity.Window, item *Item, resp *http.Response) {
	log := e.log.With(slog.String("id", item.ID()), slog.String("url", item.URL()))

	// Finish must be delivered even when the transfer itself was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	finish := func(outcome entity.Outcome) {
		if err := em.Finish(finishCtx, item, outcome); err != nil {
			log.Error("Cannot finish item", slog.String("outcome", outcome.String()), slog.Any("error", err))
		}
	}

	if err := em.Start(ctx, item, win); err != nil {
		log.Error("Cannot start item", slog.Any("error", err))

		// Listeners that saw the start still get a terminal event.
		if !errors.Is(err, common.ErrSessionClosed) {
			finish(entity.OutcomeCancelled)
		}

		return
	}

	savePath := item.SavePath()
	if savePath == "" {
		log.Warn("Cancel download", slog.Any("error", common.ErrNoSavePath))
		finish(entity.OutcomeCancelled)

		return
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn("Bad response status", slog.Int("status", resp.StatusCode))
		e.removePartial(log, savePath)
		finish(entity.OutcomeInterrupted)

		return
	}

	err := e.write(ctx, em, item, resp.Body, savePath)
	switch {
	case err == nil:
		log.Debug("Body received", slog.Int64("bytes", item.ReceivedBytes()))
		finish(entity.OutcomeCompleted)
	case ctx.Err() != nil:
		e.removePartial(log, savePath)
		finish(entity.OutcomeCancelled)
	default:
		log.Error("Transfer failed", slog.Any("error", err))
		e.removePartial(log, savePath)
		finish(entity.OutcomeInterrupted)
	}
}

func (e *Engine) write(ctx context.Context, em Emitter, item *Item, body io.Reader, savePath string) error {
	if err := e.fs.MkdirAll(filepath.Dir(savePath), dirPerm); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	f, err := e.fs.Create(savePath)
	if err != nil {
		return fmt.Errorf("cannot create file: %w", err)
	}
	defer f.Close()

	throttle := e.sometimes()
	update := func() {
		if err := em.Update(ctx, item); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Debug("Cannot send update", slog.String("id", item.ID()), slog.Any("error", err))
		}
	}

	buf := make([]byte, bufferSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("cannot write file: %w", err)
			}

			item.received.Add(int64(n))
			throttle.Do(update)
		}

		if rerr == io.EOF {
			break
		}

		if rerr != nil {
			return fmt.Errorf("cannot read body: %w", rerr)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	update()

	return nil
}

func (e *Engine) sometimes() *rate.Sometimes {
	if e.interval <= 0 {
		return &rate.Sometimes{Every: 1}
	}

	return &rate.Sometimes{Interval: e.interval}
}

func (e *Engine) removePartial(log *slog.Logger, savePath string) {
	if err := e.fs.Remove(savePath); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		log.Warn("Cannot remove partial file", slog.String("path", savePath), slog.Any("error", err))
	}
}

func newItem(rawURL string, resp *http.Response) *Item {
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	mimeType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = mt
		}
	}

	return &Item{
		id:       uuid.NewString(),
		url:      rawURL,
		filename: suggestedFilename(rawURL, resp.Header.Get("Content-Disposition")),
		mimeType: mimeType,
		total:    total,
	}
}

// suggestedFilename takes the name from Content-Disposition, then from the
// last URL path segment.
func suggestedFilename(rawURL, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := path.Base(strings.ReplaceAll(params["filename"], "\\", "/")); name != "" && name != "." && name != "/" {
				return name
			}
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultFilename
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return defaultFilename
	}

	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	return name
}
