package download

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/dltracker/internal/adapter/httpengine"
	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
	"github.com/jgivc/dltracker/internal/service/lifecycle"
	"github.com/jgivc/dltracker/internal/service/session"
)

const (
	serviceName = "download"
)

// Session is a download session a transfer can be reported to.
type Session interface {
	AddListener(l session.Listener)
	RemoveListener(l session.Listener)
	httpengine.Emitter
}

type Engine interface {
	DownloadURL(ctx context.Context, em httpengine.Emitter, win entity.Window, url string) (entity.Item, error)
}

type result struct {
	item entity.Item
	err  error
}

type downloadService struct {
	registrar *session.Registrar
	engine    Engine
	log       *slog.Logger
}

func NewDownloadService(registrar *session.Registrar, engine Engine, log *slog.Logger) *downloadService {
	return &downloadService{
		registrar: registrar,
		engine:    engine,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// Download fetches url into sess and waits for the transfer to end. A listener
// with opts is registered for this download only. The item is returned on
// completion, an *common.InterruptedError when interrupted and
// common.ErrDownloadCancelled when cancelled.
func (d *downloadService) Download(ctx context.Context, sess Session, win entity.Window, url string, opts lifecycle.Options) (entity.Item, error) {
	log := d.log.With(slog.String("url", url))

	results := make(chan result, 1)
	send := func(item entity.Item, err error) {
		select {
		case results <- result{item: item, err: err}:
		default:
		}
	}

	onCancel := opts.OnCancel
	opts.UnregisterWhenDone = true
	opts.OnCancel = func(item entity.Item) {
		if onCancel != nil {
			onCancel(item)
		}

		send(item, common.ErrDownloadCancelled)
	}

	ctrl := d.registrar.Register(sess, opts, send)

	if _, err := d.engine.DownloadURL(ctx, sess, win, url); err != nil {
		sess.RemoveListener(ctrl)
		log.Error("Cannot start download", slog.Any("error", err))

		return nil, fmt.Errorf("cannot download %s: %w", url, err)
	}

	select {
	case r := <-results:
		if r.err != nil {
			log.Warn("Download failed", slog.Any("error", r.err))
		}

		return r.item, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
