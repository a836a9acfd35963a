package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
	"github.com/jgivc/dltracker/internal/service/download"
	"github.com/jgivc/dltracker/internal/service/lifecycle"
	"github.com/jgivc/dltracker/internal/service/session"
)

const (
	maxRequestBody = 4096
)

var (
	sessionRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

type PageService interface {
	GetPage(ctx context.Context) (string, error)
}

type ProgressService interface {
	Progress(session string, detailed bool) (entity.Progress, error)
}

type CounterService interface {
	GetCounters(ctx context.Context, session string) (*entity.StatCounters, error)
	Sessions(ctx context.Context) ([]string, error)
}

type SessionHost interface {
	Session(name string) *session.Session
}

type DownloadService interface {
	Download(ctx context.Context, sess download.Session, win entity.Window, url string, opts lifecycle.Options) (entity.Item, error)
}

type downloadRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

func NewPageHandler(srv PageService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PageHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		content, err := srv.GetPage(r.Context())
		if err != nil {
			log.Error("Cannot get page", slog.Any("error", err))
			http.Error(w, "Cannot get page", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(content))
	}
}

func NewProgressHandler(srv ProgressService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ProgressHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("session")
		if !sessionRegexp.MatchString(name) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		detailed := true
		if v := r.URL.Query().Get("detailed"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "Bad request", http.StatusBadRequest)

				return
			}
			detailed = b
		}

		progress, err := srv.Progress(name, detailed)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrSessionNotFound):
				http.Error(w, "Session not found", http.StatusNotFound)
			default:
				log.Error("Cannot get progress", slog.String("session", name), slog.Any("error", err))
				http.Error(w, "Cannot get progress", http.StatusInternalServerError)
			}

			return
		}

		writeJSON(w, log, progress)
	}
}

func NewCounterHandler(srv CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CounterHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("session")
		if !sessionRegexp.MatchString(name) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		counters, err := srv.GetCounters(r.Context(), name)
		if err != nil {
			http.Error(w, "Cannot get counters", http.StatusInternalServerError)

			return
		}

		writeJSON(w, log, counters)
	}
}

// NewStatSessionsHandler lists the sessions that have statistics.
func NewStatSessionsHandler(srv CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatSessionsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		names, err := srv.Sessions(r.Context())
		if err != nil {
			http.Error(w, "Cannot get sessions", http.StatusInternalServerError)

			return
		}

		writeJSON(w, log, names)
	}
}

// NewDownloadHandler starts a download into the named session and answers once it
// has ended.
func NewDownloadHandler(host SessionHost, srv DownloadService, opts lifecycle.Options, win entity.Window, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("session")
		if !sessionRegexp.MatchString(name) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		var req downloadRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		if !validURL(req.URL) {
			http.Error(w, "Bad url", http.StatusBadRequest)

			return
		}

		o := opts
		o.Filename = req.Filename

		item, err := srv.Download(r.Context(), host.Session(name), win, req.URL, o)
		if err != nil {
			log.Warn("Download failed", slog.String("session", name), slog.String("url", req.URL), slog.Any("error", err))

			switch {
			case errors.Is(err, common.ErrDownloadInterrupted):
				http.Error(w, err.Error(), http.StatusBadGateway)
			case errors.Is(err, common.ErrDownloadCancelled):
				http.Error(w, "Download cancelled", http.StatusConflict)
			case errors.Is(err, common.ErrSessionClosed):
				http.Error(w, "Session closed", http.StatusServiceUnavailable)
			case errors.Is(err, context.Canceled):
				http.Error(w, "Request cancelled", http.StatusRequestTimeout)
			default:
				http.Error(w, "Cannot download", http.StatusBadGateway)
			}

			return
		}

		log.Info("Download finished", slog.String("session", name), slog.String("id", item.ID()), slog.String("path", item.SavePath()))

		writeJSON(w, log, entity.InfoOf(item))
	}
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Cannot encode response", slog.Any("error", err))
	}
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
