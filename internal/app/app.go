package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jgivc/dltracker/internal/adapter/fsadapter"
	"github.com/jgivc/dltracker/internal/adapter/httpengine"
	"github.com/jgivc/dltracker/internal/adapter/surface"
	"github.com/jgivc/dltracker/internal/adapter/tpladapter"
	"github.com/jgivc/dltracker/internal/config"
	"github.com/jgivc/dltracker/internal/entity"
	httphandler "github.com/jgivc/dltracker/internal/handler/http"
	"github.com/jgivc/dltracker/internal/repository/stats"
	"github.com/jgivc/dltracker/internal/service/counter"
	srvdownload "github.com/jgivc/dltracker/internal/service/download"
	"github.com/jgivc/dltracker/internal/service/lifecycle"
	"github.com/jgivc/dltracker/internal/service/page"
	"github.com/jgivc/dltracker/internal/service/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	stopTimeout  = 5 * time.Second
	pingTimeout  = 5 * time.Second
	recorderSize = 128
)

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	host    *session.Host
	hub     *httphandler.WSHub
	rdb     *redis.Client
	cancel  context.CancelFunc
	log     *slog.Logger

	resolver lifecycle.PathResolver
	engine   *httpengine.Engine
	shell    *surface.SystemShell
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) init() {
	a.cfg = config.MustLoad(a.cfgPath)
	a.log = newLogger(a.cfg)

	resolver, err := fsadapter.NewFileResolver(a.cfg.Downloads.MimeTypesFile, a.log)
	if err != nil {
		panic(err)
	}
	a.resolver = resolver

	client := &http.Client{Timeout: a.cfg.Engine.RequestTimeout}
	a.engine = httpengine.NewEngine(client, a.cfg.Engine.ProgressInterval, a.log)
	a.shell = surface.NewSystemShell(a.log)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.host = session.NewHost(ctx, a.cfg.QueueSize, a.log)
}

// Start runs the HTTP server. Every session gets a listener with the configured
// options that reports to the log, metrics and websocket surfaces.
func (a *App) Start() {
	a.init()
	log := a.log

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := surface.NewMetrics(reg)

	a.hub = httphandler.NewWSHub(log)
	go a.hub.Run()

	platform := surface.Combine(
		surface.NewLogSurface(log).Platform(),
		metrics.Platform(),
		a.hub.Platform(),
		surface.Platform{Shell: a.shell},
	)

	registrar := session.NewRegistrar(a.resolver, platform, a.cfg.Downloads.Directory, log)
	registrar.RegisterAll(a.host, a.cfg.Options(), func(item entity.Item, err error) {
		if err != nil {
			log.Warn("Download failed", slog.String("id", item.ID()), slog.Any("error", err))
		}
	})

	mux := http.NewServeMux()

	if a.cfg.RedisURL != "" {
		repo := a.statsRepository()
		a.host.OnSessionCreated(func(s *session.Session) {
			rec := counter.NewRecorder(s.Name(), repo, recorderSize, log)
			s.AddListener(rec)
			a.host.Go(func(ctx context.Context) error {
				return rec.Run(ctx, s.Done())
			})
		})

		cSrv := counter.NewCounterService(repo, log)
		mux.Handle("GET /stat/{$}", httphandler.NewStatSessionsHandler(cSrv, log))
		mux.Handle("GET /stat/{session}/{$}", httphandler.NewCounterHandler(cSrv, log))
	}

	// One-shot downloads report through the session listener above, their own
	// listener stays silent.
	quiet := session.NewRegistrar(a.resolver, surface.Platform{}.WithDefaults(), a.cfg.Downloads.Directory, log)
	dSrv := srvdownload.NewDownloadService(quiet, a.engine, log)

	tpl, err := tpladapter.NewTplAdapter(a.cfg.StatusTemplate)
	if err != nil {
		panic(err)
	}
	pSrv := page.NewPageService(a.host, registrar, tpl, a.cfg.StatusTitle, log)

	a.host.Session(a.cfg.DefaultSession)

	mux.Handle("GET /{$}", httphandler.NewPageHandler(pSrv, log))
	mux.Handle("GET /ws", httphandler.NewWSHandler(a.hub, log))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("GET /progress/{session}/{$}", httphandler.NewProgressHandler(registrar, log))
	mux.Handle("POST /download/{session}/{$}", httphandler.NewDownloadHandler(a.host, dSrv, a.cfg.Options(), downloadWindow(a.hub, metrics), log))

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// downloadWindow is the progress window of downloads started over HTTP.
func downloadWindow(hub *httphandler.WSHub, metrics *surface.Metrics) entity.Window {
	return surface.CombineWindows(hub, metrics)
}

func (a *App) statsRepository() counter.CounterRepository {
	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		panic(err)
	}

	a.rdb = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if _, err := a.rdb.Ping(ctx).Result(); err != nil {
		panic(err)
	}

	return stats.NewStatsRepository(a.rdb, a.log)
}

// Fetch downloads urls concurrently into the default session, printing the
// combined progress, and returns once every transfer has ended.
func (a *App) Fetch(ctx context.Context, urls []string) error {
	a.init()
	defer a.close()

	logSurface := surface.NewLogSurface(a.log)
	defer logSurface.Close()

	platform := surface.Combine(logSurface.Platform(), surface.Platform{Shell: a.shell})
	registrar := session.NewRegistrar(a.resolver, platform, a.cfg.Downloads.Directory, a.log)
	sess := a.host.Session(a.cfg.DefaultSession)

	var (
		mu     sync.Mutex
		failed []error
		wg     sync.WaitGroup
	)

	opts := a.cfg.Options()
	opts.OnProgress = func(p entity.Progress) {
		printProgress(p)
	}
	opts.OnCancel = func(item entity.Item) {
		fmt.Printf("\n%s: cancelled\n", item.Filename())
		wg.Done()
	}
	registrar.Register(sess, opts, func(item entity.Item, err error) {
		defer wg.Done()

		if err != nil {
			mu.Lock()
			failed = append(failed, err)
			mu.Unlock()
			fmt.Printf("\n%s: %s\n", item.Filename(), err)

			return
		}

		fmt.Printf("\n%s: saved to %s\n", item.Filename(), item.SavePath())
	})

	// The transfers outlive the requests, they get ctx and not a group context.
	var g errgroup.Group
	for _, u := range urls {
		wg.Add(1)
		g.Go(func() error {
			if _, err := a.engine.DownloadURL(ctx, sess, logSurface, u); err != nil {
				wg.Done()

				return err
			}

			return nil
		})
	}

	reqErr := g.Wait()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()

	return errors.Join(append(failed, reqErr)...)
}

func printProgress(p entity.Progress) {
	if p.Indeterminate {
		fmt.Printf("\r%d bytes", p.ReceivedBytes)

		return
	}

	fmt.Printf("\r%5.1f%% %d/%d bytes %d bit/s", p.Fraction*100, p.ReceivedBytes, p.TotalBytes, p.SpeedBitsPerSecond)
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Error("Cannot shutdown server", slog.Any("error", err))
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	a.close()
}

func (a *App) close() {
	if err := a.host.Close(); err != nil {
		a.log.Error("Cannot close sessions", slog.Any("error", err))
	}
	a.cancel()

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("Cannot close redis client", slog.Any("error", err))
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	lo := &slog.HandlerOptions{}
	switch cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, lo))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, lo))
}
