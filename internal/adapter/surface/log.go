package surface

import (
	"log/slog"
	"sync/atomic"
)

// LogSurface reports presentation changes through a logger. It is the surface of
// the command line client.
type LogSurface struct {
	closed atomic.Bool
	log    *slog.Logger
}

func NewLogSurface(log *slog.Logger) *LogSurface {
	return &LogSurface{
		log: log.With(slog.String("item", "LogSurface")),
	}
}

func (s *LogSurface) Platform() Platform {
	return Platform{
		Badge:  s,
		Dialog: s,
		Dock:   s,
	}
}

func (s *LogSurface) SetBadgeCount(count int) {
	s.log.Debug("Badge", slog.Int("active", count))
}

func (s *LogSurface) SetProgressBar(fraction float64) {
	switch fraction {
	case IndicatorClear:
		s.log.Debug("Progress bar cleared")
	case IndicatorIndeterminate:
		s.log.Debug("Progress bar indeterminate")
	default:
		s.log.Debug("Progress bar", slog.Float64("fraction", fraction))
	}
}

func (s *LogSurface) IsDestroyed() bool {
	return s.closed.Load()
}

// Close marks the surface destroyed, later progress bar writes are skipped.
func (s *LogSurface) Close() {
	s.closed.Store(true)
}

func (s *LogSurface) ShowErrorDialog(title, message string) {
	s.log.Error(title, slog.String("message", message))
}

func (s *LogSurface) MarkDownloadFinished(path string) {
	s.log.Info("Download finished", slog.String("path", path))
}
