package surface

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dltracker"

// Metrics exposes the presentation signals as Prometheus series.
type Metrics struct {
	ActiveDownloads prometheus.Gauge
	Progress        prometheus.Gauge
	Finished        prometheus.Counter
	Errors          prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_downloads",
			Help:      "Number of downloads in progress.",
		}),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_ratio",
			Help:      "Combined progress of the active downloads (0..1).",
		}),
		Finished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_finished_total",
			Help:      "Total number of completed downloads.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_errors_total",
			Help:      "Total number of interrupted downloads reported to the user.",
		}),
	}

	reg.MustRegister(m.ActiveDownloads, m.Progress, m.Finished, m.Errors)

	return m
}

func (m *Metrics) Platform() Platform {
	return Platform{
		Badge:  m,
		Dialog: m,
		Dock:   m,
	}
}

func (m *Metrics) SetBadgeCount(count int) {
	m.ActiveDownloads.Set(float64(count))
}

func (m *Metrics) SetProgressBar(fraction float64) {
	switch {
	case fraction == IndicatorClear:
		m.Progress.Set(0)
	case fraction > 1:
		// indeterminate, keep the last known value
	default:
		m.Progress.Set(fraction)
	}
}

func (m *Metrics) IsDestroyed() bool {
	return false
}

func (m *Metrics) ShowErrorDialog(string, string) {
	m.Errors.Inc()
}

func (m *Metrics) MarkDownloadFinished(string) {
	m.Finished.Inc()
}
