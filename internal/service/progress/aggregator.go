package progress

import (
	"math"
	"time"

	"github.com/jgivc/dltracker/internal/entity"
	"github.com/jgivc/dltracker/internal/service/tracker"
)

type Aggregator struct {
	view tracker.View
	now  func() time.Time
}

func NewAggregator(view tracker.View, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		view: view,
		now:  now,
	}
}

// Snapshot derives the progress of the current aggregation window. A window with
// unknown total size is reported as indeterminate.
func (a *Aggregator) Snapshot(detailed bool) entity.Progress {
	c := a.view.Counters()

	p := entity.Progress{Detailed: detailed}
	if c.TotalBytes > 0 {
		p.Fraction = float64(c.ReceivedBytes) / float64(c.TotalBytes)
	} else {
		p.Indeterminate = true
	}

	if !detailed {
		return p
	}

	p.TotalBytes = c.TotalBytes
	p.ReceivedBytes = c.ReceivedBytes

	elapsed := float64(a.now().Sub(c.StartTime).Milliseconds()) / 1000
	if elapsed > 0 {
		p.SpeedBitsPerSecond = int64(math.Floor(float64(c.ReceivedBytes) * 8 / elapsed))
	}

	return p
}
