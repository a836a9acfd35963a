package entity

// Progress is the aggregate view handed to progress hooks. Speed, TotalBytes and
// ReceivedBytes are only filled for detailed snapshots.
type Progress struct {
	Fraction           float64 `json:"fraction"`
	Indeterminate      bool    `json:"indeterminate"`
	Detailed           bool    `json:"detailed"`
	SpeedBitsPerSecond int64   `json:"speed_bps,omitempty"`
	TotalBytes         int64   `json:"total_bytes,omitempty"`
	ReceivedBytes      int64   `json:"received_bytes,omitempty"`
}

// StatCounters holds outcome statistics of one session.
type StatCounters struct {
	Session        string `json:"session" yaml:"session"`
	Started        int64  `json:"started" yaml:"started"`
	Completed      int64  `json:"completed" yaml:"completed"`
	Cancelled      int64  `json:"cancelled" yaml:"cancelled"`
	Interrupted    int64  `json:"interrupted" yaml:"interrupted"`
	CompletedBytes int64  `json:"completed_bytes" yaml:"completed_bytes"`
}
