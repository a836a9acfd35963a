package entity

// Item is one in-flight transfer as seen by the tracker. It is owned by the transfer
// engine; byte counters may be re-queried at any time and must be safe for concurrent use.
type Item interface {
	ID() string
	URL() string
	Filename() string
	MIMEType() string
	TotalBytes() int64    // 0 when unknown
	ReceivedBytes() int64 // non-decreasing while active
	SavePath() string
	SetSavePath(path string)
}

// Window is the presentation surface that owns a transfer (a browser window, a tab).
type Window interface {
	SetProgressBar(fraction float64)
	IsDestroyed() bool
}

// ItemInfo is a plain copy of an item's attributes.
type ItemInfo struct {
	ID            string `json:"id" yaml:"id"`
	URL           string `json:"url" yaml:"url"`
	Filename      string `json:"filename" yaml:"filename"`
	MIMEType      string `json:"mime_type" yaml:"mime_type"`
	SavePath      string `json:"save_path" yaml:"save_path"`
	TotalBytes    int64  `json:"total_bytes" yaml:"total_bytes"`
	ReceivedBytes int64  `json:"received_bytes" yaml:"received_bytes"`
}

func InfoOf(item Item) ItemInfo {
	return ItemInfo{
		ID:            item.ID(),
		URL:           item.URL(),
		Filename:      item.Filename(),
		MIMEType:      item.MIMEType(),
		SavePath:      item.SavePath(),
		TotalBytes:    item.TotalBytes(),
		ReceivedBytes: item.ReceivedBytes(),
	}
}
