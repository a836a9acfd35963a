package lifecycle

import "github.com/jgivc/dltracker/internal/entity"

const (
	DefaultErrorMessage = "The download of {filename} was interrupted"
	DefaultErrorTitle   = "Download Error"
)

// Options configures one listener. Unset fields get their defaults once when a
// controller is built: ShowBadge and ShowErrorDialog are on unless set to false.
type Options struct {
	Directory          string
	Filename           string
	ShowBadge          *bool
	ShowErrorDialog    *bool
	ShowProgressBar    bool
	DetailedProgress   bool
	UnregisterWhenDone bool
	OpenFolderWhenDone bool
	SaveAs             bool
	ErrorMessage       string
	ErrorTitle         string

	OnStarted  func(item entity.Item)
	OnProgress func(p entity.Progress)
	OnCancel   func(item entity.Item)
}

func DefaultOptions() Options {
	return Options{
		ShowBadge:       Bool(true),
		ShowErrorDialog: Bool(true),
		ErrorMessage:    DefaultErrorMessage,
		ErrorTitle:      DefaultErrorTitle,
	}
}

func (o Options) withDefaults(directory string) Options {
	if o.Directory == "" {
		o.Directory = directory
	}
	if o.ErrorMessage == "" {
		o.ErrorMessage = DefaultErrorMessage
	}
	if o.ErrorTitle == "" {
		o.ErrorTitle = DefaultErrorTitle
	}
	if o.ShowBadge == nil {
		o.ShowBadge = Bool(true)
	}
	if o.ShowErrorDialog == nil {
		o.ShowErrorDialog = Bool(true)
	}

	return o
}

func Bool(v bool) *bool {
	return &v
}
