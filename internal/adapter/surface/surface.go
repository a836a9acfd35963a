package surface

import "github.com/jgivc/dltracker/internal/entity"

const (
	// IndicatorClear removes a window progress bar.
	IndicatorClear = -1.0
	// IndicatorIndeterminate switches a progress bar to indeterminate mode.
	IndicatorIndeterminate = 2.0
)

// Badge shows the number of active downloads on a dock or taskbar icon.
type Badge interface {
	SetBadgeCount(count int)
}

type Dialog interface {
	ShowErrorDialog(title, message string)
}

type Shell interface {
	RevealInFolder(path string)
}

// Dock marks finished downloads (bounces the downloads stack and the like).
type Dock interface {
	MarkDownloadFinished(path string)
}

// Platform bundles the process wide presentation capabilities. A nil field means
// the capability does not exist; WithDefaults replaces it with a no-op.
type Platform struct {
	Badge  Badge
	Dialog Dialog
	Shell  Shell
	Dock   Dock
}

func (p Platform) WithDefaults() Platform {
	if p.Badge == nil {
		p.Badge = Noop{}
	}
	if p.Dialog == nil {
		p.Dialog = Noop{}
	}
	if p.Shell == nil {
		p.Shell = Noop{}
	}
	if p.Dock == nil {
		p.Dock = Noop{}
	}

	return p
}

// Combine fans every capability out to all platforms that provide it.
func Combine(platforms ...Platform) Platform {
	var (
		badges  multiBadge
		dialogs multiDialog
		shells  multiShell
		docks   multiDock
	)

	for _, p := range platforms {
		if p.Badge != nil {
			badges = append(badges, p.Badge)
		}
		if p.Dialog != nil {
			dialogs = append(dialogs, p.Dialog)
		}
		if p.Shell != nil {
			shells = append(shells, p.Shell)
		}
		if p.Dock != nil {
			docks = append(docks, p.Dock)
		}
	}

	var out Platform
	if len(badges) > 0 {
		out.Badge = badges
	}
	if len(dialogs) > 0 {
		out.Dialog = dialogs
	}
	if len(shells) > 0 {
		out.Shell = shells
	}
	if len(docks) > 0 {
		out.Dock = docks
	}

	return out
}

// CombineWindows returns a window that writes to all alive windows in ws and is
// destroyed once all of them are.
func CombineWindows(ws ...entity.Window) entity.Window {
	var out multiWindow
	for _, w := range ws {
		if w != nil {
			out = append(out, w)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// Alive reports whether a progress bar can be written to w.
func Alive(w entity.Window) bool {
	return w != nil && !w.IsDestroyed()
}

type Noop struct{}

func (Noop) SetBadgeCount(int)              {}
func (Noop) ShowErrorDialog(string, string) {}
func (Noop) RevealInFolder(string)          {}
func (Noop) MarkDownloadFinished(string)    {}
func (Noop) SetProgressBar(float64)         {}
func (Noop) IsDestroyed() bool              { return false }

type multiBadge []Badge

func (m multiBadge) SetBadgeCount(count int) {
	for _, b := range m {
		b.SetBadgeCount(count)
	}
}

type multiDialog []Dialog

func (m multiDialog) ShowErrorDialog(title, message string) {
	for _, d := range m {
		d.ShowErrorDialog(title, message)
	}
}

type multiShell []Shell

func (m multiShell) RevealInFolder(path string) {
	for _, s := range m {
		s.RevealInFolder(path)
	}
}

type multiDock []Dock

func (m multiDock) MarkDownloadFinished(path string) {
	for _, d := range m {
		d.MarkDownloadFinished(path)
	}
}

type multiWindow []entity.Window

func (m multiWindow) SetProgressBar(fraction float64) {
	for _, w := range m {
		if !w.IsDestroyed() {
			w.SetProgressBar(fraction)
		}
	}
}

func (m multiWindow) IsDestroyed() bool {
	for _, w := range m {
		if !w.IsDestroyed() {
			return false
		}
	}

	return true
}
