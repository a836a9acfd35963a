package surface

import (
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
)

// SystemShell reveals files with the desktop's file manager.
type SystemShell struct {
	goos string
	run  func(name string, args ...string) error
	log  *slog.Logger
}

func NewSystemShell(log *slog.Logger) *SystemShell {
	return &SystemShell{
		goos: runtime.GOOS,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
		log: log.With(slog.String("item", "SystemShell")),
	}
}

func (s *SystemShell) RevealInFolder(path string) {
	name, args := revealCommand(s.goos, path)
	if name == "" {
		s.log.Debug("Reveal is not supported", slog.String("os", s.goos))

		return
	}

	if err := s.run(name, args...); err != nil {
		s.log.Error("Cannot reveal file", slog.String("path", path), slog.Any("error", err))
	}
}

func revealCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{"-R", path}
	case "windows":
		return "explorer", []string{"/select," + path}
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{filepath.Dir(path)}
	}

	return "", nil
}
