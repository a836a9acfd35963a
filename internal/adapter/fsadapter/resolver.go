package fsadapter

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "embed"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	defaultFileName = "download"
	maxAttempts     = 10000
)

var (
	//go:embed mimetypes.yml
	defaultMimeTypes []byte
)

type fileResolver struct {
	fs    afero.Fs
	types map[string][]string

	mu       sync.Mutex
	reserved map[string]struct{}

	log *slog.Logger
}

func NewFileResolver(mimeTypesFile string, log *slog.Logger) (*fileResolver, error) {
	return NewFileResolverWithFS(afero.NewOsFs(), mimeTypesFile, log)
}

// NewFileResolverWithFS builds a resolver on fs. Entries of mimeTypesFile, if given,
// are merged over the embedded table.
func NewFileResolverWithFS(fs afero.Fs, mimeTypesFile string, log *slog.Logger) (*fileResolver, error) {
	types, err := parseMimeTypes(defaultMimeTypes)
	if err != nil {
		return nil, fmt.Errorf("cannot parse default mime types: %w", err)
	}

	if mimeTypesFile != "" {
		content, err := afero.ReadFile(fs, mimeTypesFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read mime types file: %s: %w", mimeTypesFile, err)
		}

		extra, err := parseMimeTypes(content)
		if err != nil {
			return nil, fmt.Errorf("cannot parse mime types file: %s: %w", mimeTypesFile, err)
		}

		for mimeType, exts := range extra {
			types[mimeType] = exts
		}
	}

	return &fileResolver{
		fs:       fs,
		types:    types,
		reserved: make(map[string]struct{}),
		log:      log.With(slog.String("item", "FileResolver")),
	}, nil
}

/*
Resolve returns the path an item should be saved to.
 1. explicitName is joined to directory as is, an existing file is overwritten.
 2. suggestedName without an extension gets one from mimeType when the type maps to exactly one extension.
 3. If the path is taken, "name (N).ext" is tried with N = 1, 2, ...

A path from 2 or 3 counts as taken until Release is called with it, so items
started side by side never share a file.
*/
func (r *fileResolver) Resolve(directory, explicitName, suggestedName, mimeType string) (string, error) {
	if explicitName != "" {
		return filepath.Join(directory, explicitName), nil
	}

	name := filepath.Base(suggestedName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = defaultFileName
	}

	if !hasExtension(name) {
		name = r.nameFromMime(name, mimeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.unusedPath(filepath.Join(directory, name))
	if err != nil {
		r.log.Error("Cannot find unused filename", slog.String("directory", directory), slog.String("name", name), slog.Any("error", err))

		return "", err
	}

	r.reserved[path] = struct{}{}

	return path, nil
}

// Release frees a path returned by Resolve. A file written to it keeps it taken.
func (r *fileResolver) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.reserved, path)
}

// Extensions returns the known extensions of mimeType. Types missing from the
// table are looked up in the system MIME database.
func (r *fileResolver) Extensions(mimeType string) []string {
	mimeType = normalizeMimeType(mimeType)
	if exts, exists := r.types[mimeType]; exists {
		return exts
	}

	if mimeType == "" {
		return nil
	}

	sysExts, err := mime.ExtensionsByType(mimeType)
	if err != nil {
		r.log.Debug("Cannot look up mime type", slog.String("mime", mimeType), slog.Any("error", err))

		return nil
	}

	exts := make([]string, 0, len(sysExts))
	for _, ext := range sysExts {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}

	return exts
}

func (r *fileResolver) nameFromMime(name, mimeType string) string {
	exts := r.Extensions(mimeType)
	if len(exts) != 1 {
		return name
	}

	return name + "." + exts[0]
}

func (r *fileResolver) unusedPath(path string) (string, error) {
	if !r.taken(path) {
		return path, nil
	}

	ext := filepath.Ext(path)
	if !hasExtension(filepath.Base(path)) {
		ext = ""
	}
	base := strings.TrimSuffix(path, ext)

	for n := 1; n <= maxAttempts; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !r.taken(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no unused filename for %s after %d attempts", path, maxAttempts)
}

func (r *fileResolver) taken(path string) bool {
	if _, exists := r.reserved[path]; exists {
		return true
	}

	return r.fileExists(path)
}

func (r *fileResolver) fileExists(path string) bool {
	_, err := r.fs.Stat(path)
	if err == nil {
		return true
	}

	if os.IsNotExist(err) {
		return false
	}

	r.log.Debug("Cannot stat path", slog.String("path", path), slog.Any("error", err))

	return false
}

func parseMimeTypes(content []byte) (map[string][]string, error) {
	raw := make(map[string][]string)
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, err
	}

	types := make(map[string][]string, len(raw))
	for mimeType, exts := range raw {
		types[normalizeMimeType(mimeType)] = exts
	}

	return types, nil
}

func normalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}

	return strings.ToLower(strings.TrimSpace(mimeType))
}

// hasExtension reports whether name has an extension. Dotfiles like ".bashrc" do not.
func hasExtension(name string) bool {
	ext := filepath.Ext(name)

	return ext != "" && ext != name
}
