package fsadapter

import (
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testDir = "/downloads"

func newTestResolver(t *testing.T, fs afero.Fs, mimeTypesFile string) *fileResolver {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	r, err := NewFileResolverWithFS(fs, mimeTypesFile, log)
	require.NoError(t, err)

	return r
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name         string
		existing     []string
		explicitName string
		suggested    string
		mime         string
		expected     string
	}{
		{
			name:      "Suggested name with extension",
			suggested: "report.pdf",
			mime:      "application/octet-stream",
			expected:  "report.pdf",
		},
		{
			name:      "Single extension for mime",
			suggested: "image",
			mime:      "image/png",
			expected:  "image.png",
		},
		{
			name:      "Several extensions for mime",
			suggested: "image",
			mime:      "image/jpeg",
			expected:  "image",
		},
		{
			name:      "Unknown mime",
			suggested: "image",
			mime:      "application/x-unknown",
			expected:  "image",
		},
		{
			name:      "Mime with parameters",
			suggested: "data",
			mime:      "Application/JSON; charset=utf-8",
			expected:  "data",
		},
		{
			name:      "Mime with parameters and one extension",
			suggested: "page",
			mime:      "text/CSV; charset=utf-8",
			expected:  "page.csv",
		},
		{
			name:      "Dotfile has no extension",
			suggested: ".bashrc",
			mime:      "application/pdf",
			expected:  ".bashrc.pdf",
		},
		{
			name:      "Collision",
			existing:  []string{"report.pdf"},
			suggested: "report.pdf",
			expected:  "report (1).pdf",
		},
		{
			name:      "Several collisions",
			existing:  []string{"report.pdf", "report (1).pdf", "report (2).pdf"},
			suggested: "report.pdf",
			expected:  "report (3).pdf",
		},
		{
			name:      "Collision without extension",
			existing:  []string{"README"},
			suggested: "README",
			expected:  "README (1)",
		},
		{
			name:      "Collision after mime extension",
			existing:  []string{"image.png"},
			suggested: "image",
			mime:      "image/png",
			expected:  "image (1).png",
		},
		{
			name:         "Explicit name overwrites",
			existing:     []string{"fixed.bin"},
			explicitName: "fixed.bin",
			suggested:    "ignored.txt",
			expected:     "fixed.bin",
		},
		{
			name:      "Path components are dropped",
			suggested: "../../etc/passwd",
			expected:  "passwd",
		},
		{
			name:     "Empty suggested name",
			mime:     "application/zip",
			expected: "download.zip",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll(testDir, 0o755))

			for _, name := range tc.existing {
				require.NoError(t, afero.WriteFile(fs, filepath.Join(testDir, name), []byte("x"), 0o644))
			}

			r := newTestResolver(t, fs, "")

			path, err := r.Resolve(testDir, tc.explicitName, tc.suggested, tc.mime)
			require.NoError(t, err)
			require.Equal(t, filepath.Join(testDir, tc.expected), path)
		})
	}
}

func TestResolveWithMimeTypesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/mimetypes.yml", []byte("image/jpeg: [jpg]\napplication/x-custom: [cst]\n"), 0o644))

	r := newTestResolver(t, fs, "/etc/mimetypes.yml")

	path, err := r.Resolve(testDir, "", "photo", "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDir, "photo.jpg"), path)

	path, err = r.Resolve(testDir, "", "thing", "application/x-custom")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDir, "thing.cst"), path)

	require.Equal(t, []string{"png"}, r.Extensions("image/png"))
}

func TestResolveReservesPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestResolver(t, fs, "")

	first, err := r.Resolve(testDir, "", "report.pdf", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDir, "report.pdf"), first)

	second, err := r.Resolve(testDir, "", "report.pdf", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDir, "report (1).pdf"), second)

	r.Release(first)
	again, err := r.Resolve(testDir, "", "report.pdf", "")
	require.NoError(t, err)
	require.Equal(t, first, again)

	// a written file stays taken after release
	require.NoError(t, afero.WriteFile(fs, second, []byte("x"), 0o644))
	r.Release(second)
	third, err := r.Resolve(testDir, "", "report.pdf", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDir, "report (2).pdf"), third)
}

func TestResolveConcurrent(t *testing.T) {
	r := newTestResolver(t, afero.NewMemMapFs(), "")

	const n = 20
	paths := make([]string, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			path, err := r.Resolve(testDir, "", "data.bin", "")
			if err == nil {
				paths[i] = path
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, path := range paths {
		require.NotEmpty(t, path)
		require.False(t, seen[path], path)
		seen[path] = true
	}
}

func TestExtensionsFallBackToSystemTypes(t *testing.T) {
	require.NoError(t, mime.AddExtensionType(".dltest", "application/x-dltracker-test"))

	r := newTestResolver(t, afero.NewMemMapFs(), "")
	require.Equal(t, []string{"dltest"}, r.Extensions("application/x-dltracker-test"))
	require.Empty(t, r.Extensions(""))

	path, err := r.Resolve(testDir, "", "thing", "application/x-dltracker-test")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(testDir, "thing.dltest"), path)
}

func TestResolveMissingMimeTypesFile(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	_, err := NewFileResolverWithFS(afero.NewMemMapFs(), "/nope.yml", log)
	require.Error(t, err)
}
