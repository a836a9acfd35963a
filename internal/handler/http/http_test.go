package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
	"github.com/jgivc/dltracker/internal/service/download"
	"github.com/jgivc/dltracker/internal/service/lifecycle"
	"github.com/jgivc/dltracker/internal/service/session"
	"github.com/jgivc/dltracker/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend error")

type MockProgressService struct {
	mock.Mock
}

func (m *MockProgressService) Progress(session string, detailed bool) (entity.Progress, error) {
	args := m.Called(session, detailed)

	return args.Get(0).(entity.Progress), args.Error(1)
}

type MockCounterService struct {
	mock.Mock
}

func (m *MockCounterService) GetCounters(ctx context.Context, session string) (*entity.StatCounters, error) {
	args := m.Called(ctx, session)

	if c, ok := args.Get(0).(*entity.StatCounters); ok {
		return c, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockCounterService) Sessions(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	if names, ok := args.Get(0).([]string); ok {
		return names, args.Error(1)
	}

	return nil, args.Error(1)
}

type fakePageService struct {
	content string
	err     error
}

func (f *fakePageService) GetPage(context.Context) (string, error) {
	return f.content, f.err
}

type fakeHost struct {
	sessions map[string]*session.Session
}

func (h *fakeHost) Session(name string) *session.Session {
	if s, exists := h.sessions[name]; exists {
		return s
	}

	s := session.NewSession(name, 1, testutil.Logger())
	h.sessions[name] = s

	return s
}

type fakeDownloadService struct {
	item     entity.Item
	err      error
	url      string
	filename string
	session  download.Session
}

func (f *fakeDownloadService) Download(ctx context.Context, sess download.Session, win entity.Window, url string, opts lifecycle.Options) (entity.Item, error) {
	f.url = url
	f.filename = opts.Filename
	f.session = sess

	return f.item, f.err
}

func serve(h http.Handler, pattern, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.Handle(pattern, h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))

	return rec
}

func TestPageHandler(t *testing.T) {
	const pattern = "GET /{$}"

	rec := serve(NewPageHandler(&fakePageService{content: "<html></html>"}, testutil.Logger()), pattern, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "<html></html>", rec.Body.String())

	rec = serve(NewPageHandler(&fakePageService{err: errBackend}, testutil.Logger()), pattern, http.MethodGet, "/", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProgressHandler(t *testing.T) {
	const pattern = "GET /progress/{session}/{$}"

	testCases := []struct {
		name       string
		target     string
		detailed   bool
		progress   entity.Progress
		err        error
		skipMock   bool
		wantStatus int
	}{
		{name: "detailed by default", target: "/progress/default/", detailed: true, progress: entity.Progress{Fraction: 0.5, Detailed: true, SpeedBitsPerSecond: 800}, wantStatus: http.StatusOK},
		{name: "plain", target: "/progress/default/?detailed=false", progress: entity.Progress{Fraction: 0.25}, wantStatus: http.StatusOK},
		{name: "bad flag", target: "/progress/default/?detailed=maybe", skipMock: true, wantStatus: http.StatusBadRequest},
		{name: "bad name", target: "/progress/a.b/", skipMock: true, wantStatus: http.StatusBadRequest},
		{name: "unknown", target: "/progress/default/", detailed: true, err: common.ErrSessionNotFound, wantStatus: http.StatusNotFound},
		{name: "error", target: "/progress/default/", detailed: true, err: errBackend, wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := new(MockProgressService)
			if !tc.skipMock {
				srv.On("Progress", "default", tc.detailed).Return(tc.progress, tc.err).Once()
			}

			rec := serve(NewProgressHandler(srv, testutil.Logger()), pattern, http.MethodGet, tc.target, "")
			require.Equal(t, tc.wantStatus, rec.Code)

			if tc.wantStatus == http.StatusOK {
				var got entity.Progress
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				require.Equal(t, tc.progress, got)
			}

			srv.AssertExpectations(t)
		})
	}
}

func TestCounterHandler(t *testing.T) {
	const pattern = "GET /stat/{session}/{$}"

	counters := &entity.StatCounters{Session: "default", Started: 2, Completed: 1, Interrupted: 1, CompletedBytes: 10}

	srv := new(MockCounterService)
	srv.On("GetCounters", mock.Anything, "default").Return(counters, nil).Once()
	srv.On("GetCounters", mock.Anything, "broken").Return(nil, errBackend).Once()

	h := NewCounterHandler(srv, testutil.Logger())

	rec := serve(h, pattern, http.MethodGet, "/stat/default/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got entity.StatCounters
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, *counters, got)

	rec = serve(h, pattern, http.MethodGet, "/stat/broken/", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	srv.AssertExpectations(t)
}

func TestStatSessionsHandler(t *testing.T) {
	const pattern = "GET /stat/{$}"

	srv := new(MockCounterService)
	srv.On("Sessions", mock.Anything).Return([]string{"default", "private"}, nil).Once()

	rec := serve(NewStatSessionsHandler(srv, testutil.Logger()), pattern, http.MethodGet, "/stat/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, []string{"default", "private"}, got)

	failing := new(MockCounterService)
	failing.On("Sessions", mock.Anything).Return(nil, errBackend).Once()

	rec = serve(NewStatSessionsHandler(failing, testutil.Logger()), pattern, http.MethodGet, "/stat/", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	srv.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestDownloadHandler(t *testing.T) {
	const pattern = "POST /download/{session}/{$}"

	item := testutil.NewItem("id-1", "file.txt", "text/plain", 4)
	item.SetReceived(4)
	item.SetSavePath("/downloads/file.txt")

	testCases := []struct {
		name       string
		target     string
		body       string
		err        error
		wantStatus int
	}{
		{name: "ok", target: "/download/default/", body: `{"url":"https://example.com/file.txt","filename":"x.txt"}`, wantStatus: http.StatusOK},
		{name: "interrupted", target: "/download/default/", body: `{"url":"https://example.com/file.txt"}`, err: &common.InterruptedError{Message: "The download of file.txt was interrupted"}, wantStatus: http.StatusBadGateway},
		{name: "cancelled", target: "/download/default/", body: `{"url":"https://example.com/file.txt"}`, err: common.ErrDownloadCancelled, wantStatus: http.StatusConflict},
		{name: "closed", target: "/download/default/", body: `{"url":"https://example.com/file.txt"}`, err: common.ErrSessionClosed, wantStatus: http.StatusServiceUnavailable},
		{name: "engine", target: "/download/default/", body: `{"url":"https://example.com/file.txt"}`, err: errBackend, wantStatus: http.StatusBadGateway},
		{name: "bad json", target: "/download/default/", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "bad url", target: "/download/default/", body: `{"url":"ftp://example.com/a"}`, wantStatus: http.StatusBadRequest},
		{name: "bad session", target: "/download/a%20b/", body: `{"url":"https://example.com/a"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			host := &fakeHost{sessions: make(map[string]*session.Session)}
			srv := &fakeDownloadService{item: item, err: tc.err}

			h := NewDownloadHandler(host, srv, lifecycle.DefaultOptions(), nil, testutil.Logger())
			rec := serve(h, pattern, http.MethodPost, tc.target, tc.body)
			require.Equal(t, tc.wantStatus, rec.Code)

			if tc.name == "ok" {
				var got entity.ItemInfo
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				require.Equal(t, entity.InfoOf(item), got)
				require.Equal(t, "https://example.com/file.txt", srv.url)
				require.Equal(t, "x.txt", srv.filename)
				require.Same(t, host.sessions["default"], srv.session)
			}

			if tc.name == "interrupted" {
				require.Contains(t, rec.Body.String(), "The download of file.txt was interrupted")
			}
		})
	}
}

func TestValidURL(t *testing.T) {
	require.True(t, validURL("http://example.com/a"))
	require.True(t, validURL("https://example.com"))
	require.False(t, validURL("example.com/a"))
	require.False(t, validURL("file:///etc/passwd"))
	require.False(t, validURL(""))
}
