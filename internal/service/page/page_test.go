package page

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jgivc/dltracker/internal/common"
	"github.com/jgivc/dltracker/internal/entity"
	"github.com/jgivc/dltracker/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errRender = errors.New("render error")

type staticSessions []string

func (s staticSessions) Names() []string { return s }

type MockProgressService struct {
	mock.Mock
}

func (m *MockProgressService) Progress(session string, detailed bool) (entity.Progress, error) {
	args := m.Called(session, detailed)

	return args.Get(0).(entity.Progress), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Parse(page *entity.StatusPage) (string, error) {
	args := m.Called(page)

	return args.String(0), args.Error(1)
}

func TestGetPage(t *testing.T) {
	clock := testutil.NewClock()

	progress := new(MockProgressService)
	progress.On("Progress", "default", true).Return(entity.Progress{Fraction: 0.5, Detailed: true}, nil)
	progress.On("Progress", "bare", true).Return(entity.Progress{}, common.ErrSessionNotFound)
	progress.On("Progress", "broken", true).Return(entity.Progress{}, errRender)

	want := &entity.StatusPage{
		Title:     "Downloads",
		Sessions:  []entity.SessionStatus{{Name: "default", Progress: entity.Progress{Fraction: 0.5, Detailed: true}}},
		Generated: clock.Now(),
	}

	tpl := new(MockRenderer)
	tpl.On("Parse", want).Return("<html></html>", nil).Once()

	srv := NewPageService(staticSessions{"bare", "broken", "default"}, progress, tpl, "Downloads", testutil.Logger())
	srv.now = clock.Now

	content, err := srv.GetPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, "<html></html>", content)

	tpl.AssertExpectations(t)
}

func TestGetPageRenderError(t *testing.T) {
	tpl := new(MockRenderer)
	tpl.On("Parse", mock.Anything).Return("", errRender).Once()

	srv := NewPageService(staticSessions{}, new(MockProgressService), tpl, "Downloads", testutil.Logger())

	_, err := srv.GetPage(context.Background())
	require.ErrorIs(t, err, errRender)
}

func TestGetPageContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := NewPageService(staticSessions{"default"}, new(MockProgressService), new(MockRenderer), "Downloads", testutil.Logger())
	srv.now = func() time.Time { return time.Time{} }

	_, err := srv.GetPage(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
