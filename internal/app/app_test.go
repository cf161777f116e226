package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.aimuz.me/orb/config"
	"go.aimuz.me/orb/internal/types"
	"go.aimuz.me/orb/statusserver"
)

type emitted struct {
	name string
	data any
}

// eventLog records everything the service emits to the frontend.
type eventLog struct {
	mu     sync.Mutex
	events []emitted
}

func (l *eventLog) emit(name string, data any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, emitted{name: name, data: data})
}

func (l *eventLog) named(name string) []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []any
	for _, e := range l.events {
		if e.name == name {
			out = append(out, e.data)
		}
	}
	return out
}

type window struct {
	mu      sync.Mutex
	ignores []bool
}

func (w *window) setIgnore(ignore bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignores = append(w.ignores, ignore)
}

func (w *window) last() (bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ignores) == 0 {
		return false, false
	}
	return w.ignores[len(w.ignores)-1], true
}

func newTestService(t *testing.T, push bool) (*Service, *statusserver.Server, *eventLog, *window) {
	t.Helper()

	srv := statusserver.New()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.StatusURL = ts.URL
	cfg.PollInterval = config.Duration(10 * time.Millisecond)
	cfg.PollTimeout = config.Duration(10 * time.Millisecond)
	cfg.RevealSpeed = config.Duration(time.Millisecond)
	cfg.Push = push
	if push {
		cfg.PollInterval = config.Duration(time.Hour)
	}

	log := &eventLog{}
	win := &window{}
	s := New("test")
	require.NoError(t, s.start(cfg, log.emit, win.setIgnore))
	t.Cleanup(s.Shutdown)
	return s, srv, log, win
}

func waitState(t *testing.T, s *Service, want types.OverlayState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.GetState().State == want.String()
	}, 3*time.Second, 5*time.Millisecond, "state never became %s", want)
}

func TestService_FollowsServedState(t *testing.T) {
	s, srv, log, _ := newTestService(t, false)
	waitState(t, s, types.StateIdle)

	_, err := srv.SetState(types.StateSpeaking)
	require.NoError(t, err)
	waitState(t, s, types.StateSpeaking)
	assert.Equal(t, "SPEAKING", s.GetState().Label)

	_, _ = srv.SetState(types.StateError)
	waitState(t, s, types.StateError)
	assert.False(t, s.GetState().Online)

	views := log.named(EventOverlayView)
	assert.NotEmpty(t, views)
}

func TestService_FollowsPushFeed(t *testing.T) {
	s, srv, _, _ := newTestService(t, true)
	waitState(t, s, types.StateIdle)

	// Polling is effectively off, so this can only arrive by push.
	require.Eventually(t, func() bool {
		_, _ = srv.SetState(types.StateListening)
		return s.GetState().State == "listening"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestService_Submit(t *testing.T) {
	s, srv, log, _ := newTestService(t, false)
	waitState(t, s, types.StateIdle)

	require.NoError(t, s.Submit("open the browser"))

	select {
	case cmd := <-srv.Commands():
		assert.Equal(t, "open the browser", cmd.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("command never reached the server")
	}
	waitState(t, s, types.StateThinking)
	assert.Contains(t, log.named(EventOverlayCaption),
		any(types.CaptionView{Role: types.RoleUser, Text: "open the browser"}))
}

func TestService_Interaction(t *testing.T) {
	s, _, log, win := newTestService(t, false)

	require.NoError(t, s.EnableInteraction())
	assert.True(t, s.IsInteractive())
	ignore, ok := win.last()
	require.True(t, ok)
	assert.False(t, ignore)

	require.NoError(t, s.ToggleInteraction())
	assert.False(t, s.IsInteractive())
	ignore, _ = win.last()
	assert.True(t, ignore)

	assert.Contains(t, log.named(EventInteractionView), any(true))
}

func TestService_HostToggleIsPushed(t *testing.T) {
	s, _, _, _ := newTestService(t, false)

	require.NoError(t, s.host.Toggle(context.Background()))
	assert.True(t, s.IsInteractive())
	require.NoError(t, s.host.Toggle(context.Background()))
	assert.False(t, s.IsInteractive())
}

func TestService_KeysAndClicks(t *testing.T) {
	s, _, _, _ := newTestService(t, false)
	waitState(t, s, types.StateIdle)

	// Click-through ignores input.
	s.Click()
	require.NoError(t, s.KeyDown(" "))
	assert.Never(t, func() bool { return s.GetState().State != "idle" }, 50*time.Millisecond, 5*time.Millisecond)

	require.NoError(t, s.EnableInteraction())
	s.Click()
	waitState(t, s, types.StateListening)

	require.NoError(t, s.KeyDown("Escape"))
	assert.False(t, s.IsInteractive())
}

func TestService_SetOverlayState(t *testing.T) {
	s, _, _, _ := newTestService(t, false)

	err := s.SetOverlayState("dancing")
	assert.True(t, errors.Is(err, types.ErrUnknownState))

	require.NoError(t, s.SetOverlayState("speaking"))
	waitState(t, s, types.StateSpeaking)
}

func TestService_ApplyConfig(t *testing.T) {
	s, _, _, _ := newTestService(t, false)
	_ = s.SetOverlayState("thinking")
	waitState(t, s, types.StateThinking)

	cfg := config.Default()
	cfg.StatusURL = s.cfg.StatusURL
	cfg.Labels = map[string]string{"thinking": "Hmm"}
	s.applyConfig(cfg)

	require.Eventually(t, func() bool {
		return s.GetState().Label == "Hmm"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestService_NotStarted(t *testing.T) {
	s := New("test")

	assert.Equal(t, types.StateIdle.String(), s.GetState().State)
	assert.False(t, s.IsInteractive())
	assert.NotPanics(t, s.Click)
	assert.ErrorIs(t, s.SetOverlayState("speaking"), ErrNotStarted)
	assert.ErrorIs(t, s.Submit("hello"), ErrNotStarted)
	assert.ErrorIs(t, s.EnableInteraction(), ErrNotStarted)
	assert.ErrorIs(t, s.DisableInteraction(), ErrNotStarted)
	assert.ErrorIs(t, s.ToggleInteraction(), ErrNotStarted)
	assert.ErrorIs(t, s.DoubleClick(), ErrNotStarted)
	assert.ErrorIs(t, s.KeyDown("Escape"), ErrNotStarted)
	assert.NotPanics(t, func() { s.applyConfig(config.Default()) })
	assert.NotPanics(t, s.Shutdown)
}

func TestService_ApplyConfigPollTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		_, _ = io.WriteString(w, "speaking")
	}))
	t.Cleanup(slow.Close)

	cfg := config.Default()
	cfg.StatusURL = slow.URL
	cfg.PollInterval = config.Duration(10 * time.Millisecond)
	cfg.PollTimeout = config.Duration(10 * time.Millisecond)

	log := &eventLog{}
	s := New("test")
	require.NoError(t, s.start(cfg, log.emit, (&window{}).setIgnore))
	t.Cleanup(s.Shutdown)

	assert.Never(t, func() bool {
		return s.GetState().State == types.StateSpeaking.String()
	}, 150*time.Millisecond, 10*time.Millisecond, "replies slower than the timeout must not apply")

	next := *cfg
	next.PollInterval = config.Duration(200 * time.Millisecond)
	next.PollTimeout = config.Duration(200 * time.Millisecond)
	s.applyConfig(&next)
	waitState(t, s, types.StateSpeaking)
}
