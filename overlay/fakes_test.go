package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.aimuz.me/orb/internal/types"
)

// recordingPresenter tracks which state hooks are active, the way the DOM
// tracks classes on the orb.
type recordingPresenter struct {
	mu          sync.Mutex
	active      map[types.OverlayState]bool
	label       string
	online      bool
	shows       int
	captions    []types.CaptionView
	interactive []bool
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{active: make(map[types.OverlayState]bool)}
}

func (p *recordingPresenter) ClearStates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.active)
}

func (p *recordingPresenter) ShowState(state types.OverlayState, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[state] = true
	p.label = label
	p.shows++
}

func (p *recordingPresenter) SetOnline(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

func (p *recordingPresenter) ShowCaption(role types.CaptionRole, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captions = append(p.captions, types.CaptionView{Role: role, Text: text})
}

func (p *recordingPresenter) ShowInteractive(interactive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interactive = append(p.interactive, interactive)
}

func (p *recordingPresenter) activeStates() []types.OverlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.OverlayState
	for _, s := range types.States() {
		if p.active[s] {
			out = append(out, s)
		}
	}
	return out
}

func (p *recordingPresenter) showCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shows
}

func (p *recordingPresenter) currentLabel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label
}

func (p *recordingPresenter) captionLog() []types.CaptionView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.CaptionView(nil), p.captions...)
}

func (p *recordingPresenter) lastCaption(role types.CaptionRole) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.captions) - 1; i >= 0; i-- {
		if p.captions[i].Role == role {
			return p.captions[i].Text
		}
	}
	return ""
}

func (p *recordingPresenter) interactiveLog() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.interactive...)
}

type fetchResult struct {
	token string
	err   error
}

type pendingFetch struct {
	reply chan fetchResult
}

func (p *pendingFetch) respond(token string, err error) {
	p.reply <- fetchResult{token: token, err: err}
}

// scriptedSource hands every Fetch to the test, which answers it whenever
// it likes. This lets a test deliver poll replies out of order.
type scriptedSource struct {
	calls chan *pendingFetch
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{calls: make(chan *pendingFetch, 16)}
}

func (s *scriptedSource) Fetch(ctx context.Context) (string, error) {
	p := &pendingFetch{reply: make(chan fetchResult, 1)}
	select {
	case s.calls <- p:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-p.reply:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *scriptedSource) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-s.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll")
		return nil
	}
}

type fakeHost struct {
	mu      sync.Mutex
	err     error
	enables int
	disable int
}

func (h *fakeHost) EnableInteraction(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enables++
	return h.err
}

func (h *fakeHost) DisableInteraction(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disable++
	return h.err
}

type fakeIngestor struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (f *fakeIngestor) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

var errUnreachable = errors.New("connection refused")

// harness runs a Synchronizer whose ticker never fires on its own; polls are
// issued with pollNow and every handled update is reported on handled.
type harness struct {
	t       *testing.T
	sync    *Synchronizer
	view    *recordingPresenter
	source  *scriptedSource
	host    *fakeHost
	ingest  *fakeIngestor
	handled chan Update
	cancel  context.CancelFunc
	stopped chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		view:    newRecordingPresenter(),
		source:  newScriptedSource(),
		host:    &fakeHost{},
		ingest:  &fakeIngestor{},
		handled: make(chan Update, 64),
		stopped: make(chan struct{}),
	}

	s, err := New(Config{
		Source:       h.source,
		Ingestor:     h.ingest,
		Host:         h.host,
		Presenter:    h.view,
		PollInterval: time.Hour,
		PollTimeout:  time.Hour,
		RevealSpeed:  time.Millisecond,
	})
	require.NoError(t, err)
	s.afterHandle = func(u Update) { h.handled <- u }
	h.sync = s

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.stopped)
		_ = s.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.stopped
}

func (h *harness) pollNow() *pendingFetch {
	h.t.Helper()
	h.sync.trigger <- struct{}{}
	return h.source.next(h.t)
}

func (h *harness) waitHandled() Update {
	h.t.Helper()
	select {
	case u := <-h.handled:
		return u
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for update")
		return Update{}
	}
}
