package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/orb/config"
	"go.aimuz.me/orb/hotkey"
	"go.aimuz.me/orb/internal/types"
	"go.aimuz.me/orb/overlay"
	"go.aimuz.me/orb/statusclient"
)

// requestTimeout bounds calls made on behalf of the frontend.
const requestTimeout = 5 * time.Second

// ErrNotStarted is returned by bound methods when the overlay failed to start.
var ErrNotStarted = errors.New("overlay not started")

// Service provides overlay functionality bound to Wails.
// This struct wires components together; state handling lives in overlay.
type Service struct {
	cfg    *config.Config
	hotkey *hotkey.Manager

	// UI references - set via Init
	app    *application.App
	window application.Window

	view   *EventPresenter
	host   *WindowHost
	client *statusclient.Client
	orb    *overlay.Synchronizer

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after Wails app is created.
func New(version string) *Service {
	return &Service{version: version}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and window references.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}

	setIgnore := func(ignore bool) {
		if s.window != nil {
			s.window.SetIgnoreMouseEvents(ignore)
		}
	}
	if err := s.start(cfg, s.emit, setIgnore); err != nil {
		slog.Error("start overlay", "error", err)
		return
	}

	// Host pushes may also arrive as application events.
	app.Event.On(EventOverlayState, func(e *application.CustomEvent) {
		if token, ok := e.Data.(string); ok {
			s.orb.Push(token)
		}
	})

	s.setupHotkey()
	s.setupWatcher()
}

// start builds the overlay and runs its synchronizer in the background.
func (s *Service) start(cfg *config.Config, emit func(string, any), setIgnore func(bool)) error {
	s.cfg = cfg
	s.view = NewEventPresenter(emit)
	s.client = statusclient.New(cfg.StatusURL)

	s.host = NewWindowHost(setIgnore, func(interactive bool) {
		s.orb.PushInteractionMode(interactive)
	})

	ocfg := cfg.OverlayConfig()
	ocfg.Source = s.client
	ocfg.Ingestor = s.client
	ocfg.Host = s.host
	ocfg.Presenter = s.view

	synchronizer, err := overlay.New(ocfg)
	if err != nil {
		return fmt.Errorf("create synchronizer: %w", err)
	}
	s.orb = synchronizer

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Go(func() {
		if err := synchronizer.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("run synchronizer", "error", err)
		}
	})
	if cfg.Push {
		s.wg.Go(func() {
			_ = s.client.Subscribe(ctx, time.Second, synchronizer.Push)
		})
	}

	slog.Info("overlay started", "status_url", cfg.StatusURL, "push", cfg.Push)
	return nil
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) setupHotkey() {
	if s.cfg.Hotkey == "" {
		return
	}
	m, err := hotkey.NewManager(s.cfg.Hotkey, func() {
		// Run in goroutine to not block the hotkey listener
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if err := s.host.Toggle(ctx); err != nil {
				slog.Error("toggle interaction from hotkey", "error", err)
			}
		}()
	})
	if err != nil {
		slog.Error("parse hotkey", "error", err)
		return
	}
	s.hotkey = m

	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

func (s *Service) setupWatcher() {
	path, err := config.Path()
	if err != nil {
		slog.Error("get config path", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := s.cancel
	s.cancel = func() {
		cancel()
		prev()
	}

	w := config.NewWatcher(path, s.applyConfig)
	s.wg.Go(func() {
		if err := w.Run(ctx); err != nil {
			slog.Warn("watch config", "error", err)
		}
	})
}

func (s *Service) applyConfig(cfg *config.Config) {
	if s.cfg != nil && (cfg.StatusURL != s.cfg.StatusURL || cfg.Push != s.cfg.Push || cfg.Hotkey != s.cfg.Hotkey) {
		slog.Warn("config change needs restart", "status_url", cfg.StatusURL)
	}
	if s.orb == nil {
		return
	}
	s.orb.Reconfigure(cfg.OverlayConfig())
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// OnLabel forwards every shown state label to fn, e.g. the tray title.
func (s *Service) OnLabel(fn func(label string)) {
	if s.view != nil {
		s.view.OnLabel(fn)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Overlay state
// ─────────────────────────────────────────────────────────────────────────────

// GetState returns the displayed overlay state.
func (s *Service) GetState() types.OverlayView {
	if s.view == nil {
		return types.OverlayView{State: types.StateIdle.String()}
	}
	return s.view.View()
}

// SetOverlayState pushes a state from the host side.
func (s *Service) SetOverlayState(state string) error {
	if _, err := types.ParseState(state); err != nil {
		return err
	}
	if s.orb == nil {
		return ErrNotStarted
	}
	s.orb.Push(state)
	return nil
}

// Submit sends typed text to the assistant.
func (s *Service) Submit(text string) error {
	if s.orb == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return s.orb.Submit(ctx, text)
}

// ─────────────────────────────────────────────────────────────────────────────
// Interaction
// ─────────────────────────────────────────────────────────────────────────────

// IsInteractive reports the confirmed interaction mode.
func (s *Service) IsInteractive() bool {
	return s.orb != nil && s.orb.Interactive()
}

// EnableInteraction makes the overlay accept input.
func (s *Service) EnableInteraction() error {
	return s.requestInteraction(true)
}

// DisableInteraction returns the overlay to click-through.
func (s *Service) DisableInteraction() error {
	return s.requestInteraction(false)
}

// ToggleInteraction flips the interaction mode.
func (s *Service) ToggleInteraction() error {
	if s.orb == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return s.orb.ToggleInteraction(ctx)
}

func (s *Service) requestInteraction(enable bool) error {
	if s.orb == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return s.orb.RequestInteractionMode(ctx, enable)
}

// Click handles a click on the orb.
func (s *Service) Click() {
	if s.orb != nil {
		s.orb.HandleClick()
	}
}

// DoubleClick handles a double click on the orb.
func (s *Service) DoubleClick() error {
	if s.orb == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return s.orb.HandleDoubleClick(ctx)
}

// KeyDown handles a key pressed while the overlay has focus.
func (s *Service) KeyDown(key string) error {
	if s.orb == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return s.orb.HandleKey(ctx, key)
}
