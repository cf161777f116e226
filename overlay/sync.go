package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.aimuz.me/orb/internal/types"
)

// StatusSource reads the backend's current state token.
type StatusSource interface {
	Fetch(ctx context.Context) (string, error)
}

// Ingestor delivers user-entered command text to the backend.
type Ingestor interface {
	Send(ctx context.Context, text string) error
}

// Host toggles the overlay window between interactive and click-through.
type Host interface {
	EnableInteraction(ctx context.Context) error
	DisableInteraction(ctx context.Context) error
}

// Source identifies where an update came from.
type Source uint8

const (
	SourcePoll Source = iota
	SourcePush
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourcePoll:
		return "poll"
	case SourcePush:
		return "push"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Update is one state observation queued for the consumer.
type Update struct {
	Seq    uint64
	Source Source
	Token  string
	Err    error // poll failure

	// next computes the target state from the current one for local actions.
	next func(types.OverlayState) (types.OverlayState, bool)
}

// Config holds configuration for a Synchronizer.
type Config struct {
	Source    StatusSource
	Ingestor  Ingestor
	Host      Host
	Presenter Presenter

	PollInterval time.Duration
	PollTimeout  time.Duration
	RevealSpeed  time.Duration
	Labels       Labels
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		PollInterval: 100 * time.Millisecond,
		PollTimeout:  100 * time.Millisecond,
		RevealSpeed:  DefaultRevealSpeed,
		Labels:       DefaultLabels(),
	}
}

// Errors returned by the Synchronizer.
var (
	ErrNoIngestor = errors.New("no ingestor configured")
	ErrNoHost     = errors.New("no host configured")
)

// Synchronizer merges polled and pushed state into one Model.
//
// Producers only enqueue; a single consumer started by Run applies updates,
// so the Model has exactly one writer.
type Synchronizer struct {
	status StatusSource
	ingest Ingestor
	host   Host
	view   Presenter

	model   *Model
	caption *Caption

	seq        atomic.Uint64
	applied    uint64 // consumer only
	polled     uint64 // newest poll reply handled, failed or not; consumer only
	lastRemote string // consumer only

	pollTimeout atomic.Int64
	interval    atomic.Int64

	imu         sync.Mutex
	interactive bool

	updates  chan Update
	trigger  chan struct{}
	reconfig chan func()
	done     chan struct{}
	stopOnce sync.Once

	// afterHandle observes every handled update; tests only.
	afterHandle func(Update)
}

// New creates a Synchronizer. Zero timings take their defaults.
func New(cfg Config) (*Synchronizer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("status source required")
	}
	if cfg.Presenter == nil {
		return nil, fmt.Errorf("presenter required")
	}

	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.RevealSpeed <= 0 {
		cfg.RevealSpeed = def.RevealSpeed
	}
	if cfg.Labels == nil {
		cfg.Labels = def.Labels
	}

	s := &Synchronizer{
		status:     cfg.Source,
		ingest:     cfg.Ingestor,
		host:       cfg.Host,
		view:       cfg.Presenter,
		model:      NewModel(cfg.Presenter, cfg.Labels),
		caption:    NewCaption(cfg.Presenter, cfg.RevealSpeed),
		lastRemote: types.StateIdle.String(),
		updates:    make(chan Update, 64),
		trigger:    make(chan struct{}),
		reconfig:   make(chan func(), 4),
		done:       make(chan struct{}),
	}
	s.interval.Store(int64(cfg.PollInterval))
	s.pollTimeout.Store(int64(cfg.PollTimeout))
	return s, nil
}

// State returns the displayed overlay state.
func (s *Synchronizer) State() types.OverlayState {
	return s.model.Current()
}

// Caption returns the caption component.
func (s *Synchronizer) Caption() *Caption {
	return s.caption
}

// Run polls the status source and applies updates until ctx is cancelled.
// It returns once every poll it issued has finished.
func (s *Synchronizer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.stopOnce.Do(func() { close(s.done) })
	defer s.caption.Stop()

	s.model.Render()
	s.view.ShowInteractive(s.Interactive())

	interval := time.Duration(s.interval.Load())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.poll(ctx, &wg, interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx, &wg, interval)
		case <-s.trigger:
			s.poll(ctx, &wg, interval)
		case fn := <-s.reconfig:
			fn()
			if d := time.Duration(s.interval.Load()); d != interval {
				interval = d
				ticker.Reset(interval)
				slog.Info("poll interval changed", "interval", interval)
			}
		case u := <-s.updates:
			s.handle(u)
		}
	}
}

// poll issues one fetch. The sequence number is drawn now, at issue time,
// so a late reply ranks below anything received after it was sent.
func (s *Synchronizer) poll(ctx context.Context, wg *sync.WaitGroup, interval time.Duration) {
	seq := s.seq.Add(1)
	timeout := min(time.Duration(s.pollTimeout.Load()), interval)

	wg.Go(func() {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		token, err := s.status.Fetch(pctx)
		u := Update{Seq: seq, Source: SourcePoll, Token: token, Err: err}
		select {
		case s.updates <- u:
		case <-ctx.Done():
		}
	})
}

// Push applies a state pushed by the host. It is authoritative over any poll
// issued before it.
func (s *Synchronizer) Push(token string) {
	s.enqueue(Update{Source: SourcePush, Token: token})
}

// SetState applies a state chosen locally, such as by a click.
func (s *Synchronizer) SetState(state types.OverlayState) {
	s.local(func(types.OverlayState) (types.OverlayState, bool) {
		return state, true
	})
}

func (s *Synchronizer) local(next func(types.OverlayState) (types.OverlayState, bool)) {
	s.enqueue(Update{Source: SourceLocal, next: next})
}

func (s *Synchronizer) enqueue(u Update) {
	u.Seq = s.seq.Add(1)
	select {
	case s.updates <- u:
	case <-s.done:
		slog.Debug("drop update after stop", "source", u.Source)
	}
}

func (s *Synchronizer) handle(u Update) {
	if s.afterHandle != nil {
		defer s.afterHandle(u)
	}

	switch u.Source {
	case SourcePoll:
		s.handlePoll(u)
	case SourcePush:
		state, err := types.ParseState(u.Token)
		if err != nil {
			slog.Warn("reject pushed state", "error", err)
			return
		}
		s.apply(u, state)
	case SourceLocal:
		state, ok := u.next(s.model.Current())
		if !ok {
			return
		}
		s.apply(u, state)
	}
}

// handlePoll applies a poll reply only if no newer poll has answered and no
// newer push or local update has been applied. A failed reply still fences
// older ones.
func (s *Synchronizer) handlePoll(u Update) {
	if u.Seq <= s.applied || u.Seq <= s.polled {
		slog.Debug("drop stale poll", "seq", u.Seq, "applied", s.applied, "polled", s.polled)
		return
	}
	s.polled = u.Seq

	if u.Err != nil {
		slog.Debug("poll status", "error", u.Err)
		return
	}

	token := strings.TrimSpace(u.Token)
	if token == "" || token == s.lastRemote {
		return
	}
	state, err := types.ParseState(token)
	if err != nil {
		slog.Warn("reject polled state", "error", err)
		return
	}

	s.lastRemote = token
	s.apply(u, state)

	// Shown for every new polled value, even when a push already
	// displays the same state.
	switch state {
	case types.StateListening:
		s.caption.Set(types.RoleUser, "Listening...")
	case types.StateThinking:
		s.caption.Set(types.RoleAI, "Processing request...")
	}
}

// apply enforces last-writer-wins by sequence.
func (s *Synchronizer) apply(u Update, state types.OverlayState) {
	if u.Seq <= s.applied {
		slog.Debug("drop stale update", "source", u.Source, "seq", u.Seq, "applied", s.applied)
		return
	}
	s.applied = u.Seq

	if _, err := s.model.Apply(state); err != nil {
		slog.Warn("apply state", "source", u.Source, "error", err)
	}
}

// Reconfigure changes timings and labels on a running Synchronizer.
// Zero values in cfg are left unchanged; its collaborators are ignored.
func (s *Synchronizer) Reconfigure(cfg Config) {
	if cfg.RevealSpeed > 0 {
		s.caption.SetSpeed(cfg.RevealSpeed)
	}
	if cfg.PollTimeout > 0 {
		s.pollTimeout.Store(int64(cfg.PollTimeout))
	}
	fn := func() {
		if cfg.PollInterval > 0 {
			s.interval.Store(int64(cfg.PollInterval))
		}
		if cfg.Labels != nil {
			s.model.SetLabels(cfg.Labels)
		}
	}
	select {
	case s.reconfig <- fn:
	case <-s.done:
	}
}

// Submit sends user text to the backend, then shows it as a user caption and
// moves the overlay to thinking. Nothing is shown if the send fails.
func (s *Synchronizer) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if s.ingest == nil {
		return ErrNoIngestor
	}

	if err := s.ingest.Send(ctx, text); err != nil {
		slog.Error("send command", "error", err)
		return fmt.Errorf("send command: %w", err)
	}
	slog.Info("command sent", "length", len(text))

	s.caption.Set(types.RoleUser, text)
	s.SetState(types.StateThinking)
	return nil
}
