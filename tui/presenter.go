// Package tui renders the overlay in a terminal.
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"go.aimuz.me/orb/internal/types"
)

// Snapshot is everything the terminal view shows.
type Snapshot struct {
	State       types.OverlayState
	Label       string
	Online      bool
	User        string
	AI          string
	Interactive bool
}

// snapshotMsg carries a new Snapshot into the Bubble Tea loop.
type snapshotMsg Snapshot

// Presenter collects overlay output into a Snapshot. Writers never block:
// bursts are coalesced and the model reads the latest snapshot.
type Presenter struct {
	mu      sync.Mutex
	snap    Snapshot
	changed chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewPresenter creates an empty Presenter.
func NewPresenter() *Presenter {
	return &Presenter{
		snap:    Snapshot{Online: true},
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Snapshot returns the current view.
func (p *Presenter) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Close releases anything waiting for changes.
func (p *Presenter) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *Presenter) update(fn func(*Snapshot)) {
	p.mu.Lock()
	fn(&p.snap)
	p.mu.Unlock()

	select {
	case p.changed <- struct{}{}:
	default:
	}
}

func (p *Presenter) ClearStates() {}

func (p *Presenter) ShowState(state types.OverlayState, label string) {
	p.update(func(s *Snapshot) {
		s.State = state
		s.Label = label
	})
}

func (p *Presenter) SetOnline(online bool) {
	p.update(func(s *Snapshot) { s.Online = online })
}

func (p *Presenter) ShowCaption(role types.CaptionRole, text string) {
	p.update(func(s *Snapshot) {
		switch role {
		case types.RoleUser:
			s.User = text
		case types.RoleAI:
			s.AI = text
		}
	})
}

func (p *Presenter) ShowInteractive(interactive bool) {
	p.update(func(s *Snapshot) { s.Interactive = interactive })
}

// waitForChange blocks until the snapshot changes.
func (p *Presenter) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-p.changed:
			return snapshotMsg(p.Snapshot())
		case <-p.done:
			return nil
		}
	}
}

// Host is the terminal side of interaction mode. The terminal always has
// focus, so switching modes cannot fail.
type Host struct{}

func (Host) EnableInteraction(ctx context.Context) error  { return ctx.Err() }
func (Host) DisableInteraction(ctx context.Context) error { return ctx.Err() }
