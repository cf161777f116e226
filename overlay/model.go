// Package overlay keeps the overlay's state in sync with the assistant backend.
//
// A Synchronizer merges two producers, a poll against the local status
// endpoint and host-pushed events, into a single Model. Every update carries a
// sequence number drawn when the poll is issued or the event is received, and
// the consumer applies updates last-writer-wins by sequence, so a slow poll can
// never overwrite a fresher push.
package overlay

import (
	"log/slog"
	"sync/atomic"

	"go.aimuz.me/orb/internal/types"
)

// Presenter renders the overlay. Methods may be called from more than one
// goroutine and must not block.
type Presenter interface {
	// ClearStates deactivates every per-state visual hook.
	ClearStates()
	// ShowState activates the hook for state with the given label.
	ShowState(state types.OverlayState, label string)
	// SetOnline toggles the status dot.
	SetOnline(online bool)
	// ShowCaption replaces the caption text for role.
	ShowCaption(role types.CaptionRole, text string)
	// ShowInteractive reflects the confirmed interaction mode.
	ShowInteractive(interactive bool)
}

// Labels maps states to the text shown under the orb.
type Labels map[types.OverlayState]string

// DefaultLabels returns the built-in state labels.
func DefaultLabels() Labels {
	return Labels{
		types.StateIdle:      "IDLE",
		types.StateListening: "LISTENING",
		types.StateThinking:  "PROCESSING",
		types.StateSpeaking:  "SPEAKING",
		types.StateError:     "SYSTEM ERROR",
	}
}

// Label returns the label for s, falling back to the default label.
func (l Labels) Label(s types.OverlayState) string {
	if text, ok := l[s]; ok && text != "" {
		return text
	}
	return DefaultLabels()[s]
}

// Model holds the current overlay state.
// Apply is not safe for concurrent use; Current is.
type Model struct {
	view    Presenter
	labels  Labels
	current atomic.Uint32
}

// NewModel creates a Model in the idle state. It does not render; call
// Render once the presenter is ready.
func NewModel(view Presenter, labels Labels) *Model {
	if labels == nil {
		labels = DefaultLabels()
	}
	return &Model{view: view, labels: labels}
}

// Current returns the state last applied.
func (m *Model) Current() types.OverlayState {
	return types.OverlayState(m.current.Load())
}

// Apply makes state current and updates the presenter.
//
// Unrecognized values are rejected: the stored state and the presenter are
// left untouched and ErrUnknownState is returned. Applying the current state
// again is a no-op and reports changed=false.
func (m *Model) Apply(state types.OverlayState) (changed bool, err error) {
	if !state.Valid() {
		return false, types.ErrUnknownState
	}
	if state == m.Current() {
		return false, nil
	}

	m.current.Store(uint32(state))
	m.render(state)
	slog.Info("state changed", "state", state)
	return true, nil
}

// Render redraws the current state without changing it.
func (m *Model) Render() {
	m.render(m.Current())
}

// SetLabels replaces the labels and redraws.
func (m *Model) SetLabels(labels Labels) {
	m.labels = labels
	m.Render()
}

func (m *Model) render(state types.OverlayState) {
	m.view.ClearStates()
	m.view.ShowState(state, m.labels.Label(state))
	m.view.SetOnline(state != types.StateError)
}
