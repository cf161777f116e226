package app

import (
	"sync"

	"go.aimuz.me/orb/internal/types"
)

// EventPresenter renders the overlay by emitting frontend events.
type EventPresenter struct {
	emit func(name string, data any)

	mu      sync.Mutex
	view    types.OverlayView
	onLabel func(label string)
}

// NewEventPresenter creates a presenter that emits through emit.
func NewEventPresenter(emit func(name string, data any)) *EventPresenter {
	return &EventPresenter{emit: emit, view: types.OverlayView{Online: true}}
}

// OnLabel registers fn to receive every label shown, e.g. for a tray title.
func (p *EventPresenter) OnLabel(fn func(label string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLabel = fn
}

// View returns the last emitted view.
func (p *EventPresenter) View() types.OverlayView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *EventPresenter) ClearStates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.State = ""
	p.view.Label = ""
}

func (p *EventPresenter) ShowState(state types.OverlayState, label string) {
	p.mu.Lock()
	p.view.State = state.String()
	p.view.Label = label
	view, onLabel := p.view, p.onLabel
	p.mu.Unlock()

	p.emit(EventOverlayView, view)
	if onLabel != nil {
		onLabel(label)
	}
}

func (p *EventPresenter) SetOnline(online bool) {
	p.mu.Lock()
	if p.view.Online == online {
		p.mu.Unlock()
		return
	}
	p.view.Online = online
	view := p.view
	p.mu.Unlock()

	p.emit(EventOverlayView, view)
}

func (p *EventPresenter) ShowCaption(role types.CaptionRole, text string) {
	p.emit(EventOverlayCaption, types.CaptionView{Role: role, Text: text})
}

func (p *EventPresenter) ShowInteractive(interactive bool) {
	p.emit(EventInteractionView, interactive)
}
