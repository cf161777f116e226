package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNoWindow is returned when the host has no window to change.
var ErrNoWindow = errors.New("no overlay window")

// WindowHost switches the overlay window between interactive and
// click-through, and reports every change as an interaction-mode push.
type WindowHost struct {
	mu          sync.Mutex
	setIgnore   func(ignore bool)
	notify      func(interactive bool)
	interactive bool
}

// NewWindowHost creates a host. setIgnore changes whether the window ignores
// mouse events; notify receives the resulting mode.
func NewWindowHost(setIgnore func(ignore bool), notify func(interactive bool)) *WindowHost {
	return &WindowHost{setIgnore: setIgnore, notify: notify}
}

// EnableInteraction makes the window accept input.
func (h *WindowHost) EnableInteraction(ctx context.Context) error {
	return h.set(ctx, true)
}

// DisableInteraction makes the window click-through.
func (h *WindowHost) DisableInteraction(ctx context.Context) error {
	return h.set(ctx, false)
}

// Toggle flips the current mode. Used by the global hotkey.
func (h *WindowHost) Toggle(ctx context.Context) error {
	return h.set(ctx, !h.Interactive())
}

// Interactive reports the mode the window is in.
func (h *WindowHost) Interactive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interactive
}

func (h *WindowHost) set(ctx context.Context, interactive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	if h.setIgnore == nil {
		h.mu.Unlock()
		return ErrNoWindow
	}
	h.setIgnore(!interactive)
	h.interactive = interactive
	h.mu.Unlock()

	if interactive {
		slog.Info("interaction enabled")
	} else {
		slog.Info("interaction disabled")
	}
	if h.notify != nil {
		h.notify(interactive)
	}
	return nil
}
