package overlay

import (
	"context"
	"fmt"
	"log/slog"

	"go.aimuz.me/orb/internal/types"
)

// Interactive reports the last confirmed interaction mode.
func (s *Synchronizer) Interactive() bool {
	s.imu.Lock()
	defer s.imu.Unlock()
	return s.interactive
}

// RequestInteractionMode asks the host to make the window interactive or
// click-through. The local mode only changes once the host confirms; on
// failure it is left as it was and the error is returned.
func (s *Synchronizer) RequestInteractionMode(ctx context.Context, enable bool) error {
	if s.host == nil {
		return ErrNoHost
	}

	call := s.host.DisableInteraction
	if enable {
		call = s.host.EnableInteraction
	}
	if err := call(ctx); err != nil {
		slog.Error("set interaction mode", "interactive", enable, "error", err)
		return fmt.Errorf("set interaction mode: %w", err)
	}

	s.setInteractive(enable)
	return nil
}

// PushInteractionMode records a mode reported by the host. Pushed values
// always win, whatever was requested before.
func (s *Synchronizer) PushInteractionMode(interactive bool) {
	s.setInteractive(interactive)
}

// ToggleInteraction flips the confirmed interaction mode.
func (s *Synchronizer) ToggleInteraction(ctx context.Context) error {
	return s.RequestInteractionMode(ctx, !s.Interactive())
}

func (s *Synchronizer) setInteractive(interactive bool) {
	s.imu.Lock()
	defer s.imu.Unlock()

	if s.interactive == interactive {
		return
	}
	s.interactive = interactive
	s.view.ShowInteractive(interactive)
	slog.Info("interaction mode changed", "interactive", interactive)
}

// ─────────────────────────────────────────────────────────────────────────────
// Keyboard and mouse
// ─────────────────────────────────────────────────────────────────────────────

// Keys understood by HandleKey.
const (
	KeySpace  = " "
	KeyEscape = "Escape"
)

// HandleKey reacts to a key pressed in the overlay. Keys are ignored while
// the window is click-through.
func (s *Synchronizer) HandleKey(ctx context.Context, key string) error {
	if !s.Interactive() {
		return nil
	}

	switch key {
	case KeyEscape:
		return s.RequestInteractionMode(ctx, false)
	case KeySpace, "Space", "space":
		s.local(func(cur types.OverlayState) (types.OverlayState, bool) {
			if cur == types.StateListening {
				return types.StateIdle, true
			}
			return types.StateListening, true
		})
	}
	return nil
}

// HandleClick toggles between idle and listening. Other states are left
// alone so a click cannot interrupt the assistant.
func (s *Synchronizer) HandleClick() {
	if !s.Interactive() {
		return
	}
	s.local(func(cur types.OverlayState) (types.OverlayState, bool) {
		switch cur {
		case types.StateIdle:
			return types.StateListening, true
		case types.StateListening:
			return types.StateIdle, true
		}
		return cur, false
	})
}

// HandleDoubleClick returns the window to click-through.
func (s *Synchronizer) HandleDoubleClick(ctx context.Context) error {
	if !s.Interactive() {
		return nil
	}
	return s.RequestInteractionMode(ctx, false)
}
