// Package types provides shared type definitions for the application.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownState is returned when a token does not name an overlay state.
var ErrUnknownState = errors.New("unknown overlay state")

// OverlayState is the assistant state mirrored by the overlay.
// The zero value is StateIdle.
type OverlayState uint8

const (
	StateIdle OverlayState = iota
	StateListening
	StateThinking
	StateSpeaking
	StateError

	stateCount
)

var stateNames = [stateCount]string{
	StateIdle:      "idle",
	StateListening: "listening",
	StateThinking:  "thinking",
	StateSpeaking:  "speaking",
	StateError:     "error",
}

// States returns every valid overlay state in display order.
func States() []OverlayState {
	return []OverlayState{StateIdle, StateListening, StateThinking, StateSpeaking, StateError}
}

// Valid reports whether s is one of the five overlay states.
func (s OverlayState) Valid() bool {
	return s < stateCount
}

func (s OverlayState) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return stateNames[s]
}

// ParseState converts a wire token into an OverlayState.
// Surrounding whitespace is ignored; matching is exact otherwise.
func ParseState(token string) (OverlayState, error) {
	token = strings.TrimSpace(token)
	for i, name := range stateNames {
		if name == token {
			return OverlayState(i), nil
		}
	}
	return StateIdle, fmt.Errorf("%w: %q", ErrUnknownState, token)
}

// MarshalText implements encoding.TextMarshaler.
func (s OverlayState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownState, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OverlayState) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CaptionRole identifies who a caption belongs to.
type CaptionRole string

const (
	RoleUser CaptionRole = "user"
	RoleAI   CaptionRole = "ai"
)

// ─────────────────────────────────────────────────────────────────────────────
// Frontend payloads
// ─────────────────────────────────────────────────────────────────────────────

// OverlayView is the orb presentation sent to the frontend.
type OverlayView struct {
	State  string `json:"state"`
	Label  string `json:"label"`
	Online bool   `json:"online"` // Status dot; false only in the error state
}

// CaptionView is a caption update sent to the frontend.
type CaptionView struct {
	Role CaptionRole `json:"role"`
	Text string      `json:"text"`
}

// StateEvent is pushed by the status server over its websocket feed.
type StateEvent struct {
	Type  string       `json:"type"`
	State OverlayState `json:"state"`
}

// StateEventType is the Type of a StateEvent.
const StateEventType = "overlay-state"
