// Package app provides the overlay service bound to Wails.
package app

// Events pushed to the overlay by the host.
const (
	EventOverlayState    = "overlay-state"
	EventInteractionMode = "interaction-mode"
)

// Events the service emits for the frontend to render.
const (
	EventOverlayView     = "overlay-view"
	EventOverlayCaption  = "overlay-caption"
	EventInteractionView = "interaction-view"
)
