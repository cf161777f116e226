package main

import (
	"embed"
	"log/slog"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/orb/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.Info("starting overlay", "version", version, "commit", commit, "date", date)
	svc := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "Orb",
		Description: "Voice assistant overlay",
		Services: []application.Service{
			application.NewService(svc),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			ActivationPolicy: application.ActivationPolicyAccessory,
			// Keep running from the tray when the overlay is hidden
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	// Frameless, transparent, always on top; click-through until interaction
	// is enabled.
	overlayWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:             "Orb",
		Width:             360,
		Height:            220,
		URL:               "/",
		Frameless:         true,
		AlwaysOnTop:       true,
		DisableResize:     true,
		IgnoreMouseEvents: true,
		BackgroundType:    application.BackgroundTypeTransparent,
		Mac: application.MacWindow{
			Backdrop: application.MacBackdropTransparent,
		},
	})

	overlayWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		overlayWindow.Hide()
	})

	svc.Init(wailsApp, overlayWindow)

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetLabel("IDLE")
	svc.OnLabel(func(label string) {
		systemTray.SetLabel(label)
	})

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("Show overlay").OnClick(func(ctx *application.Context) {
		overlayWindow.Show()
	})
	trayMenu.Add("Toggle interaction").
		SetAccelerator("CmdOrCtrl+Shift+Space").
		OnClick(func(ctx *application.Context) {
			if err := svc.ToggleInteraction(); err != nil {
				slog.Error("toggle interaction from tray", "error", err)
			}
		})
	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			svc.Shutdown()
			wailsApp.Quit()
		})
	systemTray.SetMenu(trayMenu)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}
