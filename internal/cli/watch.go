package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go.aimuz.me/orb/overlay"
	"go.aimuz.me/orb/tui"
)

var flagPush bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Mirror the overlay in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The TUI owns the terminal; logs would corrupt it.
		if !flagVerbose {
			slog.SetDefault(slog.New(slog.DiscardHandler))
		} else if f, err := tea.LogToFile("overlayctl.log", ""); err == nil {
			defer f.Close()
			slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}

		view := tui.NewPresenter()
		defer view.Close()

		c := client()
		ocfg := cfg.OverlayConfig()
		ocfg.Source = c
		ocfg.Ingestor = c
		ocfg.Host = tui.Host{}
		ocfg.Presenter = view

		orb, err := overlay.New(ocfg)
		if err != nil {
			return fmt.Errorf("create synchronizer: %w", err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		var wg sync.WaitGroup
		defer wg.Wait()
		defer cancel()

		wg.Go(func() { _ = orb.Run(ctx) })
		if flagPush || cfg.Push {
			wg.Go(func() { _ = c.Subscribe(ctx, time.Second, orb.Push) })
		}

		p := tea.NewProgram(tui.NewModel(orb, view), tea.WithContext(ctx), tea.WithOutput(os.Stdout))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("run terminal ui: %w", err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&flagPush, "push", false, "also follow the websocket state feed")
}
