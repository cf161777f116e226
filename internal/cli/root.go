// Package cli implements the overlayctl commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.aimuz.me/orb/config"
	"go.aimuz.me/orb/statusclient"
)

var (
	flagURL     string
	flagVerbose bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "overlayctl",
	Short: "Drive and observe the assistant overlay state",
	Long: `overlayctl talks to the assistant's local status endpoint.
It can serve the endpoint, read or set the current state, send commands,
and mirror the overlay in a terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		loaded, err := config.Load()
		if err != nil {
			slog.Warn("load config", "error", err)
			loaded = config.Default()
		}
		cfg = loaded
		if flagURL != "" {
			cfg.StatusURL = flagURL
		}
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "status endpoint (default from config, "+statusclient.DefaultURL+")")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(watchCmd)
}

func client() *statusclient.Client {
	return statusclient.New(cfg.StatusURL)
}
