package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go.aimuz.me/orb/statusserver"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status endpoint and print received commands",
	Long: `Serve the status endpoint the overlay polls. Commands typed into the
overlay are printed one per line as "<id>\t<text>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := flagAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := statusserver.New()
		go printCommands(ctx, srv.Commands(), cmd.OutOrStdout())
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config, "+statusserver.DefaultAddr+")")
}

func printCommands(ctx context.Context, commands <-chan statusserver.Command, w io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-commands:
			fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Text)
		}
	}
}
