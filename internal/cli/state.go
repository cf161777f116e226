package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go.aimuz.me/orb/internal/types"
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the state currently served",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := client().Fetch(cmd.Context())
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), state)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:       "set <state>",
	Short:     "Set the served state",
	Long:      "Set the served state to one of: " + stateNames() + ".",
	Args:      cobra.ExactArgs(1),
	ValidArgs: strings.Split(stateNames(), ", "),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := types.ParseState(args[0])
		if err != nil {
			return err
		}
		return client().SetState(cmd.Context(), state)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Send a command as if typed into the overlay",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return fmt.Errorf("empty command")
		}
		return client().Send(cmd.Context(), text)
	},
}

func stateNames() string {
	names := make([]string, 0, len(types.States()))
	for _, s := range types.States() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}
