package cmd

import (
	"fmt"

	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/ui"
	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Fade the outputs out and lock the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAction(cmd, (*ipc.Client).Lock, "session locked")
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Wake the compositor up and show the lock dialog",
	Long: `Wake the compositor up as if the user had touched an input device. On a
locked desktop the helper client is asked to show its unlock dialog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendAction(cmd, (*ipc.Client).Unlock, "compositor woken up")
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}

func sendAction(cmd *cobra.Command, action func(*ipc.Client) error, success string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	err = action(client)
	fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(err, success))
	return err
}
