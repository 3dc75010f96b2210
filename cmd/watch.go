package cmd

import (
	"time"

	"github.com/bnema/waycomp/internal/ui"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the scene of a running compositor live",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return ui.RunWatch(cmd.Context(), client, watchInterval)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Polling interval")
}
