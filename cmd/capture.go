package cmd

import (
	"fmt"
	"os"

	"github.com/bnema/waycomp/internal/ui"
	"github.com/spf13/cobra"
)

var (
	captureOutput string
	captureFile   string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Save a PNG screenshot of one output",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		shot, err := client.Capture(captureOutput)
		if err != nil {
			return err
		}

		path := captureFile
		if path == "" {
			path = shot.Output + ".png"
		}
		if err := os.WriteFile(path, shot.PNG, 0o644); err != nil {
			return fmt.Errorf("failed to write capture: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(nil,
			fmt.Sprintf("captured %s (%dx%d) to %s", shot.Output, shot.Width, shot.Height, path)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVar(&captureOutput, "output", "", "Output to capture (default output when empty)")
	captureCmd.Flags().StringVarP(&captureFile, "file", "o", "", "Destination file (default <output>.png)")
}
