package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/sketchy"
	"github.com/aretw0/sketchy/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive workflow shell",
	Long: `Starts an interactive shell driving the workflow against the Sketchy API.
A session stored by a previous run is offered for restore first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetBool("debug")
		useDialog, _ := cmd.Flags().GetBool("dialog")
		fresh, _ := cmd.Flags().GetBool("fresh")

		ctx, cancel := cli.WithInterrupt(cmd.Context())
		defer cancel()

		err = cli.Run(ctx, cli.RunOptions{
			Config:  cfg,
			Debug:   debug,
			Dialog:  useDialog,
			Fresh:   fresh,
			Version: sketchy.Version,
			In:      os.Stdin,
			Out:     os.Stdout,
		})
		if sig := cli.InterruptSignal(ctx); sig != nil && errors.Is(err, ctx.Err()) {
			fmt.Printf("\nInterrupted (%v). Session saved.\n", sig)
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dialog", false, "Use the native file dialog to re-select files on restore")
	runCmd.Flags().Bool("fresh", false, "Discard the stored session and start over")
}
