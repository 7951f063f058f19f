package main

import (
	"github.com/aretw0/sketchy"
	"github.com/aretw0/sketchy/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development backend",
	Long: `Starts a local implementation of the Sketchy HTTP API under /api/v1.
It answers every step with a deterministic stub provider, so the client can be
exercised offline. Prometheus metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("artifacts") {
			cfg.Server.Store, _ = cmd.Flags().GetString("artifacts")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetBool("debug")

		ctx, cancel := cli.WithInterrupt(cmd.Context())
		defer cancel()

		return cli.Serve(ctx, cli.ServeOptions{
			Config:  cfg,
			Debug:   debug,
			Version: sketchy.Version,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().String("artifacts", "memory", "Artifact store: memory or redis")
}
