package main

import (
	"fmt"
	"os"

	"github.com/aretw0/sketchy/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sketchy",
	Short: "Sketchy turns uploaded images into prompts and regenerated sketches",
	Long: `Sketchy uploads images to the Sketchy API, analyzes one into a prompt,
regenerates an image from it and refines the result step by step.
The workflow is saved after every step and can be restored after a restart.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default "+config.DefaultFile+")")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("store", "", "Record store driver: memory, file or redis")
	rootCmd.PersistentFlags().String("api", "", "Base URL of the Sketchy API")
}

// loadConfig reads the configuration and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Driver, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("api") {
		cfg.API.BaseURL, _ = cmd.Flags().GetString("api")
	}
	return cfg, cfg.Validate()
}
