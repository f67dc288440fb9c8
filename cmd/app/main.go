package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"RoomArb/internal/di"
	"RoomArb/pkg/config"
)

var configPath string

// rootCmd is the base command for the RoomArb service.
var rootCmd = &cobra.Command{
	Use:   "roomarb",
	Short: "Hotel room arbitrage scoring and pricing service",
	Long: `RoomArb scores hotel inventory opportunities, recommends resale prices and
builds budget-constrained portfolios from live supplier quotes.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	return app.Run()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
