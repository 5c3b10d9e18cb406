// cmd/api/main.go
// Main entry point for the Heartwing API
// Subcommands: serve, migrate, sweep, token

package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/imadgeboyega/heartwing-backend/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "heartwing",
	Short: "Heartwing butterfly reward engine",
	Long: `Heartwing runs the butterfly reward engine of the dating app: the HTTP
and websocket API, the schema migrations and the scheduled jobs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			log.Printf("No .env file found (%v), using environment variables", err)
		}
	},
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the environment configuration
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
