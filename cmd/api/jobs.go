// cmd/api/jobs.go
// One-shot maintenance commands

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/imadgeboyega/heartwing-backend/internal/common/database"
	"github.com/imadgeboyega/heartwing-backend/internal/common/utils"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tokenCmd)

	sweepCmd.Flags().Bool("compatibility", false, "Also refresh compatibility scores")
	tokenCmd.Flags().String("username", "", "Username claim of the token")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to ACCESS_TOKEN_EXPIRY)")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store != "postgres" {
			return fmt.Errorf("migrate requires STORE=postgres")
		}

		db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		return database.RunMigrations(cmd.Context(), db)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one ghosting sweep over active matches",
	Long: `Run one ghosting sweep and exit. Useful from an external scheduler when
the API runs with --no-jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
		defer cancel()

		a, err := buildApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		if err := a.service.SweepGhosting(ctx); err != nil {
			return fmt.Errorf("ghosting sweep: %w", err)
		}
		if refresh, _ := cmd.Flags().GetBool("compatibility"); refresh {
			if err := a.service.RefreshCompatibility(ctx); err != nil {
				return fmt.Errorf("compatibility refresh: %w", err)
			}
		}
		log.Printf("Sweep finished in %v", time.Since(start))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Mint an access token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.IsProduction() {
			return fmt.Errorf("token minting is disabled in production")
		}

		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || userID <= 0 {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		username, _ := cmd.Flags().GetString("username")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = cfg.AccessTokenExpiry
		}

		token, err := utils.GenerateJWT(utils.NewAccessClaims(userID, username, ttl, time.Now()), cfg.JWTSecret)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, token)
		return nil
	},
}
