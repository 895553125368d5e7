package main

import (
	"fmt"

	"github.com/allstarteams/sectional-reports/internal/config"
	"github.com/allstarteams/sectional-reports/internal/server"
	"github.com/spf13/cobra"
)

var (
	tokenUserID int64
	tokenAdmin  bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long:  `Sign a bearer token with JWT_SECRET for a participant, or an admin token with --admin.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().Int64VarP(&tokenUserID, "user", "u", 0, "Participant id the token acts for")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Issue an admin token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenUserID <= 0 && !tokenAdmin {
		return fmt.Errorf("--user is required for non-admin tokens")
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenUserID, tokenAdmin)
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
