package main

import (
	"fmt"
	"os"

	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/allstarteams/sectional-reports/internal/schemas"
	"github.com/spf13/cobra"
)

var (
	participantName       string
	participantEmail      string
	participantAssessment string
)

var participantCmd = &cobra.Command{
	Use:   "participant",
	Short: "Manage participants and their assessment data",
}

var participantAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a participant and store their assessment",
	Long: `Create (or update, matched by email) a participant and store the assessment JSON file
reports are generated from. The file is validated against the assessment schema first.`,
	RunE: runParticipantAdd,
}

func init() {
	participantAddCmd.Flags().StringVarP(&participantName, "name", "n", "", "Participant name")
	participantAddCmd.Flags().StringVar(&participantEmail, "email", "", "Participant email")
	participantAddCmd.Flags().StringVarP(&participantAssessment, "assessment", "a", "", "Path to the assessment JSON file")
	_ = participantAddCmd.MarkFlagRequired("name")
	_ = participantAddCmd.MarkFlagRequired("assessment")
	participantAddCmd.Flags().StringVar(&dbURLFlag, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")

	participantCmd.AddCommand(participantAddCmd)
	rootCmd.AddCommand(participantCmd)
}

func runParticipantAdd(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(participantAssessment)
	if err != nil {
		return fmt.Errorf("failed to read assessment file: %w", err)
	}
	if err := schemas.ValidateAssessment(raw); err != nil {
		return fmt.Errorf("assessment file is invalid: %w", err)
	}

	return withDatabase(cmd, func(database *db.DB) error {
		var email *string
		if participantEmail != "" {
			email = &participantEmail
		}
		p, err := database.CreateParticipant(cmd.Context(), participantName, email)
		if err != nil {
			return err
		}
		if err := database.SaveAssessment(cmd.Context(), p.ID, raw); err != nil {
			return err
		}
		cmd.Printf("participant %d (%s) saved with assessment\n", p.ID, p.Name)
		return nil
	})
}
