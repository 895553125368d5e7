package main

import (
	"encoding/json"

	"github.com/allstarteams/sectional-reports/internal/client"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/spf13/cobra"
)

var (
	generateFlags      clientFlags
	generateRegenerate bool
	generateSections   []int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Trigger generation of a report",
	Long:  `Ask the API to generate (or with --regenerate, rebuild) a report and print the acknowledgement. Does not wait; use "watch" to follow progress.`,
	RunE:  runGenerate,
}

func init() {
	generateFlags.register(generateCmd)
	generateCmd.Flags().BoolVar(&generateRegenerate, "regenerate", false, "Rebuild an existing report")
	generateCmd.Flags().IntSliceVar(&generateSections, "sections", nil, "Regenerate only these section ids (with --regenerate)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := generateFlags.resolve()
	if err != nil {
		return err
	}
	c, err := newAPIClient(cfg)
	if err != nil {
		return err
	}

	ack, err := c.Generate(cmd.Context(), cfg.UserID, types.ReportType(cfg.ReportType), client.GenerateOptions{
		Regenerate: generateRegenerate,
		Sections:   generateSections,
	})
	if err != nil {
		cmd.PrintErrln(client.UserMessage(err))
		return err
	}

	out, err := json.MarshalIndent(ack, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
