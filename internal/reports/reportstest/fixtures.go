package reportstest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allstarteams/sectional-reports/internal/llm"
)

// Assessment is a schema-valid assessment document.
const Assessment = `{
  "participantName": "Dana Reyes",
  "starStrengths": {"thinking": 38, "acting": 27, "feeling": 20, "planning": 15},
  "flowScore": 47,
  "flowInsights": {"triggers": "Clear deadlines"},
  "cantrilLadder": {"currentLevel": 6, "futureLevel": 8}
}`

// ContentFunc adapts a function to reports.ContentGenerator.
type ContentFunc func(ctx context.Context, system, prompt string, tier llm.ModelTier) (string, error)

// GenerateContent calls f.
func (f ContentFunc) GenerateContent(ctx context.Context, system, prompt string, tier llm.ModelTier) (string, error) {
	return f(ctx, system, prompt, tier)
}

// EchoContent answers every prompt with a paragraph naming the section.
var EchoContent = ContentFunc(func(_ context.Context, _, prompt string, _ llm.ModelTier) (string, error) {
	id, err := SectionOf(prompt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<p>Section %d content</p>", id), nil
})

// SectionOf reads the section id from a prompt built by sections.BuildPrompt.
func SectionOf(prompt string) (int, error) {
	var payload struct {
		SectionID int `json:"section_id"`
	}
	if err := json.Unmarshal([]byte(prompt), &payload); err != nil {
		return 0, err
	}
	return payload.SectionID, nil
}
