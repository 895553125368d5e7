package sections

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/allstarteams/sectional-reports/internal/types"
)

// Constellation summarises the ordering of the four star strengths.
type Constellation struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Percentages string `json:"percentages"`
}

var archetypes = map[string]string{
	"Thinking-Acting":   "Strategic Executor",
	"Thinking-Feeling":  "Empathetic Analyst",
	"Thinking-Planning": "Systems Architect",
	"Acting-Thinking":   "Dynamic Problem Solver",
	"Acting-Feeling":    "People-Focused Driver",
	"Acting-Planning":   "Dynamic Organizer",
	"Feeling-Thinking":  "Analytical Collaborator",
	"Feeling-Acting":    "Relationship Builder",
	"Feeling-Planning":  "Structured Supporter",
	"Planning-Thinking": "Methodical Analyst",
	"Planning-Acting":   "Organized Implementer",
	"Planning-Feeling":  "Process Facilitator",
}

// Archetype names the pairing of the two strongest strengths.
func Archetype(primary, secondary string) string {
	if a, ok := archetypes[primary+"-"+secondary]; ok {
		return a
	}
	return "Unique Constellation"
}

// AnalyzeConstellation ranks the strengths, ties keep the star card order.
func AnalyzeConstellation(s types.StarStrengths) Constellation {
	type strength struct {
		name  string
		value int
	}
	ranked := []strength{
		{"Thinking", s.Thinking},
		{"Acting", s.Acting},
		{"Feeling", s.Feeling},
		{"Planning", s.Planning},
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].value > ranked[j].value })

	pattern := "Balanced Profile"
	if ranked[0].value >= 40 {
		pattern = "Dominant Profile"
	}
	return Constellation{
		Name:    "The " + Archetype(ranked[0].name, ranked[1].name),
		Pattern: pattern,
		Percentages: fmt.Sprintf("%s %d%%, %s %d%%, %s %d%%, %s %d%%",
			ranked[0].name, ranked[0].value, ranked[1].name, ranked[1].value,
			ranked[2].name, ranked[2].value, ranked[3].name, ranked[3].value),
	}
}

// FlowCategory buckets a flow score.
func FlowCategory(score int) string {
	switch {
	case score >= 50:
		return "Flow Fluent"
	case score >= 39:
		return "Flow Aware"
	case score >= 26:
		return "Flow Blocked"
	default:
		return "Flow Distant"
	}
}

type promptPayload struct {
	Type          string              `json:"type"`
	SectionID     int                 `json:"section_id"`
	SectionName   string              `json:"section_name"`
	SectionTitle  string              `json:"section_title"`
	ReportType    string              `json:"report_type"`
	Instructions  string              `json:"instructions"`
	Participant   string              `json:"participant_name"`
	Constellation Constellation       `json:"constellation"`
	Strengths     types.StarStrengths `json:"strengths"`
	Flow          flowPayload         `json:"flow"`
	Reflections   map[string]string   `json:"reflections"`
	Wellbeing     types.CantrilLadder `json:"wellbeing"`
}

type flowPayload struct {
	Score    int    `json:"flowScore"`
	Category string `json:"category"`
	types.FlowInsights
}

// SystemPrompt is the standing instruction for the content generator.
func SystemPrompt(rt types.ReportType) string {
	audience := "the participant themselves, in the second person"
	if rt == types.ReportTypeProfessional {
		audience = "the participant's colleagues and managers, in the third person"
	}
	return "You write one section of an AllStarTeams strengths report for " + audience + ". " +
		"The user message is JSON data describing the participant and the section to write. " +
		"Answer with the section body as simple HTML (h2, h3, p, ul, li, strong, em) and nothing else. " +
		"Use the participant's own reflections where they exist and never invent scores."
}

// BuildPrompt renders the data-only JSON prompt for one section.
func BuildPrompt(def Definition, rt types.ReportType, a *types.Assessment) (string, error) {
	if a == nil {
		return "", fmt.Errorf("assessment is required")
	}
	variant := "professional"
	if rt == types.ReportTypePersonal {
		variant = "personal"
	}
	reflections := a.StepReflections
	if reflections == nil {
		reflections = map[string]string{}
	}

	payload := promptPayload{
		Type:          "ast_sectional_report",
		SectionID:     def.ID,
		SectionName:   def.Name,
		SectionTitle:  def.Title,
		ReportType:    variant,
		Instructions:  def.Instructions(rt),
		Participant:   a.ParticipantName,
		Constellation: AnalyzeConstellation(a.StarStrengths),
		Strengths:     a.StarStrengths,
		Flow: flowPayload{
			Score:        a.FlowScore,
			Category:     FlowCategory(a.FlowScore),
			FlowInsights: a.FlowInsights,
		},
		Reflections: reflections,
		Wellbeing:   a.CantrilLadder,
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt: %w", err)
	}
	return string(out), nil
}
