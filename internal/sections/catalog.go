// Package sections holds the section catalogue of each report type, the order in
// which sections are generated and the prompts sent to the content generator.
package sections

import (
	"fmt"
	"slices"

	"github.com/allstarteams/sectional-reports/internal/types"
)

// Definition describes one section of a report.
type Definition struct {
	ID           int
	Name         string
	Title        string
	Description  string
	Dependencies []int
	Personal     string
	Professional string
}

// Instructions returns the generation brief for the given report type.
func (d Definition) Instructions(rt types.ReportType) string {
	if rt == types.ReportTypePersonal {
		return d.Personal
	}
	return d.Professional
}

var catalog = []Definition{
	{
		ID:           0,
		Name:         "introduction",
		Title:        "Introduction & Overview",
		Description:  "Personal introduction with strengths constellation overview",
		Dependencies: nil,
		Personal: "Welcome the participant by name, introduce the purpose of the report and give an overview " +
			"of their strengths constellation with its percentages and archetype. Warm and encouraging, 300-400 words.",
		Professional: "Introduce the participant professionally, outline the purpose of the profile and give an overview " +
			"of their working style and strengths constellation. Professional yet approachable, 250-350 words.",
	},
	{
		ID:           1,
		Name:         "strengths_imagination",
		Title:        "Strengths Profile & Imagination",
		Description:  "Detailed strengths analysis with creative constellation archetype",
		Dependencies: []int{0},
		Personal: "Analyse the strengths constellation in depth, explain how the percentages shape natural patterns, " +
			"elaborate on the archetype and connect strengths to development opportunities. 600-800 words.",
		Professional: "Detail how each strength shows up at work, the natural working style and collaboration preferences, " +
			"and how colleagues can leverage these strengths. 500-700 words.",
	},
	{
		ID:           2,
		Name:         "flow_experiences",
		Title:        "Flow State Analysis & Optimization",
		Description:  "Flow score interpretation, triggers, blockers, and optimization strategies",
		Dependencies: []int{0, 1},
		Personal: "Interpret the flow score and category, analyse triggers, blockers and optimal conditions, " +
			"and offer personalised flow strategies. 600-800 words.",
		Professional: "Explain flow triggers and optimal work conditions, with environment and collaboration " +
			"recommendations for managers and teammates. 500-700 words.",
	},
	{
		ID:           3,
		Name:         "strengths_flow_together",
		Title:        "Strengths & Flow Integration",
		Description:  "How strengths and flow work together for optimal performance",
		Dependencies: []int{1, 2},
		Personal: "Explore how the strengths constellation amplifies flow, the synergies with flow triggers and " +
			"strategies for overcoming blockers. 500-700 words.",
		Professional: "Explain how strengths and flow patterns form a leadership style, natural team contributions " +
			"and ideal project assignments. 500-700 words.",
	},
	{
		ID:           4,
		Name:         "wellbeing_future_self",
		Title:        "Well-being & Future Self Development",
		Description:  "Well-being analysis, future vision, and development pathway",
		Dependencies: []int{0, 1, 2},
		Personal: "Analyse current well-being and future aspirations from the Cantril ladder answers and turn them " +
			"into a quarterly development plan. 700-900 words.",
		Professional: "Give communication preferences, how to give feedback and recognition, stress triggers and " +
			"support needs. 400-600 words.",
	},
	{
		ID:           5,
		Name:         "collaboration_closing",
		Title:        "Collaboration & Next Steps",
		Description:  "Final insights, key takeaways, and actionable next steps",
		Dependencies: []int{0, 1, 2, 3, 4},
		Personal: "Summarise the key insights, lay out immediate, medium and long-term goals and close with " +
			"encouragement. 400-600 words.",
		Professional: "Close with recommendations for effective collaboration, key points for colleagues and " +
			"practical next steps for team integration. 300-500 words.",
	},
}

// MaxSectionID is the highest valid section id.
const MaxSectionID = 5

// All returns the catalogue of the report type in display order.
func All(rt types.ReportType) []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Total is the fixed section count of the report type.
func Total(rt types.ReportType) int {
	return len(catalog)
}

// IDs returns every section id of the report type.
func IDs(rt types.ReportType) []int {
	ids := make([]int, 0, len(catalog))
	for _, d := range catalog {
		ids = append(ids, d.ID)
	}
	return ids
}

// Lookup finds a definition by id.
func Lookup(id int) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// ValidID reports whether id names a catalogue section.
func ValidID(id int) bool {
	_, ok := Lookup(id)
	return ok
}

// Select resolves the requested ids (all when empty) into definitions, rejecting unknown ids.
func Select(rt types.ReportType, ids []int) ([]Definition, error) {
	if len(ids) == 0 {
		return All(rt), nil
	}
	seen := make(map[int]bool, len(ids))
	out := make([]Definition, 0, len(ids))
	for _, id := range ids {
		d, ok := Lookup(id)
		if !ok {
			return nil, fmt.Errorf("unknown section id %d", id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, d)
	}
	return out, nil
}

// Order sorts section ids so every section follows the sections it depends on.
// Dependencies outside ids are treated as satisfied. A cycle is broken by taking
// the first remaining id.
func Order(ids []int) []int {
	requested := make(map[int]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}

	sorted := make([]int, 0, len(ids))
	done := make(map[int]bool, len(ids))
	remaining := slices.Clone(ids)

	for len(remaining) > 0 {
		var ready, blocked []int
		for _, id := range remaining {
			if depsSatisfied(id, requested, done) {
				ready = append(ready, id)
			} else {
				blocked = append(blocked, id)
			}
		}
		if len(ready) == 0 {
			ready, blocked = remaining[:1], remaining[1:]
		}
		for _, id := range ready {
			sorted = append(sorted, id)
			done[id] = true
		}
		remaining = blocked
	}
	return sorted
}

func depsSatisfied(id int, requested, done map[int]bool) bool {
	d, ok := Lookup(id)
	if !ok {
		return true
	}
	for _, dep := range d.Dependencies {
		if requested[dep] && !done[dep] {
			return false
		}
	}
	return true
}
