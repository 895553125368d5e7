package types

// Assessment is the workshop data of a participant that report sections are written from.
type Assessment struct {
	ParticipantName string            `json:"participantName"`
	StarStrengths   StarStrengths     `json:"starStrengths"`
	FlowScore       int               `json:"flowScore"`
	FlowInsights    FlowInsights      `json:"flowInsights"`
	StepReflections map[string]string `json:"stepReflections,omitempty"`
	CantrilLadder   CantrilLadder     `json:"cantrilLadder"`
}

// StarStrengths are the four strength percentages of the star card.
type StarStrengths struct {
	Thinking int `json:"thinking"`
	Acting   int `json:"acting"`
	Feeling  int `json:"feeling"`
	Planning int `json:"planning"`
}

// FlowInsights are the participant's flow reflections.
type FlowInsights struct {
	Triggers     string `json:"triggers,omitempty"`
	Blockers     string `json:"blockers,omitempty"`
	Conditions   string `json:"conditions,omitempty"`
	Improvements string `json:"improvements,omitempty"`
}

// CantrilLadder holds the well-being ladder answers.
type CantrilLadder struct {
	CurrentLevel       int    `json:"currentLevel"`
	FutureLevel        int    `json:"futureLevel"`
	CurrentFactors     string `json:"currentFactors,omitempty"`
	FutureImprovements string `json:"futureImprovements,omitempty"`
	SpecificChanges    string `json:"specificChanges,omitempty"`
}
