package schemas

import "time"

// IntelligenceMode selects how much learned context the classifier applies.
type IntelligenceMode string

const (
	IntelligenceLegacy      IntelligenceMode = "legacy"
	IntelligenceHybrid      IntelligenceMode = "hybrid"
	IntelligenceIntelligent IntelligenceMode = "intelligent"
	IntelligenceLearning    IntelligenceMode = "learning"
)

// ValidIntelligenceMode reports whether m is in the accepted allowlist.
func ValidIntelligenceMode(m IntelligenceMode) bool {
	switch m {
	case IntelligenceLegacy, IntelligenceHybrid, IntelligenceIntelligent, IntelligenceLearning:
		return true
	}
	return false
}

// SituationAnalysis is the classifier's read of a user intent against the
// current page.
type SituationAnalysis struct {
	UserIntent      string   `json:"user_intent"`
	URL             string   `json:"url"`
	PageTitle       string   `json:"page_title,omitempty"`
	PageType        PageType `json:"page_type"`
	Intent          Intent   `json:"intent"`
	Confidence      float64  `json:"confidence"`
	ComplexityScore float64  `json:"complexity_score"`
	Observations    []string `json:"observations,omitempty"`
}

// ActionRecommendation is the suggested next action for an analysis.
type ActionRecommendation struct {
	Action       ExecutableAction   `json:"action"`
	Rationale    string             `json:"rationale,omitempty"`
	Confidence   float64            `json:"confidence"`
	Alternatives []ExecutableAction `json:"alternatives,omitempty"`
}

// FeedbackRecord reports how a recommended action actually went, feeding the
// learning modes.
type FeedbackRecord struct {
	Recommendation  ActionRecommendation `json:"action_recommendation"`
	ActualResult    string               `json:"actual_result"`
	Success         bool                 `json:"success"`
	ExecutionTimeMs int64                `json:"execution_time_ms"`
	RecordedAt      time.Time            `json:"recorded_at,omitempty"`
}
