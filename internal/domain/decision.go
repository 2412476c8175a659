package domain

import "time"

// HypothesisCategory enumerates root-cause categories for hypotheses.
type HypothesisCategory string

const (
	HypothesisPlatformBug    HypothesisCategory = "PLATFORM_BUG"
	HypothesisMigrationError HypothesisCategory = "MIGRATION_ERROR"
	HypothesisConfigError    HypothesisCategory = "CONFIG_ERROR"
	HypothesisDocsGap        HypothesisCategory = "DOCS_GAP"
)

// HypothesisCategories lists every valid hypothesis category.
func HypothesisCategories() []HypothesisCategory {
	return []HypothesisCategory{
		HypothesisPlatformBug,
		HypothesisMigrationError,
		HypothesisConfigError,
		HypothesisDocsGap,
	}
}

// Hypothesis is one candidate explanation of a ticket's root cause.
type Hypothesis struct {
	Name       string             `json:"name"`
	Category   HypothesisCategory `json:"category"`
	Confidence float64            `json:"confidence"`
	Evidence   []string           `json:"evidence"`
}

// DiagnosisResult is the structured output of a diagnosis attempt.
// A complete result always carries exactly three hypotheses whose
// confidences sum to 1.0 after normalization. Degraded marks results
// produced by the fallback path so operators can tell total dependency
// failure apart from genuine low-confidence reasoning.
type DiagnosisResult struct {
	Hypotheses        []Hypothesis `json:"hypotheses"`
	RootCause         string       `json:"root_cause"`
	RecommendedAction string       `json:"recommended_action"`
	Degraded          bool         `json:"degraded"`
	UncertaintyNote   string       `json:"uncertainty_note,omitempty"`
}

// RiskLevel grades the blast radius of a proposed action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ActionType records how a decision was acted upon.
type ActionType string

const (
	ActionAutoExecuted  ActionType = "auto_executed"
	ActionHumanApproved ActionType = "human_approved"
	ActionRejected      ActionType = "rejected"
	ActionEscalated     ActionType = "escalated"
)

// Decision is the persisted record of a diagnosis attempt. Decisions are
// append-only; one ticket may accumulate several, with latest-by-time as
// the authoritative view.
type Decision struct {
	ID             string
	TicketID       string
	AgentID        string
	Diagnosis      DiagnosisResult
	ProposedAction string
	ActionType     *ActionType
	RiskLevel      RiskLevel
	CreatedAt      time.Time
	ExecutedAt     *time.Time
	ExecutedBy     *string
}
