// internal/models/evaluation.go
package models

import (
	"fmt"
	"math"
	"time"
)

// Scores is the composite score triple.
type Scores struct {
	Socioeconomic float64 `json:"socioeconomic"`
	Academic      float64 `json:"academic"`
	Total         float64 `json:"total"`
}

const scoreEpsilon = 1e-6

// NewScores builds a triple whose total is the exact sum of both dimensions.
func NewScores(socioeconomic, academic float64) Scores {
	return Scores{
		Socioeconomic: socioeconomic,
		Academic:      academic,
		Total:         socioeconomic + academic,
	}
}

// CheckBounds returns a description of the first violated bound, or "" when the triple is valid.
func (s Scores) CheckBounds() string {
	switch {
	case math.IsNaN(s.Socioeconomic) || math.IsNaN(s.Academic) || math.IsNaN(s.Total):
		return "score is not a number"
	case s.Socioeconomic < 0 || s.Socioeconomic > MaxSocioeconomicScore:
		return fmt.Sprintf("socioeconomic %.2f outside [0,%.0f]", s.Socioeconomic, MaxSocioeconomicScore)
	case s.Academic < 0 || s.Academic > MaxAcademicScore:
		return fmt.Sprintf("academic %.2f outside [0,%.0f]", s.Academic, MaxAcademicScore)
	case math.Abs(s.Total-(s.Socioeconomic+s.Academic)) > scoreEpsilon:
		return fmt.Sprintf("total %.2f is not socioeconomic + academic (%.2f)", s.Total, s.Socioeconomic+s.Academic)
	}
	return ""
}

type Recommendation string

const (
	RecommendApprove Recommendation = "APPROVE"
	RecommendReview  Recommendation = "REVIEW"
	RecommendReject  Recommendation = "REJECT"
)

type Impact string

const (
	ImpactPositive Impact = "POSITIVE"
	ImpactNegative Impact = "NEGATIVE"
	ImpactNeutral  Impact = "NEUTRAL"
)

// FeatureAttribution is opaque explainability payload carried unchanged from the scorer.
type FeatureAttribution struct {
	Feature      string  `json:"feature"`
	Label        string  `json:"label,omitempty"`
	Contribution float64 `json:"contribution"`
	Impact       Impact  `json:"impact"`
}

type EvaluationSource string

const (
	SourceSingle EvaluationSource = "SINGLE"
	SourceBatch  EvaluationSource = "BATCH"
)

// ScoreResult is what the scoring engine hands back for one application.
type ScoreResult struct {
	Scores         Scores               `json:"scores"`
	Recommendation Recommendation       `json:"recommendation"`
	Confidence     float64              `json:"confidence"`
	Attributions   []FeatureAttribution `json:"attributions"`
	ModelVersion   string               `json:"modelVersion"`
	ProcessingMs   int64                `json:"processingMs"`
}

// EvaluationRecord is append-only. Only one per application is current.
type EvaluationRecord struct {
	ID             string               `json:"id"`
	ApplicationID  string               `json:"applicationId"`
	PreviewID      string               `json:"previewId"`
	Scores         Scores               `json:"scores"`
	Recommendation Recommendation       `json:"recommendation"`
	Confidence     float64              `json:"confidence"`
	Attributions   []FeatureAttribution `json:"attributions"`
	ModelVersion   string               `json:"modelVersion"`
	ProcessingMs   int64                `json:"processingMs"`
	Source         EvaluationSource     `json:"source"`
	Accepted       bool                 `json:"accepted"`
	Overridden     bool                 `json:"overridden"`
	Current        bool                 `json:"current"`
	EvaluatedBy    string               `json:"evaluatedBy"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// OverrideRecord keeps both the scorer's triple and the human correction.
type OverrideRecord struct {
	ID             string    `json:"id"`
	EvaluationID   string    `json:"evaluationId"`
	ApplicationID  string    `json:"applicationId"`
	PreviewID      string    `json:"previewId"`
	OriginalScores Scores    `json:"originalScores"`
	EditedScores   Scores    `json:"editedScores"`
	Justification  string    `json:"justification"`
	EditorID       string    `json:"editorId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Preview is a tentative evaluation held in the arena until accepted, overridden or expired.
type Preview struct {
	ID            string      `json:"id"`
	ApplicationID string      `json:"applicationId"`
	Result        ScoreResult `json:"result"`
	RequestedBy   string      `json:"requestedBy"`
	CreatedAt     time.Time   `json:"createdAt"`
	ExpiresAt     time.Time   `json:"expiresAt"`
}

// Record turns the preview into the evaluation record that will be persisted.
func (p *Preview) Record(id, evaluatedBy string, source EvaluationSource, at time.Time) *EvaluationRecord {
	return &EvaluationRecord{
		ID:             id,
		ApplicationID:  p.ApplicationID,
		PreviewID:      p.ID,
		Scores:         p.Result.Scores,
		Recommendation: p.Result.Recommendation,
		Confidence:     p.Result.Confidence,
		Attributions:   p.Result.Attributions,
		ModelVersion:   p.Result.ModelVersion,
		ProcessingMs:   p.Result.ProcessingMs,
		Source:         source,
		Accepted:       true,
		Current:        true,
		EvaluatedBy:    evaluatedBy,
		CreatedAt:      at,
	}
}
