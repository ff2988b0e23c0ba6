// internal/workers/evaluation/override-evaluation/models.go
package overrideevaluation

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"
)

// Input of override-evaluation. Only editedScores.socioeconomic and editedScores.academic are read;
// the stored total is derived from them.
type Input struct {
	auth.JobIdentity
	ApplicationID string        `json:"applicationId"`
	PreviewID     string        `json:"previewId"`
	EditedScores  models.Scores `json:"editedScores"`
	Justification string        `json:"justification"`
}

type Output struct {
	ApplicationID    string        `json:"applicationId"`
	ApplicationState string        `json:"applicationState"`
	EvaluationID     string        `json:"evaluationId"`
	OverrideID       string        `json:"overrideId"`
	OriginalScores   models.Scores `json:"originalScores"`
	Scores           models.Scores `json:"scores"`
}
