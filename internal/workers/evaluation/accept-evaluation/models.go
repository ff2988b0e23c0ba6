// internal/workers/evaluation/accept-evaluation/models.go
package acceptevaluation

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"
)

type Input struct {
	auth.JobIdentity
	ApplicationID string `json:"applicationId"`
	PreviewID     string `json:"previewId"`
}

type Output struct {
	ApplicationID    string        `json:"applicationId"`
	ApplicationState string        `json:"applicationState"`
	EvaluationID     string        `json:"evaluationId"`
	Scores           models.Scores `json:"scores"`
	Recommendation   string        `json:"recommendation"`
}
