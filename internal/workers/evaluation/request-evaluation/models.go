// internal/workers/evaluation/request-evaluation/models.go
package requestevaluation

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"
)

type Input struct {
	auth.JobIdentity
	ApplicationID string `json:"applicationId"`
}

// Output is the preview handed to the evaluator's user task.
type Output struct {
	ApplicationID  string                      `json:"applicationId"`
	PreviewID      string                      `json:"previewId"`
	Scores         models.Scores               `json:"scores"`
	Recommendation string                      `json:"recommendation"`
	Confidence     float64                     `json:"confidence"`
	Attributions   []models.FeatureAttribution `json:"attributions"`
	ModelVersion   string                      `json:"modelVersion"`
	ExpiresAt      string                      `json:"previewExpiresAt"`
}
