// internal/workers/applications/submit-application/models.go
package submitapplication

import "scholarship-workers/internal/common/auth"

type Input struct {
	auth.JobIdentity
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	ApplicationState string `json:"applicationState"`
	QuotaHandleID    string `json:"quotaHandleId"`
	SubmittedAt      string `json:"submittedAt"`
}
