// internal/workers/applications/withdraw-application/models.go
package withdrawapplication

import "scholarship-workers/internal/common/auth"

type Input struct {
	auth.JobIdentity
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	ApplicationState string `json:"applicationState"`
}
