// internal/workers/applications/observe-application/models.go
package observeapplication

import "scholarship-workers/internal/common/auth"

type Input struct {
	auth.JobIdentity
	ApplicationID string `json:"applicationId"`
	Note          string `json:"observationNote"`
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	ApplicationState string `json:"applicationState"`
	PriorState       string `json:"priorState"`
}
