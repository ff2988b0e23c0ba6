// internal/workers/applications/resubmit-application/models.go
package resubmitapplication

import "scholarship-workers/internal/common/auth"

type Input struct {
	auth.JobIdentity
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	ApplicationState string `json:"applicationState"`
	HoldsReservation bool   `json:"holdsReservation"`
}
