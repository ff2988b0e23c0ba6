// internal/workers/decisions/approve-selected/models.go
package approveselected

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"
)

type Input struct {
	auth.JobIdentity
	ApplicationIDs []string `json:"applicationIds"`
}

type Output struct {
	Items             []models.ItemOutcome `json:"items"`
	Total             int                  `json:"total"`
	Succeeded         int                  `json:"succeeded"`
	Failed            int                  `json:"failed"`
	AssignedIDs       []string             `json:"assignedApplicationIds"`
	RoleGrantsPending []string             `json:"roleGrantsPending,omitempty"`
	HasPartialFailure bool                 `json:"hasPartialFailure"`
}
