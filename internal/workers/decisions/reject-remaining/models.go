// internal/workers/decisions/reject-remaining/models.go
package rejectremaining

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"
)

type Input struct {
	auth.JobIdentity
	ApplicationIDs []string `json:"applicationIds"`
	Reason         string   `json:"reason"`
}

type Output struct {
	Items             []models.ItemOutcome `json:"items"`
	Total             int                  `json:"total"`
	Succeeded         int                  `json:"succeeded"`
	Failed            int                  `json:"failed"`
	RejectedIDs       []string             `json:"rejectedApplicationIds"`
	HasPartialFailure bool                 `json:"hasPartialFailure"`
}
