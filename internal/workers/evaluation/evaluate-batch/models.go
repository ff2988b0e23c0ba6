// internal/workers/evaluation/evaluate-batch/models.go
package evaluatebatch

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"
)

type Input struct {
	auth.JobIdentity
	CallID string `json:"callId"`
}

type Output struct {
	CallID            string                    `json:"callId"`
	Ranking           []models.RankedEvaluation `json:"ranking"`
	Errors            []models.ItemOutcome      `json:"errors"`
	RankedIDs         []string                  `json:"rankedApplicationIds"`
	Processed         int                       `json:"processed"`
	Succeeded         int                       `json:"succeeded"`
	Failed            int                       `json:"failed"`
	DurationMs        int64                     `json:"durationMs"`
	HasPartialFailure bool                      `json:"hasPartialFailure"`
}
