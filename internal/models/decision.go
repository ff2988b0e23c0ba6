// internal/models/decision.go
package models

import "time"

type ItemStatus string

const (
	ItemSucceeded ItemStatus = "SUCCESS"
	ItemFailed    ItemStatus = "ERROR"
)

// ItemOutcome is one tagged entry of a bulk operation result.
type ItemOutcome struct {
	ApplicationID    string           `json:"applicationId"`
	Status           ItemStatus       `json:"status"`
	State            ApplicationState `json:"state,omitempty"`
	ErrorCode        string           `json:"errorCode,omitempty"`
	Error            string           `json:"error,omitempty"`
	AlreadyApplied   bool             `json:"alreadyApplied,omitempty"`
	RoleGrantPending bool             `json:"roleGrantPending,omitempty"`
}

// BatchResult aggregates per-item outcomes; partial success is normal.
type BatchResult struct {
	Items     []ItemOutcome `json:"items"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

func (b *BatchResult) Add(item ItemOutcome) {
	b.Items = append(b.Items, item)
	b.Total++
	if item.Status == ItemSucceeded {
		b.Succeeded++
	} else {
		b.Failed++
	}
}

// SucceededIDs lists the applications whose item succeeded.
func (b *BatchResult) SucceededIDs() []string {
	ids := make([]string, 0, b.Succeeded)
	for _, item := range b.Items {
		if item.Status == ItemSucceeded {
			ids = append(ids, item.ApplicationID)
		}
	}
	return ids
}

// RankedEvaluation is one successful entry of a batch evaluation.
type RankedEvaluation struct {
	Rank          int            `json:"rank"`
	ApplicationID string         `json:"applicationId"`
	EvaluationID  string         `json:"evaluationId"`
	Scores        Scores         `json:"scores"`
	Recommend     Recommendation `json:"recommendation"`
	SubmittedAt   time.Time      `json:"submittedAt"`
}

// BatchEvaluationResult is the structured payload of evaluateBatch.
type BatchEvaluationResult struct {
	CallID    string             `json:"callId"`
	Ranking   []RankedEvaluation `json:"ranking"`
	Errors    []ItemOutcome      `json:"errors"`
	Processed int                `json:"processed"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Duration  time.Duration      `json:"durationNs"`
}

// DecisionNotice is sent to collaborators after an application is resolved.
type DecisionNotice struct {
	ApplicationID string           `json:"applicationId"`
	CallID        string           `json:"callId"`
	ApplicantID   string           `json:"applicantId"`
	Outcome       ApplicationState `json:"outcome"`
	Reason        string           `json:"reason,omitempty"`
	DecidedBy     string           `json:"decidedBy"`
	DecidedAt     time.Time        `json:"decidedAt"`
}
