// internal/workers/calls/configure-call/models.go
package configurecall

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/services/calls"
)

type Input struct {
	auth.JobIdentity
	CallID        string              `json:"callId"`
	Configuration calls.Configuration `json:"configuration"`
}

type Output struct {
	CallID        string `json:"callId"`
	CallState     string `json:"callState"`
	TotalCapacity int    `json:"totalCapacity"`
	WeightTotal   int    `json:"weightTotal"`
	Publishable   bool   `json:"publishable"`
}
