// internal/workers/calls/change-call-state/models.go
package changecallstate

import (
	"strings"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Input struct {
	auth.JobIdentity
	CallID      string `json:"callId"`
	TargetState string `json:"targetState"`
}

func (i *Input) Validate() error {
	i.TargetState = strings.ToUpper(strings.TrimSpace(i.TargetState))
	return validation.ValidateStruct(i,
		validation.Field(&i.CallID, validation.Required),
		validation.Field(&i.TargetState, validation.Required, validation.In(
			string(models.CallDraft), string(models.CallPublished), string(models.CallPaused),
			string(models.CallClosed), string(models.CallFinalized),
		)),
	)
}

type Output struct {
	CallID        string `json:"callId"`
	CallState     string `json:"callState"`
	PreviousState string `json:"previousCallState"`
	Changed       bool   `json:"callStateChanged"`
}
