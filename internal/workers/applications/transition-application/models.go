// internal/workers/applications/transition-application/models.go
package transitionapplication

import (
	"strings"

	"scholarship-workers/internal/common/auth"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Input struct {
	auth.JobIdentity
	ApplicationID string `json:"applicationId"`
	TargetState   string `json:"targetState"`
	Note          string `json:"note,omitempty"`
}

func (i *Input) Validate() error {
	i.TargetState = strings.ToUpper(strings.TrimSpace(i.TargetState))
	return validation.ValidateStruct(i,
		validation.Field(&i.ApplicationID, validation.Required),
		validation.Field(&i.TargetState, validation.Required),
		validation.Field(&i.Note, validation.Length(0, 2000)),
	)
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	ApplicationState string `json:"applicationState"`
	PreviousState    string `json:"previousApplicationState"`
}
