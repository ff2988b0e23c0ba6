// internal/workers/applications/create-application/models.go
package createapplication

import (
	"scholarship-workers/internal/common/auth"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Input struct {
	auth.JobIdentity
	CallID          string `json:"callId"`
	ScholarshipType string `json:"scholarshipType"`
	Faculty         string `json:"faculty"`
}

func (i Input) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.CallID, validation.Required),
		validation.Field(&i.ScholarshipType, validation.Required, validation.Length(1, 50)),
		validation.Field(&i.Faculty, validation.Required, validation.Length(1, 100)),
	)
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	ApplicationState string `json:"applicationState"`
	ApplicantID      string `json:"applicantId"`
}
