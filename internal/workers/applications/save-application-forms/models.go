// internal/workers/applications/save-application-forms/models.go
package saveapplicationforms

import (
	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/models"
)

type Input struct {
	auth.JobIdentity
	ApplicationID string                        `json:"applicationId"`
	Socioeconomic *models.SocioeconomicForm     `json:"socioeconomicForm,omitempty"`
	Academic      *models.AcademicForm          `json:"academicForm,omitempty"`
	Documents     map[string]models.DocumentRef `json:"documents,omitempty"`
}

type Output struct {
	ApplicationID    string   `json:"applicationId"`
	ApplicationState string   `json:"applicationState"`
	FormsComplete    bool     `json:"formsComplete"`
	Missing          []string `json:"missing,omitempty"`
}
