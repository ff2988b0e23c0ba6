// internal/models/application.go
package models

import "time"

type ApplicationState string

const (
	ApplicationDraft               ApplicationState = "DRAFT"
	ApplicationReceived            ApplicationState = "RECEIVED"
	ApplicationEvaluated           ApplicationState = "EVALUATED"
	ApplicationApproved            ApplicationState = "APPROVED"
	ApplicationRejected            ApplicationState = "REJECTED"
	ApplicationScholarshipAssigned ApplicationState = "SCHOLARSHIP_ASSIGNED"
	ApplicationObserved            ApplicationState = "OBSERVED"
	ApplicationWithdrawn           ApplicationState = "WITHDRAWN"
)

func (s ApplicationState) Valid() bool {
	switch s {
	case ApplicationDraft, ApplicationReceived, ApplicationEvaluated, ApplicationApproved,
		ApplicationRejected, ApplicationScholarshipAssigned, ApplicationObserved, ApplicationWithdrawn:
		return true
	}
	return false
}

// Final states are records that never change again.
func (s ApplicationState) Final() bool {
	switch s {
	case ApplicationRejected, ApplicationScholarshipAssigned, ApplicationWithdrawn:
		return true
	}
	return false
}

// Observable states may be returned to the applicant for correction.
func (s ApplicationState) Observable() bool {
	switch s {
	case ApplicationDraft, ApplicationReceived, ApplicationEvaluated:
		return true
	}
	return false
}

// Withdrawable states may be abandoned by the applicant.
func (s ApplicationState) Withdrawable() bool {
	switch s {
	case ApplicationDraft, ApplicationReceived, ApplicationObserved, ApplicationEvaluated:
		return true
	}
	return false
}

// Editable states accept form and document changes.
func (s ApplicationState) Editable() bool {
	return s == ApplicationDraft || s == ApplicationObserved
}

// UnresolvedStates block call finalization.
var UnresolvedStates = []ApplicationState{ApplicationReceived, ApplicationEvaluated, ApplicationObserved}

// WorkflowOnly reports whether from -> to may only be taken by the evaluation or decision workflow.
func WorkflowOnly(from, to ApplicationState) bool {
	switch {
	case from == ApplicationReceived && to == ApplicationEvaluated:
		return true
	case from == ApplicationEvaluated && (to == ApplicationApproved || to == ApplicationRejected):
		return true
	case from == ApplicationApproved && to == ApplicationScholarshipAssigned:
		return true
	}
	return false
}

type SocioeconomicForm struct {
	HouseholdMembers       int     `json:"householdMembers"`
	Dependents             int     `json:"dependents"`
	MonthlyHouseholdIncome float64 `json:"monthlyHouseholdIncome"`
	PerCapitaIncome        float64 `json:"perCapitaIncome"`
	HousingExpense         float64 `json:"housingExpense"`
	FoodExpense            float64 `json:"foodExpense"`
	EducationExpense       float64 `json:"educationExpense"`
	HealthExpense          float64 `json:"healthExpense"`
	OtherExpenses          float64 `json:"otherExpenses"`
	HousingType            string  `json:"housingType"`
	HasDisability          bool    `json:"hasDisability"`
	IsSingleMother         bool    `json:"isSingleMother"`
	IsSingleFather         bool    `json:"isSingleFather"`
	FromRuralArea          bool    `json:"fromRuralArea"`
	IsWorking              bool    `json:"isWorking"`
}

type AcademicForm struct {
	GradeAverage         float64 `json:"gradeAverage"`
	CurrentSemester      int     `json:"currentSemester"`
	SubjectsTaken        int     `json:"subjectsTaken"`
	SubjectsPassed       int     `json:"subjectsPassed"`
	SubjectsFailed       int     `json:"subjectsFailed"`
	UniversityActivities bool    `json:"universityActivities"`
	ResearchProjects     bool    `json:"researchProjects"`
	AcademicAwards       bool    `json:"academicAwards"`
}

// DocumentRef is the stable reference the document store returned for one requirement.
type DocumentRef struct {
	RequirementID string    `json:"requirementId"`
	StorageRef    string    `json:"storageRef"`
	SHA256        string    `json:"sha256,omitempty"`
	Version       int       `json:"version"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

type Application struct {
	ID                  string                 `json:"id"`
	CallID              string                 `json:"callId"`
	ScholarshipType     string                 `json:"scholarshipType"`
	Faculty             string                 `json:"faculty"`
	ApplicantID         string                 `json:"applicantId"`
	State               ApplicationState       `json:"state"`
	PriorState          ApplicationState       `json:"priorState,omitempty"`
	Score               *Scores                `json:"score,omitempty"`
	CurrentEvaluationID string                 `json:"currentEvaluationId,omitempty"`
	SocioeconomicForm   *SocioeconomicForm     `json:"socioeconomicForm,omitempty"`
	AcademicForm        *AcademicForm          `json:"academicForm,omitempty"`
	Documents           map[string]DocumentRef `json:"documents,omitempty"`
	QuotaHandleID       string                 `json:"quotaHandleId,omitempty"`
	ObservationNote     string                 `json:"observationNote,omitempty"`
	DecisionReason      string                 `json:"decisionReason,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	SubmittedAt         *time.Time             `json:"submittedAt,omitempty"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

// MissingForSubmission lists what blocks submission given the mandatory requirement ids.
func (a *Application) MissingForSubmission(mandatory []string) []string {
	var missing []string
	if a.SocioeconomicForm == nil {
		missing = append(missing, "socioeconomicForm")
	}
	if a.AcademicForm == nil {
		missing = append(missing, "academicForm")
	}
	for _, id := range mandatory {
		doc, ok := a.Documents[id]
		if !ok || doc.StorageRef == "" {
			missing = append(missing, "requirement:"+id)
		}
	}
	return missing
}

// StateChange is a compare-and-set update of an application. Nil pointers leave columns untouched.
type StateChange struct {
	ApplicationID   string
	From            ApplicationState
	To              ApplicationState
	PriorState      *ApplicationState
	QuotaHandleID   *string
	SubmittedAt     *time.Time
	ObservationNote *string
	DecisionReason  *string
	ClearScore      bool
	At              time.Time
}
