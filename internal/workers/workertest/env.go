// internal/workers/workertest/env.go
package workertest

import (
	"context"
	"testing"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository/memory"
	"scholarship-workers/internal/services/applications"
	"scholarship-workers/internal/services/audit"
	"scholarship-workers/internal/services/calls"
	"scholarship-workers/internal/services/decisions"
	"scholarship-workers/internal/services/evaluation"
	"scholarship-workers/internal/services/quota"
	"scholarship-workers/internal/services/scoring"
)

const CallID = "call-1"

// Env wires every service over one in-memory store, the way worker-manager wires them over Postgres and Redis.
type Env struct {
	Store        *memory.Store
	Arena        *memory.PreviewArena
	Ledger       *quota.Ledger
	Calls        *calls.Manager
	Applications *applications.Manager
	Evaluation   *evaluation.Workflow
	Decisions    *decisions.Engine
	Roles        *RecordingRoles
	Log          logger.Logger
}

// RecordingRoles is a RoleGranter that remembers every grant.
type RecordingRoles struct {
	Granted []string
}

func (r *RecordingRoles) AssignRealmRole(_ context.Context, userID, _ string) error {
	r.Granted = append(r.Granted, userID)
	return nil
}

func New(t testing.TB) *Env {
	log := logger.NewTestLogger(t)
	store := memory.NewStore()
	recorder := audit.NewRecorder(store, nil, log)
	ledger := quota.NewLedger(store, log)
	arena := memory.NewPreviewArena()

	env := &Env{
		Store:  store,
		Arena:  arena,
		Ledger: ledger,
		Roles:  &RecordingRoles{},
		Log:    log,
	}
	env.Calls = calls.NewManager(store, store, recorder, log)
	env.Applications = applications.NewManager(store, store, ledger, recorder, config.ResubmitResumePrior, log)
	env.Evaluation = evaluation.NewWorkflow(store, store, store, arena,
		scoring.NewEngine(scoring.NewRuleScorer(), nil, log), recorder, nil,
		evaluation.Settings{PreviewTTL: time.Minute, BatchConcurrency: 2, BatchItemTimeout: 5 * time.Second}, log)
	env.Decisions = decisions.NewEngine(store, ledger, env.Roles, nil, recorder, "", log)
	return env
}

// PublishedCall seeds a PUBLISHED call with one FOOD quota for every faculty.
func (e *Env) PublishedCall(capacity int) {
	e.Store.PutCall(&models.Call{
		ID:     CallID,
		Title:  "Becas 2026-1",
		Year:   2026,
		Period: 1,
		State:  models.CallPublished,
		Quotas: []models.Quota{
			{ID: "q-food", CallID: CallID, ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: capacity},
		},
		Criteria: []models.Criterion{
			{ID: "c-socio", Dimension: models.DimensionSocioeconomic, Weight: 70},
			{ID: "c-academic", Dimension: models.DimensionAcademic, Weight: 30},
		},
	})
}

func (e *Env) SetCallState(state models.CallState) {
	call, err := e.Store.GetCall(context.Background(), CallID)
	if err != nil {
		panic(err)
	}
	call.State = state
	e.Store.PutCall(call)
}

func Socioeconomic() *models.SocioeconomicForm {
	return &models.SocioeconomicForm{
		HouseholdMembers:       4,
		Dependents:             2,
		MonthlyHouseholdIncome: 1600,
		HousingType:            "RENTED",
	}
}

func Academic() *models.AcademicForm {
	return &models.AcademicForm{
		GradeAverage:    82,
		CurrentSemester: 4,
		SubjectsTaken:   16,
		SubjectsPassed:  15,
	}
}

// Draft creates a DRAFT application with both forms attached.
func (e *Env) Draft(t testing.TB, applicantID string) *models.Application {
	ctx := ApplicantCtx(applicantID)
	app, err := e.Applications.Create(ctx, applications.CreateRequest{CallID: CallID, ScholarshipType: "FOOD", Faculty: "LAW"})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	app, err = e.Applications.SaveForms(ctx, applications.FormsRequest{
		ApplicationID: app.ID,
		Socioeconomic: Socioeconomic(),
		Academic:      Academic(),
	})
	if err != nil {
		t.Fatalf("save forms: %v", err)
	}
	return app
}

// Received drafts and submits an application.
func (e *Env) Received(t testing.TB, applicantID string) *models.Application {
	app := e.Draft(t, applicantID)
	app, err := e.Applications.Submit(ApplicantCtx(applicantID), app.ID)
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}
	return app
}

// Evaluated takes an application through submission and an accepted evaluation.
func (e *Env) Evaluated(t testing.TB, applicantID string) *models.Application {
	app := e.Received(t, applicantID)
	preview, err := e.Evaluation.RequestEvaluation(DirectorCtx(), app.ID)
	if err != nil {
		t.Fatalf("request evaluation: %v", err)
	}
	if _, err := e.Evaluation.Accept(DirectorCtx(), app.ID, preview.ID); err != nil {
		t.Fatalf("accept evaluation: %v", err)
	}
	app, err = e.Store.GetApplication(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("reload application: %v", err)
	}
	return app
}

func AdminCtx() context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: "admin-1", Role: auth.RoleAdmin})
}

func DirectorCtx() context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: "director-1", Role: auth.RoleDirector})
}

func ApplicantCtx(id string) context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: id, Role: auth.RoleApplicant})
}
