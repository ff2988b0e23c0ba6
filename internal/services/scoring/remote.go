// internal/services/scoring/remote.go
package scoring

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"time"

	"scholarship-workers/internal/common/errors"
	httpclient "scholarship-workers/internal/common/http"
	"scholarship-workers/internal/models"
)

// Wire format of the ML evaluation service.
type remoteSocioeconomicForm struct {
	HouseholdMembers int     `json:"numero_miembros_familia"`
	Dependents       int     `json:"numero_dependientes"`
	MonthlyIncome    float64 `json:"ingreso_familiar_mensual"`
	PerCapitaIncome  float64 `json:"ingreso_per_capita"`
	HousingExpense   float64 `json:"gasto_vivienda_mensual"`
	FoodExpense      float64 `json:"gasto_alimentacion_mensual"`
	EducationExpense float64 `json:"gasto_educacion_mensual"`
	HealthExpense    float64 `json:"gasto_salud_mensual"`
	OtherExpenses    float64 `json:"otros_gastos_mensual"`
	HousingType      string  `json:"tipo_vivienda"`
	HasDisability    bool    `json:"tiene_discapacidad"`
	IsSingleMother   bool    `json:"es_madre_soltera"`
	IsSingleFather   bool    `json:"es_padre_soltero"`
	FromRuralArea    bool    `json:"proviene_area_rural"`
}

type remoteAcademicForm struct {
	GradeAverage         float64 `json:"promedio_general"`
	CurrentSemester      int     `json:"semestre_actual"`
	SubjectsPassed       int     `json:"materias_aprobadas"`
	SubjectsFailed       int     `json:"materias_reprobadas"`
	UniversityActivities bool    `json:"participa_actividades_universitarias"`
	ResearchProjects     bool    `json:"participa_proyectos_investigacion"`
	AcademicAwards       bool    `json:"tiene_reconocimientos_academicos"`
}

type remoteRequest struct {
	ApplicationID  string                  `json:"postulacion_id"`
	EvaluationType string                  `json:"tipo_evaluacion"`
	Weights        map[string]int          `json:"ponderaciones"`
	Socioeconomic  remoteSocioeconomicForm `json:"formulario_socioeconomico"`
	Academic       remoteAcademicForm      `json:"formulario_academico"`
}

type remoteFeature struct {
	Feature string  `json:"feature"`
	Name    string  `json:"nombre"`
	Value   float64 `json:"valor_shap"`
	Impact  string  `json:"impacto"`
}

type remoteResponse struct {
	Socioeconomic  float64         `json:"puntaje_socioeconomico"`
	Academic       float64         `json:"puntaje_academico"`
	Total          float64         `json:"puntaje_total"`
	Recommendation string          `json:"recomendacion"`
	Confidence     float64         `json:"confianza"`
	Features       []remoteFeature `json:"features_importantes"`
	ModelVersion   string          `json:"modelo_version"`
}

// RemoteScorer delegates to the ML evaluation service over HTTP.
type RemoteScorer struct {
	client *httpclient.Client
	url    string
}

func NewRemoteScorer(baseURL, path string, timeout time.Duration, maxRetries int) *RemoteScorer {
	if path == "" {
		path = "/evaluar"
	}
	return &RemoteScorer{
		client: httpclient.NewClient(timeout, maxRetries),
		url:    strings.TrimSuffix(baseURL, "/") + path,
	}
}

func (RemoteScorer) Name() string { return "remote" }

func (r *RemoteScorer) Score(ctx context.Context, in Input) (*models.ScoreResult, error) {
	call := models.Call{Criteria: in.Criteria}
	weights := map[string]int{
		"socioeconomico": int(models.MaxSocioeconomicScore),
		"academico":      int(models.MaxAcademicScore),
	}
	if call.WeightTotal() > 0 {
		weights["socioeconomico"] = call.DimensionWeight(models.DimensionSocioeconomic)
		weights["academico"] = call.DimensionWeight(models.DimensionAcademic)
	}

	s, a := in.Socioeconomic, in.Academic
	req := remoteRequest{
		ApplicationID:  in.ApplicationID,
		EvaluationType: "DEPENDENCIA_70_30",
		Weights:        weights,
		Socioeconomic: remoteSocioeconomicForm{
			HouseholdMembers: s.HouseholdMembers,
			Dependents:       s.Dependents,
			MonthlyIncome:    s.MonthlyHouseholdIncome,
			PerCapitaIncome:  s.PerCapitaIncome,
			HousingExpense:   s.HousingExpense,
			FoodExpense:      s.FoodExpense,
			EducationExpense: s.EducationExpense,
			HealthExpense:    s.HealthExpense,
			OtherExpenses:    s.OtherExpenses,
			HousingType:      s.HousingType,
			HasDisability:    s.HasDisability,
			IsSingleMother:   s.IsSingleMother,
			IsSingleFather:   s.IsSingleFather,
			FromRuralArea:    s.FromRuralArea,
		},
		Academic: remoteAcademicForm{
			GradeAverage:         a.GradeAverage,
			CurrentSemester:      a.CurrentSemester,
			SubjectsPassed:       a.SubjectsPassed,
			SubjectsFailed:       a.SubjectsFailed,
			UniversityActivities: a.UniversityActivities,
			ResearchProjects:     a.ResearchProjects,
			AcademicAwards:       a.AcademicAwards,
		},
	}

	var resp remoteResponse
	if err := r.client.PostJSON(ctx, r.url, req, &resp); err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.NewScoringTimeoutError(err)
		}
		return nil, errors.NewScoringServiceFailedError(err)
	}

	result := &models.ScoreResult{
		Scores: models.Scores{
			Socioeconomic: resp.Socioeconomic,
			Academic:      resp.Academic,
			Total:         resp.Total,
		},
		Recommendation: remoteRecommendation(resp.Recommendation),
		Confidence:     resp.Confidence,
		ModelVersion:   resp.ModelVersion,
	}
	for _, f := range resp.Features {
		result.Attributions = append(result.Attributions, models.FeatureAttribution{
			Feature:      f.Feature,
			Label:        f.Name,
			Contribution: f.Value,
			Impact:       remoteImpact(f.Impact),
		})
	}
	return result, nil
}

func remoteRecommendation(v string) models.Recommendation {
	switch strings.ToUpper(v) {
	case "APROBADO", "APPROVE":
		return models.RecommendApprove
	case "RECHAZADO", "REJECT":
		return models.RecommendReject
	default:
		return models.RecommendReview
	}
}

func remoteImpact(v string) models.Impact {
	switch strings.ToLower(v) {
	case "positivo", "positive":
		return models.ImpactPositive
	case "negativo", "negative":
		return models.ImpactNegative
	default:
		return models.ImpactNeutral
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
