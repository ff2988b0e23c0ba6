// internal/services/scoring/rules.go
package scoring

import (
	"context"
	"math"
	"sort"

	"scholarship-workers/internal/models"
)

const RulesModelVersion = "rules-v1"

// feature is one scored input with the baseline its signed contribution is measured against.
type feature struct {
	name     string
	label    string
	points   float64
	baseline float64
}

// RuleScorer is the deterministic default scorer.
type RuleScorer struct{}

func NewRuleScorer() *RuleScorer { return &RuleScorer{} }

func (RuleScorer) Name() string { return "rules" }

func (RuleScorer) Score(_ context.Context, in Input) (*models.ScoreResult, error) {
	socioFeatures := socioeconomicFeatures(in.Socioeconomic)
	academicFeatures := academicFeatures(in.Academic)

	socioRaw := math.Min(sumPoints(socioFeatures), models.MaxSocioeconomicScore)
	academicRaw := math.Min(sumPoints(academicFeatures), models.MaxAcademicScore)

	socioScale, academicScale := dimensionScales(in.Criteria)
	socio := clamp(socioRaw*socioScale, models.MaxSocioeconomicScore)
	academic := clamp(academicRaw*academicScale, models.MaxAcademicScore)

	scores := models.NewScores(round2(socio), round2(academic))
	recommendation, confidence := recommend(scores.Total)

	all := append(scale(socioFeatures, socioScale), scale(academicFeatures, academicScale)...)
	return &models.ScoreResult{
		Scores:         scores,
		Recommendation: recommendation,
		Confidence:     confidence,
		Attributions:   topAttributions(all, 5),
		ModelVersion:   RulesModelVersion,
	}, nil
}

func socioeconomicFeatures(f models.SocioeconomicForm) []feature {
	perCapita := f.PerCapitaIncome
	if perCapita == 0 && f.HouseholdMembers > 0 {
		perCapita = f.MonthlyHouseholdIncome / float64(f.HouseholdMembers)
	}
	var income float64
	switch {
	case perCapita < 500:
		income = 40
	case perCapita < 1000:
		income = 30
	case perCapita < 2000:
		income = 15
	default:
		income = 5
	}

	var dependents float64
	switch {
	case f.Dependents >= 4:
		dependents = 15
	case f.Dependents >= 2:
		dependents = 10
	default:
		dependents = 5
	}

	var special float64
	if f.HasDisability {
		special += 5
	}
	if f.IsSingleMother || f.IsSingleFather {
		special += 4
	}
	if f.FromRuralArea {
		special += 3
	}
	if f.IsWorking {
		special += 3
	}

	return []feature{
		{name: "per_capita_income", label: "Per capita income", points: income, baseline: 22.5},
		{name: "dependents", label: "Dependents", points: dependents, baseline: 10},
		{name: "special_situations", label: "Special situations", points: math.Min(special, 15), baseline: 0},
	}
}

func academicFeatures(f models.AcademicForm) []feature {
	var activities float64
	if f.UniversityActivities {
		activities += 2
	}
	if f.ResearchProjects {
		activities += 3
	}
	if f.AcademicAwards {
		activities++
	}

	features := []feature{
		{name: "grade_average", label: "Grade average", points: f.GradeAverage / 100 * 18, baseline: 9},
		{name: "activities", label: "University activities", points: math.Min(activities, 6), baseline: 0},
	}

	if f.SubjectsTaken > 0 {
		rate := float64(f.SubjectsPassed) / float64(f.SubjectsTaken)
		points := 2.0
		switch {
		case rate >= 0.9:
			points = 6
		case rate >= 0.75:
			points = 4
		}
		features = append(features, feature{name: "pass_rate", label: "Pass rate", points: points, baseline: 4})
	}
	return features
}

// dimensionScales converts the call's dimension weights into multipliers over the raw caps.
// Without criteria the raw scores are used unchanged.
func dimensionScales(criteria []models.Criterion) (socio, academic float64) {
	call := models.Call{Criteria: criteria}
	if call.WeightTotal() == 0 {
		return 1, 1
	}
	socio = float64(call.DimensionWeight(models.DimensionSocioeconomic)) / models.MaxSocioeconomicScore
	academic = float64(call.DimensionWeight(models.DimensionAcademic)) / models.MaxAcademicScore
	return socio, academic
}

func recommend(total float64) (models.Recommendation, float64) {
	var (
		rec        models.Recommendation
		confidence float64
	)
	switch {
	case total >= 75:
		rec, confidence = models.RecommendApprove, 90+(total-75)/2.5
	case total >= 60:
		rec, confidence = models.RecommendReview, 70+(total-60)/1.5
	default:
		rec, confidence = models.RecommendReject, 60+total/6
	}
	return rec, round2(math.Min(confidence, 99.5))
}

func scale(features []feature, factor float64) []feature {
	out := make([]feature, len(features))
	for i, f := range features {
		f.points *= factor
		f.baseline *= factor
		out[i] = f
	}
	return out
}

func topAttributions(features []feature, n int) []models.FeatureAttribution {
	attrs := make([]models.FeatureAttribution, 0, len(features))
	for _, f := range features {
		c := round2(f.points - f.baseline)
		impact := models.ImpactNeutral
		switch {
		case c > 0:
			impact = models.ImpactPositive
		case c < 0:
			impact = models.ImpactNegative
		}
		attrs = append(attrs, models.FeatureAttribution{Feature: f.name, Label: f.label, Contribution: c, Impact: impact})
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return math.Abs(attrs[i].Contribution) > math.Abs(attrs[j].Contribution)
	})
	if len(attrs) > n {
		attrs = attrs[:n]
	}
	return attrs
}

func sumPoints(features []feature) float64 {
	total := 0.0
	for _, f := range features {
		total += f.points
	}
	return total
}

func clamp(v, limit float64) float64 {
	return math.Max(0, math.Min(v, limit))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
