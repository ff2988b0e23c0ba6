// internal/services/calls/validation.go
package calls

import (
	"fmt"
	"strings"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// validatePublishable holds for DRAFT -> PUBLISHED: capacity to hand out and weights summing to 100.
func validatePublishable(call *models.Call) error {
	var problems []string
	if call.TotalCapacity() <= 0 {
		problems = append(problems, "total quota capacity must be greater than 0")
	}
	if total := call.WeightTotal(); total != 100 {
		problems = append(problems, fmt.Sprintf("criterion weights sum to %d, expected 100", total))
	}
	if len(problems) > 0 {
		return errors.NewInvalidCallConfigurationError(strings.Join(problems, "; "))
	}
	return nil
}

// validateConfiguration checks field shapes. Weight totals are only enforced at publication.
func validateConfiguration(cfg Configuration) error {
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&cfg.Year, validation.Required, validation.Min(2000), validation.Max(2100)),
		validation.Field(&cfg.Period, validation.Required, validation.In(1, 2)),
	)
	if err != nil {
		return errors.NewInvalidCallConfigurationError(err.Error())
	}

	if cfg.OpensAt != nil && cfg.ClosesAt != nil && !cfg.ClosesAt.After(*cfg.OpensAt) {
		return errors.NewInvalidCallConfigurationError("closesAt must be after opensAt")
	}

	seen := make(map[string]bool, len(cfg.Quotas))
	for i, q := range cfg.Quotas {
		err := validation.ValidateStruct(&q,
			validation.Field(&q.ScholarshipType, validation.Required),
			validation.Field(&q.Faculty, validation.Required),
			validation.Field(&q.Capacity, validation.Min(0)),
		)
		if err != nil {
			return errors.NewInvalidCallConfigurationError(fmt.Sprintf("quotas[%d]: %s", i, err.Error()))
		}
		key := q.ScholarshipType + "/" + q.Faculty
		if seen[key] {
			return errors.NewInvalidCallConfigurationError(fmt.Sprintf("quotas[%d]: duplicate quota for %s", i, key))
		}
		seen[key] = true
	}

	for i, c := range cfg.Criteria {
		err := validation.ValidateStruct(&c,
			validation.Field(&c.Name, validation.Required),
			validation.Field(&c.Dimension, validation.Required,
				validation.In(models.DimensionSocioeconomic, models.DimensionAcademic)),
			validation.Field(&c.Weight, validation.Min(0), validation.Max(100)),
		)
		if err != nil {
			return errors.NewInvalidCallConfigurationError(fmt.Sprintf("criteria[%d]: %s", i, err.Error()))
		}
	}

	for i, r := range cfg.Requirements {
		err := validation.ValidateStruct(&r,
			validation.Field(&r.ID, validation.Required),
			validation.Field(&r.Name, validation.Required),
		)
		if err != nil {
			return errors.NewInvalidCallConfigurationError(fmt.Sprintf("requirements[%d]: %s", i, err.Error()))
		}
	}
	return nil
}
