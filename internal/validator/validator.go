package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/SAP-F-2025/course-player/internal/errors"
	"github.com/SAP-F-2025/course-player/internal/models"
)

// Validator wraps go-playground/validator with the player's custom tags
type Validator struct {
	structValidator *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	registerCustomValidators(v)
	return &Validator{structValidator: v}
}

// Validate checks struct tags and returns ValidationErrors on failure.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func (v *Validator) Engine() *validator.Validate {
	return v.structValidator
}

func registerCustomValidators(validate *validator.Validate) {
	_ = validate.RegisterValidation("violation_kind", validateViolationKind)
	_ = validate.RegisterValidation("content_kind", validateContentKind)
	_ = validate.RegisterValidation("item_ref", validateItemRef)

	// report json names in errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateViolationKind(fl validator.FieldLevel) bool {
	return models.ProctoringEventType(fl.Field().String()).IsViolation()
}

func validateContentKind(fl validator.FieldLevel) bool {
	return models.ContentKind(fl.Field().String()).Valid()
}

func validateItemRef(fl validator.FieldLevel) bool {
	_, err := models.ParseItemRef(fl.Field().String())
	return err == nil
}
