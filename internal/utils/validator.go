package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/idest-edu/assignment-gateway/internal/errors"
	"github.com/idest-edu/assignment-gateway/internal/models"
)

// Validator wraps the struct validator with the gateway's custom tags.
type Validator struct {
	structValidator *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	registerCustomValidators(v)
	return &Validator{structValidator: v}
}

// Validate validates struct tags and converts failures to the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		return apperrors.ToValidationErrors(err)
	}
	return nil
}

func ValidateSkill(fl validator.FieldLevel) bool {
	return models.Skill(fl.Field().String()).Valid()
}

func ValidateInteractionKind(fl validator.FieldLevel) bool {
	return models.InteractionKind(fl.Field().String()).Valid()
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("skill", ValidateSkill)
	validate.RegisterValidation("interaction_kind", ValidateInteractionKind)

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
