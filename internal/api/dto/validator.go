package dto

import (
	"errors"

	v "github.com/go-ozzo/ozzo-validation/v4"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Validatable is implemented by every request body.
type Validatable interface {
	Validate() error
}

// validateStruct runs the field rules and reports violations keyed by json field name.
func validateStruct(structPtr interface{}, rules ...*v.FieldRules) error {
	err := v.ValidateStruct(structPtr, rules...)
	if err == nil {
		return nil
	}
	var fieldErrs v.Errors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInternalError(err)
	}
	details := make(map[string]any, len(fieldErrs))
	for field, fieldErr := range fieldErrs {
		details[field] = fieldErr.Error()
	}
	return apperrors.NewValidationError("validation failed", details)
}
