// Package validation checks request payloads with go-playground/validator and
// turns failures into application errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"murmur/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		panic(err)
	}
	// "content" marks post and comment bodies so failures carry MISSING_CONTENT.
	v.RegisterAlias("content", "notblank")
	return v
}

// notBlank rejects strings that are empty after trimming whitespace.
func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(field.String()) != ""
}

// Struct validates s. The first failing rule is reported as a VALIDATION_ERROR:
// "content" as MISSING_CONTENT, "required" and "notblank" as MISSING_FIELD,
// anything else as INVALID_FIELD.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return models.NewInternalError(err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "content":
		return models.NewValidationError(models.ReasonMissingContent, fmt.Sprintf("%s is required", fe.Field()))
	case "required", "notblank":
		return models.NewValidationError(models.ReasonMissingField, fmt.Sprintf("%s is required", fe.Field()))
	case "max":
		return models.NewValidationError(models.ReasonInvalidField, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	default:
		return models.NewValidationError(models.ReasonInvalidField, fmt.Sprintf("%s is invalid", fe.Field()))
	}
}
