package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/smart-schedule/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report json names so callers can map failures back to payload fields
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := Validate.RegisterValidation("task_type", validateTaskType); err != nil {
		panic(fmt.Sprintf("failed to register task_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("intent", validateIntent); err != nil {
		panic(fmt.Sprintf("failed to register intent validator: %v", err))
	}
}

// validateTaskType validates that a string is a valid TaskType enum value
func validateTaskType(fl validator.FieldLevel) bool {
	_, ok := models.ParseTaskType(fl.Field().String())
	return ok
}

// validateIntent validates that a string names a known intent
func validateIntent(fl validator.FieldLevel) bool {
	_, ok := models.ParseIntent(fl.Field().String())
	return ok
}

// FailedFields returns the json names of the fields that failed validation.
// A non-validation error yields nil.
func FailedFields(err error) map[string]bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = true
	}
	return fields
}

// FieldError describes the first failing field in err for error messages
func FieldError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("field %q failed %q validation", fe.Field(), fe.Tag())
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateTaskType validates a TaskType string value
func ValidateTaskType(value string) error {
	if _, ok := models.ParseTaskType(value); !ok {
		return fmt.Errorf("invalid type: %s (must be 'course', 'trivial', 'work', or 'learning')", value)
	}
	return nil
}
