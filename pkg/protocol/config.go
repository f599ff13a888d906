package protocol

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/flowengine/pkg/flowerrors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		if name == "" {
			return field.Name
		}

		return name
	})

	return v
}

// DecodeConfig decodes node data into a typed configuration struct and runs
// its validate tags. Failures carry the VALIDATION_ERROR code.
func DecodeConfig(data map[string]any, target any) error {
	if data == nil {
		data = map[string]any{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return flowerrors.Wrap(flowerrors.CodeValidationError, fmt.Errorf("failed to encode node data: %w", err))
	}

	err = json.Unmarshal(raw, target)
	if err != nil {
		return flowerrors.Wrap(flowerrors.CodeValidationError, fmt.Errorf("failed to decode node data: %w", err))
	}

	problems := describe(validate.Struct(target))
	if len(problems) > 0 {
		return flowerrors.New(flowerrors.CodeValidationError, strings.Join(problems, "; "))
	}

	return nil
}

// ValidateConfig decodes node data into target and returns the problems found.
// Templated values are resolved at run time, so they are left out here.
func ValidateConfig(data map[string]any, target any) []string {
	static := make(map[string]any, len(data))
	templated := make(map[string]bool)

	for key, value := range data {
		if s, ok := value.(string); ok && strings.Contains(s, "{{") {
			templated[key] = true

			continue
		}

		static[key] = value
	}

	err := DecodeConfig(static, target)
	if err == nil {
		return nil
	}

	problems := make([]string, 0)

	for _, problem := range strings.Split(flowerrors.Message(err), "; ") {
		field, _, _ := strings.Cut(problem, " ")
		if templated[field] {
			continue
		}

		problems = append(problems, problem)
	}

	return problems
}

func describe(err error) []string {
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(fieldErrors))

	for _, fieldErr := range fieldErrors {
		field := fieldErr.Namespace()
		if _, rest, found := strings.Cut(field, "."); found {
			field = rest
		}

		switch fieldErr.Tag() {
		case "required":
			problems = append(problems, field+" is required")
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s must be one of [%s]", field, fieldErr.Param()))
		case "min", "gte":
			problems = append(problems, fmt.Sprintf("%s must be at least %s", field, fieldErr.Param()))
		case "max", "lte":
			problems = append(problems, fmt.Sprintf("%s must be at most %s", field, fieldErr.Param()))
		case "url", "http_url":
			problems = append(problems, field+" must be a valid URL")
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s validation", field, fieldErr.Tag()))
		}
	}

	return problems
}
