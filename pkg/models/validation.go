package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhoneNumber(fl.Field().String())
	})

	return v
}

// Validator returns the shared validator, with the phone tag registered.
func Validator() *validator.Validate {
	return validate
}

// IsPhoneNumber reports whether s looks like an E.164 number.
func IsPhoneNumber(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidationResult is the outcome of validating a single node payload.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateNode checks required fields, ranges and patterns for a node payload.
func ValidateNode(nodeType NodeType, data NodeData) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}}

	expected, err := NewNodeData(nodeType)
	if err != nil {
		result.addError("%s", err.Error())

		return result
	}

	if data == nil {
		result.addError("data is required")

		return result
	}

	if reflect.TypeOf(expected) != reflect.TypeOf(data) {
		result.addError("data does not match node type %s", nodeType)

		return result
	}

	if err := validate.Struct(data); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			result.addError("%s", err.Error())

			return result
		}

		for _, fe := range fieldErrors {
			result.addError("%s", fieldErrorMessage(fe))
		}
	}

	addWarnings(&result, data)

	return result
}

func addWarnings(result *ValidationResult, data NodeData) {
	hasAudio := data.Audio().AudioURL != ""

	switch d := data.(type) {
	case *GreetingData:
		if d.Text == "" && !hasAudio {
			result.addError("text is required when no audio is attached")
		} else if !hasAudio {
			result.addWarning("no audio generated yet, native speech will be used")
		}
	case *InputData:
		if d.Prompt == "" && !hasAudio {
			result.addWarning("no prompt, the caller hears silence before input")
		}
	case *VoicemailData:
		if d.Prompt == "" && !hasAudio {
			result.addWarning("no prompt before the recording starts")
		}
	case *TransferData:
		if d.Destination == "" {
			result.addWarning("no destination, calls will follow the failed branch")
		}
	case *ConditionalData:
		pattern, ok := d.Value.(string)
		if d.Operator == OperatorRegex && ok && !strings.Contains(pattern, "{{") {
			if _, err := regexp.Compile(pattern); err != nil {
				result.addError("value is not a valid regular expression: %s", err.Error())
			}
		}
	case *AIAssistantData:
		if d.StreamURL == "" {
			result.addWarning("no stream url, calls will follow the error branch")
		}
	case *EndData:
		if d.Message == "" && !hasAudio {
			result.addWarning("no goodbye message")
		}
	}
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "phone":
		return field + " must be a valid phone number in E.164 format"
	case "url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
