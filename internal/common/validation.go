package common

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// Validator collects field-level failures so a request can be rejected with
// everything wrong at once.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies each rule to the value and records failures.
func (v *Validator) Field(fieldName string, value string, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Err returns a *ValidationError summarizing every failure, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Message+" ("+err.Field+")")
	}
	return &ValidationError{
		Field:   v.errors[0].Field,
		Message: strings.Join(messages, "; "),
	}
}

// ValidationRule checks one field value.
type ValidationRule func(fieldName, value string) *ValidationError

func Required(fieldName, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: fieldName, Message: "is required"}
	}
	return nil
}

func MaxLength(max int) ValidationRule {
	return func(fieldName, value string) *ValidationError {
		if utf8.RuneCountInString(value) > max {
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("must be at most %d characters", max),
			}
		}
		return nil
	}
}

// HTTPURL accepts absolute http/https URLs; empty values pass so it can be
// combined with Required only where the field is mandatory.
func HTTPURL(fieldName, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: fieldName, Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// OneOf restricts a non-empty value to the given set.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName, value string) *ValidationError {
		if strings.TrimSpace(value) == "" {
			return nil
		}
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return &ValidationError{
			Field:   fieldName,
			Message: "must be one of: " + strings.Join(allowed, ", "),
		}
	}
}
