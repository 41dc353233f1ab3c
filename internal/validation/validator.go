// Shopgraph - E-Commerce Recommendation Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopgraph

// Package validation provides struct validation using go-playground/validator
// v10 behind a thread-safe singleton, with errors translated into field-level
// messages suitable for API responses.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationErrors aggregates all failures for one struct.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return strings.Join(msgs, "; ")
}

// getValidator returns the singleton instance. The validator caches struct
// metadata, so sharing one instance is both safe and faster.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Market ids are short lowercase country codes.
		_ = validate.RegisterValidation("market", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			if len(v) != 2 {
				return false
			}
			for _, r := range v {
				if r < 'a' || r > 'z' {
					return false
				}
			}
			return true
		})
	})
	return validate
}

// ValidateStruct validates s against its `validate` tags. Returns nil when
// valid, ValidationErrors otherwise.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid validation target: %w", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: messageFor(fe),
		})
	}
	return out
}

// messageFor translates a tag failure into a readable message.
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "market":
		return fmt.Sprintf("%s must be a two-letter lowercase market code", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
