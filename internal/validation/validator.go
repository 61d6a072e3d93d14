// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package validation provides struct validation using go-playground/validator
// v10 through a thread-safe singleton instance. Failed validations are
// translated into the application error taxonomy as INVALID_ARGUMENT errors
// carrying a field -> messages map, which the API layer renders verbatim.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the singleton validator instance. It is initialized
// once with the custom validators registered; the instance caches struct
// metadata and is safe for concurrent use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// quality: one of the supported bitrate ladder steps.
		_ = validate.RegisterValidation("quality", func(fl validator.FieldLevel) bool {
			switch fl.Field().Int() {
			case 64, 96, 128, 192, 256, 320:
				return true
			}
			return false
		})

		// streamtype: supported stream delivery modes.
		_ = validate.RegisterValidation("streamtype", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "DIRECT", "CDN", "HLS":
				return true
			}
			return false
		})

		// devicetype: known device classes plus UNKNOWN.
		_ = validate.RegisterValidation("devicetype", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "MOBILE", "TABLET", "DESKTOP", "TV", "SMART_SPEAKER", "CAR", "UNKNOWN":
				return true
			}
			return false
		})
	})

	return validate
}

// ValidateStruct validates a struct using the singleton validator. It
// returns nil on success or an INVALID_ARGUMENT *apperrors.Error whose
// Fields map collects every failed field's messages.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "request validation failed", err)
	}

	fields := make(map[string][]string, len(validationErrs))
	var messages []string
	for _, fieldErr := range validationErrs {
		field := jsonFieldName(fieldErr)
		msg := translateError(fieldErr)
		fields[field] = append(fields[field], msg)
		messages = append(messages, msg)
	}

	return apperrors.New(apperrors.CodeInvalidArgument, strings.Join(messages, "; ")).WithFields(fields)
}

// jsonFieldName lowercases the first rune of the struct field name, which
// matches the camelCase JSON tags used throughout the request types.
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required":   "%s is required",
	"uuid":       "%s must be a valid UUID",
	"quality":    "%s must be one of the supported bitrates (64, 96, 128, 192, 256, 320)",
	"streamtype": "%s must be one of: DIRECT, CDN, HLS",
	"devicetype": "%s must be a known device type",
}

// errorMessageWithParam maps validation tags to templates that include the
// tag parameter.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

// translateError converts a validator.FieldError to a human-readable
// message keyed by the JSON field name.
func translateError(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

// translateMinMax handles min/max with type-specific messages.
func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind().String() == "string"

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
