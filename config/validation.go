package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints on every section, then the retry policy
// invariants and the observability settings.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return translateValidationError(err)
	}

	if err := cfg.Fetch.RateLimitingOptions().Validate(); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}

	if err := cfg.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}

	return nil
}

// translateValidationError turns the first validator failure into a ConfigError
// carrying the lowercase dotted key of the field.
func translateValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	fe := validationErrors[0]
	field := fieldKey(fe.Namespace())

	switch fe.Tag() {
	case "required":
		envVar := EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
		return NewMissingFieldError(field, envVar, field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("must be greater than %s", fe.Param()), nil)
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s validation", fe.Tag()), nil)
	}
}

// fieldKey converts "Config.Fetch.MaxRetries" to "fetch.maxretries"
func fieldKey(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	return strings.ToLower(rest)
}
