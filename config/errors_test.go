package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigError
		expected string
	}{
		{
			name:     "missing_field",
			err:      NewMissingFieldError("app.name", "RATEFETCH_APP_NAME", "app.name"),
			expected: "config_missing: app.name required set RATEFETCH_APP_NAME env var or add app.name to config.yaml",
		},
		{
			name:     "invalid_with_options",
			err:      NewInvalidFieldError("log.level", "invalid value \"loud\"", []string{"debug", "info"}),
			expected: "config_invalid: log.level invalid value \"loud\" must be one of: debug, info",
		},
		{
			name:     "invalid_without_options",
			err:      NewInvalidFieldError("fetch.maxretries", "must be at least 0", nil),
			expected: "config_invalid: fetch.maxretries must be at least 0",
		},
		{
			name:     "with_details",
			err:      &ConfigError{Category: "invalid", Field: "f", Message: "m", Details: []string{"a", "b"}},
			expected: "config_invalid: f m a; b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestLoadErrorUnwraps(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewLoadError("config.yaml", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "config_load: config.yaml permission denied", err.Error())
}
