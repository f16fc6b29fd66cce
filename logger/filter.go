package logger

import (
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output
const DefaultMaskValue = "***"

// FilterConfig defines which field names are considered sensitive
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of field or header names
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig covers credentials commonly found in request headers and query strings
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "secret",
			"api_key", "apikey", "api-key",
			"token", "authorization", "cookie",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they reach the log writer
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive, and strips URL passwords otherwise
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if value == "" {
		return value
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if isURL(value) {
		return f.maskURL(value)
	}
	return value
}

// FilterValue masks sensitive entries of header-like maps. Other values pass through.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}

	switch v := value.(type) {
	case string:
		return f.FilterString(key, v)
	case map[string]string:
		filtered := make(map[string]string, len(v))
		for k, val := range v {
			filtered[k] = f.FilterString(k, val)
		}
		return filtered
	case map[string][]string:
		filtered := make(map[string][]string, len(v))
		for k, vals := range v {
			if f.isSensitiveField(k) {
				filtered[k] = []string{f.config.MaskValue}
				continue
			}
			filtered[k] = vals
		}
		return filtered
	case map[string]any:
		return f.FilterFields(v)
	default:
		return value
	}
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// maskURL replaces the user info password and the values of sensitive
// query parameters while keeping the rest of the URL byte for byte.
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	masked := raw
	if parsed.User != nil {
		if password, hasPassword := parsed.User.Password(); hasPassword && password != "" {
			userInfo := parsed.User.String() + "@"
			masked = strings.Replace(masked, userInfo, parsed.User.Username()+":"+f.config.MaskValue+"@", 1)
		}
	}

	if parsed.RawQuery == "" {
		return masked
	}

	params := strings.Split(parsed.RawQuery, "&")
	changed := false
	for i, param := range params {
		name, _, found := strings.Cut(param, "=")
		if found && f.isSensitiveField(name) {
			params[i] = name + "=" + f.config.MaskValue
			changed = true
		}
	}
	if changed {
		masked = strings.Replace(masked, "?"+parsed.RawQuery, "?"+strings.Join(params, "&"), 1)
	}
	return masked
}
