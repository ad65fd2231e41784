package logger

import (
	"net/url"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in log output
	DefaultMaskValue = "***"

	// DefaultMaxDepth bounds recursion into nested maps and slices
	DefaultMaxDepth = 8
)

// FilterConfig defines which field names are considered sensitive.
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of the field name
	SensitiveFields []string
	// MaskValue replaces sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig covers the OAuth material the client handles.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "secret",
			"token", "access_token", "refresh_token",
			"authorization", "code_verifier", "client_secret",
			"cookie",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they are attached to log events.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter; a nil config selects DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks value when key is sensitive. URLs are always scrubbed of
// passwords and sensitive query parameters.
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

// FilterValue masks sensitive entries of maps, headers and slices.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, DefaultMaxDepth)
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if value == nil {
		return nil
	}
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case string:
		return f.FilterString(key, v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = f.filterValue(k, inner, depth-1)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, inner := range v {
			out[k] = f.FilterString(k, inner)
		}
		return out
	case map[string][]string: // http.Header and url.Values
		out := make(map[string][]string, len(v))
		for k, inner := range v {
			if f.isSensitiveField(k) {
				out[k] = []string{f.config.MaskValue}
				continue
			}
			out[k] = inner
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = f.filterValue(key, inner, depth-1)
		}
		return out
	default:
		return value
	}
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	if fieldName == "" {
		return false
	}
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

// maskURL masks the password and sensitive query parameters while keeping
// the rest of the URL readable.
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}

	changed := false
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), f.config.MaskValue)
			changed = true
		}
	}

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for k := range query {
			if f.isSensitiveField(k) {
				query.Set(k, f.config.MaskValue)
				changed = true
			}
		}
		if changed {
			parsed.RawQuery = query.Encode()
		}
	}

	if !changed {
		return raw
	}
	return parsed.String()
}
