package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError is one rejected setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator collects every problem so they can be reported together.
type Validator struct {
	errors []ValidationError
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// AddError records a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether anything was rejected.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the collected errors.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorString formats every error, one per line.
func (v *Validator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Err returns nil when valid, otherwise an error listing every problem.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%s", strings.TrimRight(v.ErrorString(), "\n"))
}

// Required rejects an empty value.
func (v *Validator) Required(key, value string) {
	if value == "" {
		v.AddError(key, "required setting not provided")
	}
}

// URL rejects values that are not http(s) URLs with a host.
func (v *Validator) URL(key, value string) {
	if value == "" {
		return
	}
	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
		return
	}
	if parsed.Host == "" {
		v.AddError(key, "URL must include a host")
	}
}

// Endpoint accepts either a URL or a bare host:port.
func (v *Validator) Endpoint(key, value string) {
	if value == "" {
		return
	}
	if strings.Contains(value, "://") {
		v.URL(key, value)
		return
	}
	host, port, ok := strings.Cut(value, ":")
	if !ok || host == "" {
		v.AddError(key, "endpoint must be host:port or a URL")
		return
	}
	v.Port(key, port)
}

// Port accepts "8000" or ":8000" or "host:8000".
func (v *Validator) Port(key, value string) {
	if value == "" {
		return
	}
	if i := strings.LastIndex(value, ":"); i >= 0 {
		value = value[i+1:]
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// Enum rejects values outside allowed.
func (v *Validator) Enum(key, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Positive rejects n <= 0.
func (v *Validator) Positive(key string, n int64) {
	if n <= 0 {
		v.AddError(key, "must be a positive integer")
	}
}

// Email does a shallow address check.
func (v *Validator) Email(key, value string) {
	if value == "" {
		return
	}
	if !strings.Contains(value, "@") || !strings.Contains(value, ".") {
		v.AddError(key, "must be a valid email address")
	}
}
