package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/gaborage/lichess-go/httpclient"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report koanf paths (api.baseurl) instead of Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg against its struct tags. The first failing field is
// reported as a *ConfigError; further failures are listed in its Details.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewInvalidFieldError("config", "cannot be nil", nil)
	}

	err := structValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("config validation: %w", err)
	}

	first := fieldError(fieldErrs[0])
	for _, fe := range fieldErrs[1:] {
		first.Details = append(first.Details, fieldError(fe).Error())
	}
	return first
}

func fieldError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "url":
		return NewInvalidFieldError(field, fmt.Sprintf("%q is not a valid absolute url", fmt.Sprint(fe.Value())), nil)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("unsupported value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("must be greater than %s", fe.Param()), nil)
	case "min":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	case "max":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at most %s", fe.Param()), nil)
	case "ltefield":
		return NewInvalidFieldError(field, fmt.Sprintf("must not exceed %s", strings.ToLower(fe.Param())), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %q validation", fe.Tag()), nil)
	}
}

// fieldPath strips the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

// RetryPolicy converts the retry section into the transport's retry policy.
func (c *Config) RetryPolicy() httpclient.RetryPolicy {
	return httpclient.RetryPolicy{
		RetryOnRateLimit:      c.Retry.RateLimit.Enabled,
		MaxRateLimitRetries:   c.Retry.RateLimit.MaxRetries,
		RateLimitDefaultDelay: c.Retry.RateLimit.DefaultDelay,
		RetryTransient:        c.Retry.Transient.Enabled,
		MaxTransientRetries:   c.Retry.Transient.MaxRetries,
		TransientBaseDelay:    c.Retry.Transient.BaseDelay,
		TransientMaxDelay:     c.Retry.Transient.MaxDelay,
		Jitter:                c.Retry.Transient.Jitter,
	}
}
