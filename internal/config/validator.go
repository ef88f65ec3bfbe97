package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers chatgate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateDuration accepts anything time.ParseDuration does, with a
// positive result.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate validates the Config using struct tags and cross-field rules.
// Call after SetDefaults.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report errors with config file paths, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if c.Session.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("session.backend is redis but redis.addr is empty")
	}
	// A liveness interval at or above the session TTL means expiry is only
	// ever noticed after the fact.
	if c.Session.GetLivenessInterval() >= c.Session.GetTTL() {
		return errors.New("session.liveness_interval must be shorter than session.ttl")
	}
	return nil
}

// formatValidationErrors turns validator output into actionable messages
// using the config's field paths.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", path))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", path, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", path, fe.Param()))
		case "duration":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid duration (e.g. \"30s\")", path))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", path, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
