package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that
// cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// At least one adapter must be enabled
	if !cfg.Adapters.Finger.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	// A per-client quota needs a window to measure it over
	if cfg.RateLimit.PerClient.Requests > 0 && cfg.RateLimit.PerClient.Window <= 0 {
		return fmt.Errorf("rate_limit.per_client: window must be > 0 when requests is set")
	}

	// A bounded cache needs room for at least one record
	if cfg.Cache.Enabled && cfg.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache: max_entries must be >= 1 when the cache is enabled")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
