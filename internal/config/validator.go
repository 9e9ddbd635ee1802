package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers guard-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// duration: validates values accepted by time.ParseDuration ("30s", "2m").
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateDuration accepts any positive time.ParseDuration value.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateIndexBackend(); err != nil {
		return err
	}
	if err := c.validateEmbeddingProvider(); err != nil {
		return err
	}

	return nil
}

// validateIndexBackend ensures the qdrant backend has an endpoint.
func (c *Config) validateIndexBackend() error {
	if c.Index.Backend == "qdrant" && c.Index.Qdrant.URL == "" {
		return errors.New("index: backend qdrant requires index.qdrant.url")
	}
	return nil
}

// validateEmbeddingProvider ensures the genai embedder has credentials and
// a model to call.
func (c *Config) validateEmbeddingProvider() error {
	if c.Embedding.Provider != "genai" {
		return nil
	}
	if c.Embedding.Model == "" {
		return errors.New("embedding: provider genai requires embedding.model")
	}
	if c.Embedding.APIKey == "" {
		return errors.New("embedding: provider genai requires embedding.api_key")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "duration":
		return fmt.Sprintf("%s must be a duration like \"30s\" or \"2m\"", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
