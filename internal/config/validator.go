package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// sqliteOutputPrefix marks an audit output backed by a SQLite file.
const sqliteOutputPrefix = "sqlite://"

// IsSQLiteOutput reports whether the audit output names a SQLite file.
func IsSQLiteOutput(output string) bool {
	return strings.HasPrefix(output, sqliteOutputPrefix)
}

// SQLitePath extracts the database path from a sqlite:// audit output.
func SQLitePath(output string) string {
	return strings.TrimPrefix(output, sqliteOutputPrefix)
}

// registerCustomValidators installs proofgate-specific validation rules.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateAuditOutput accepts "stdout" or "sqlite://<absolute-path>".
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()
	if output == "stdout" {
		return true
	}
	if IsSQLiteOutput(output) {
		path := SQLitePath(output)
		return path != "" && filepath.IsAbs(path)
	}
	return false
}

// Validate checks the configuration using struct tags plus cross-field
// rules, returning actionable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := registerCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Requiring a key without a key file would lock every caller out.
	if c.Auth.RequireKey && c.Auth.KeyFile == "" {
		return errors.New("auth: require_key is set but key_file is empty")
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

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout' or 'sqlite://<absolute-path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
