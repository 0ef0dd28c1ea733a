package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/isometry/ldapctl/internal/ldap"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags and the rules tags cannot express.
func Validate(s *Settings) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(s)
}

func validateCustomRules(s *Settings) error {
	if _, err := ldap.ParseServerURI(s.ServerURI); err != nil {
		return fmt.Errorf("server_uri: %w", err)
	}

	if s.BaseDN != "" {
		if err := ldap.ValidateDN(s.BaseDN); err != nil {
			return fmt.Errorf("base_dn: %w", err)
		}
	}

	// bind identities may also be user principal names
	if strings.Contains(s.BindDN, "=") {
		if err := ldap.ValidateDN(s.BindDN); err != nil {
			return fmt.Errorf("bind_dn: %w", err)
		}
	}

	if s.StartTLS && strings.HasPrefix(strings.ToLower(s.ServerURI), "ldaps:") {
		return fmt.Errorf("start_tls: cannot be combined with an ldaps:// server_uri")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
