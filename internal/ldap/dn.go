package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ValidateDN checks that dn is a non-empty, well-formed distinguished name.
func ValidateDN(dn string) error {
	if strings.TrimSpace(dn) == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("invalid DN syntax: %w", err)
	}

	return nil
}

// ConfigDN accepts DNs written with ':' in place of '=', as environment
// variables commonly do (cn:users,dc:example,dc:com).
func ConfigDN(dn string) string {
	return strings.ReplaceAll(strings.TrimSpace(dn), ":", "=")
}

func escapeFilter(value string) string {
	return ldap.EscapeFilter(value)
}
