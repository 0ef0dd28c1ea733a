// Package config loads the directory connection settings from environment
// variables and an optional configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"

	"github.com/isometry/ldapctl/internal/ldap"
)

// DefaultPrefix is the application prefix used when none is given.
const DefaultPrefix = "LDAPCTL"

// Settings is the flat configuration read from the environment or a file.
//
// Every key is read from <PREFIX>_LDAP_<KEY> in the environment, for example
// LDAPCTL_LDAP_SERVER_URI, or from the same key in the configuration file.
type Settings struct {
	ServerURI     string `mapstructure:"server_uri" validate:"required,uri"`
	BaseDN        string `mapstructure:"base_dn"`
	UsersRDN      string `mapstructure:"users_rdn" default:"cn=users"`
	BindDN        string `mapstructure:"bind_dn"`
	BindPassword  string `mapstructure:"bind_password"`
	Timeout       int    `mapstructure:"timeout" default:"30" validate:"gte=0"` // seconds
	TraceFile     string `mapstructure:"trace_file"`
	TraceLevel    int    `mapstructure:"trace_level"`
	StartTLS      bool   `mapstructure:"start_tls"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`

	KerberosRealm  string `mapstructure:"kerberos_realm"`
	KerberosConfig string `mapstructure:"kerberos_config" default:"/etc/krb5.conf"`
	KerberosKeytab string `mapstructure:"kerberos_keytab" validate:"omitempty,file"`
	KerberosCCache string `mapstructure:"kerberos_ccache"`
	KerberosSPN    string `mapstructure:"kerberos_spn"`
}

// envAliases lists additional environment names accepted for a key.
var envAliases = map[string][]string{
	"bind_password": {"BIND_PWD"},
	"trace_file":    {"TRACE_FILEPATH"},
}

// keys returns the mapstructure keys of Settings in declaration order.
func keys() []string {
	return []string{
		"server_uri", "base_dn", "users_rdn", "bind_dn", "bind_password",
		"timeout", "trace_file", "trace_level", "start_tls", "tls_skip_verify",
		"kerberos_realm", "kerberos_config", "kerberos_keytab", "kerberos_ccache", "kerberos_spn",
	}
}

// Load reads settings for the application identified by prefix and converts
// them into a connection configuration. configPath may be empty, in which
// case $XDG_CONFIG_HOME/ldapctl/config.yaml is used if it exists.
func Load(configPath, prefix string) (*ldap.ConnectionConfig, error) {
	settings, err := LoadSettings(configPath, prefix)
	if err != nil {
		return nil, err
	}
	return settings.ConnectionConfig(), nil
}

// LoadSettings reads, defaults and validates the raw settings.
func LoadSettings(configPath, prefix string) (*Settings, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	v := viper.New()
	if err := setupViper(v, configPath, prefix); err != nil {
		return nil, err
	}

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ApplyDefaults(&s, prefix); err != nil {
		return nil, err
	}

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &s, nil
}

func setupViper(v *viper.Viper, configPath, prefix string) error {
	envPrefix := strings.ToUpper(prefix) + "_LDAP"
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about
	for _, key := range keys() {
		names := []string{envPrefix + "_" + strings.ToUpper(key)}
		for _, alias := range envAliases[key] {
			names = append(names, envPrefix+"_"+alias)
		}
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	return nil
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configPath == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/ldapctl, ~/.config/ldapctl or ".".
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ldapctl")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "ldapctl")
	}
	return "."
}

// ApplyDefaults fills unset settings and normalizes DN values.
func ApplyDefaults(s *Settings, prefix string) error {
	if err := defaults.Set(s); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	if s.TraceFile == "" {
		s.TraceFile = DefaultTraceFile(prefix)
	}
	if s.TraceLevel < 0 {
		s.TraceLevel = 0
	}

	s.BaseDN = ldap.ConfigDN(s.BaseDN)
	s.BindDN = ldap.ConfigDN(s.BindDN)
	s.UsersRDN = ldap.ConfigDN(s.UsersRDN)

	return nil
}

// DefaultTraceFile returns <tmp>/<prefix>_ldap.log.
func DefaultTraceFile(prefix string) string {
	return filepath.Join(os.TempDir(), strings.ToLower(prefix)+"_ldap.log")
}

// ConnectionConfig converts the settings into the form used by the ldap package.
func (s *Settings) ConnectionConfig() *ldap.ConnectionConfig {
	cfg := ldap.DefaultConfig()

	cfg.ServerURI = s.ServerURI
	cfg.BaseDN = s.BaseDN
	cfg.UsersRDN = s.UsersRDN
	cfg.BindDN = s.BindDN
	cfg.BindPassword = s.BindPassword
	cfg.Timeout = time.Duration(s.Timeout) * time.Second
	cfg.TraceFile = s.TraceFile
	cfg.TraceLevel = s.TraceLevel
	cfg.StartTLS = s.StartTLS
	cfg.TLSSkipVerify = s.TLSSkipVerify
	cfg.KerberosRealm = s.KerberosRealm
	cfg.KerberosConfig = s.KerberosConfig
	cfg.KerberosKeytab = s.KerberosKeytab
	cfg.KerberosCCache = s.KerberosCCache
	cfg.KerberosSPN = s.KerberosSPN

	return cfg
}
