package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// kerberosClientFactory builds the GSSAPI client for the service bind.
// Replaced in tests.
var kerberosClientFactory = createGSSAPIClient

// performKerberosAuth binds conn with GSSAPI using the configured service
// principal credentials.
func performKerberosAuth(ctx context.Context, conn Conn, cfg *ConnectionConfig, server *ServerInfo) error {
	principal, realm, err := kerberosPrincipal(cfg)
	if err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	client, err := kerberosClientFactory(cfg, principal, realm)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, server)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	tflog.SubsystemDebug(ctx, LogSubsystem, "Performing GSSAPI bind", map[string]any{
		"principal": principal,
		"realm":     realm,
		"spn":       spn,
	})

	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// kerberosPrincipal splits the bind identity into principal and realm. A
// realm embedded as user@REALM wins over the configured one.
func kerberosPrincipal(cfg *ConnectionConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("configuration cannot be nil")
	}

	principal := cfg.BindDN
	realm := cfg.KerberosRealm

	if user, r, ok := strings.Cut(principal, "@"); ok && r != "" {
		principal = user
		realm = r
	}

	if realm == "" {
		return "", "", fmt.Errorf("kerberos realm is required (set kerberos_realm or bind as user@REALM)")
	}
	if principal == "" {
		return "", "", fmt.Errorf("bind identity (principal) is required for Kerberos authentication")
	}

	return principal, strings.ToUpper(realm), nil
}

// createGSSAPIClient creates a GSSAPI client.
// Priority order: credential cache → keytab → password.
func createGSSAPIClient(cfg *ConnectionConfig, principal, realm string) (ldap.GSSAPIClient, error) {
	krb5confPath := cfg.KerberosConfig
	if krb5confPath == "" {
		krb5confPath = "/etc/krb5.conf"
	}

	if !fileExists(krb5confPath) {
		return nil, fmt.Errorf("Kerberos configuration file not found at %s; "+
			"create it or set kerberos_config. Example:\n%s",
			krb5confPath, exampleKrb5Conf(realm))
	}

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if defaultCCache := defaultCCachePath(); fileExists(defaultCCache) && cfg.KerberosKeytab == "" && cfg.BindPassword == "" {
		return gssapi.NewClientFromCCache(defaultCCache, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(principal, realm, cfg.KerberosKeytab, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if cfg.BindPassword != "" {
		return gssapi.NewClientWithPassword(principal, realm, cfg.BindPassword, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication: " +
		"provide kerberos_ccache, kerberos_keytab or bind_password")
}

// buildServicePrincipal constructs the LDAP service principal name from server info.
// If cfg.KerberosSPN is set, it overrides the automatic SPN construction.
func buildServicePrincipal(cfg *ConnectionConfig, server *ServerInfo) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration is required for service principal")
	}

	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if server == nil || server.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	return "ldap/" + strings.ToLower(server.Host), nil
}

func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func exampleKrb5Conf(realm string) string {
	if realm == "" {
		realm = "EXAMPLE.COM"
	}
	kdc := "dc." + strings.ToLower(realm)

	return fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_kdc = false

[realms]
    %s = {
        kdc = %s:88
    }`, realm, realm, kdc)
}
