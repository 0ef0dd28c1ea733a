package ldap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeGSSAPIClient records whether its security context was released.
type fakeGSSAPIClient struct {
	deleted bool
}

func (f *fakeGSSAPIClient) InitSecContext(string, []byte) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *fakeGSSAPIClient) InitSecContextWithOptions(string, []byte, []int) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *fakeGSSAPIClient) NegotiateSaslAuth([]byte, string) ([]byte, error) {
	return nil, nil
}

func (f *fakeGSSAPIClient) DeleteSecContext() error {
	f.deleted = true
	return nil
}

// stubKerberosClient replaces the GSSAPI client factory for one test.
func stubKerberosClient(t *testing.T, client ldap.GSSAPIClient, err error) *[]string {
	t.Helper()
	var calls []string
	orig := kerberosClientFactory
	kerberosClientFactory = func(_ *ConnectionConfig, principal, realm string) (ldap.GSSAPIClient, error) {
		calls = append(calls, principal+"@"+realm)
		return client, err
	}
	t.Cleanup(func() { kerberosClientFactory = orig })
	return &calls
}

func kerberosConfig() *ConnectionConfig {
	cfg := testConfig()
	cfg.BindDN = "svc-ldap"
	cfg.KerberosRealm = "example.com"
	return cfg
}

func TestKerberosPrincipal(t *testing.T) {
	tests := []struct {
		name          string
		bindDN        string
		realm         string
		wantPrincipal string
		wantRealm     string
		expectError   bool
	}{
		{name: "configured realm", bindDN: "svc-ldap", realm: "example.com", wantPrincipal: "svc-ldap", wantRealm: "EXAMPLE.COM"},
		{name: "embedded realm wins", bindDN: "svc-ldap@corp.example.com", realm: "example.com", wantPrincipal: "svc-ldap", wantRealm: "CORP.EXAMPLE.COM"},
		{name: "embedded realm only", bindDN: "svc-ldap@EXAMPLE.COM", wantPrincipal: "svc-ldap", wantRealm: "EXAMPLE.COM"},
		{name: "missing realm", bindDN: "svc-ldap", expectError: true},
		{name: "missing principal", realm: "EXAMPLE.COM", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, realm, err := kerberosPrincipal(&ConnectionConfig{BindDN: tt.bindDN, KerberosRealm: tt.realm})

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrincipal, principal)
			assert.Equal(t, tt.wantRealm, realm)
		})
	}

	_, _, err := kerberosPrincipal(nil)
	assert.Error(t, err)
}

func TestBuildServicePrincipal(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *ConnectionConfig
		server      *ServerInfo
		expected    string
		expectError bool
	}{
		{name: "derived from host", cfg: &ConnectionConfig{}, server: &ServerInfo{Host: "DC1.Example.COM"}, expected: "ldap/dc1.example.com"},
		{name: "override", cfg: &ConnectionConfig{KerberosSPN: "ldap/dc.example.com@EXAMPLE.COM"}, server: &ServerInfo{Host: "10.0.0.1"}, expected: "ldap/dc.example.com@EXAMPLE.COM"},
		{name: "no host", cfg: &ConnectionConfig{}, server: &ServerInfo{}, expectError: true},
		{name: "nil config", server: &ServerInfo{Host: "dc1"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spn, err := buildServicePrincipal(tt.cfg, tt.server)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spn)
		})
	}
}

func TestBindWithConfig_Kerberos(t *testing.T) {
	t.Run("GSSAPI bind", func(t *testing.T) {
		client := &fakeGSSAPIClient{}
		calls := stubKerberosClient(t, client, nil)

		conn := newMockConn()
		conn.On("GSSAPIBind", client, "ldap/ldap.example.com", "").Return(nil).Once()

		h, err := InitWithDialer(context.Background(), kerberosConfig(), dialerFor(conn, nil))
		require.NoError(t, err)

		require.NoError(t, BindWithConfig(context.Background(), h))

		assert.True(t, h.Bound())
		assert.True(t, client.deleted)
		assert.Equal(t, []string{"svc-ldap@EXAMPLE.COM"}, *calls)
		conn.AssertNotCalled(t, "Bind", mock.Anything, mock.Anything)
		conn.AssertExpectations(t)
	})

	t.Run("rejected GSSAPI bind", func(t *testing.T) {
		client := &fakeGSSAPIClient{}
		stubKerberosClient(t, client, nil)

		conn := newMockConn()
		conn.On("GSSAPIBind", mock.Anything, mock.Anything, mock.Anything).
			Return(ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad ticket"))).Once()

		h, err := InitWithDialer(context.Background(), kerberosConfig(), dialerFor(conn, nil))
		require.NoError(t, err)

		err = BindWithConfig(context.Background(), h)

		assert.ErrorIs(t, err, ErrAuth)
		assert.False(t, h.Bound())
		assert.True(t, client.deleted)
	})

	t.Run("client creation failure", func(t *testing.T) {
		stubKerberosClient(t, nil, errors.New("no suitable credentials found"))

		conn := newMockConn()
		h, err := InitWithDialer(context.Background(), kerberosConfig(), dialerFor(conn, nil))
		require.NoError(t, err)

		err = BindWithConfig(context.Background(), h)

		assert.ErrorIs(t, err, ErrAuth)
		conn.AssertNotCalled(t, "GSSAPIBind", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("simple bind without realm", func(t *testing.T) {
		calls := stubKerberosClient(t, &fakeGSSAPIClient{}, nil)

		conn := newMockConn()
		conn.On("Bind", testBindDN, "secret").Return(nil).Once()

		h, err := InitWithDialer(context.Background(), testConfig(), dialerFor(conn, nil))
		require.NoError(t, err)

		require.NoError(t, BindWithConfig(context.Background(), h))
		assert.Empty(t, *calls)
		conn.AssertExpectations(t)
	})
}

func TestCreateGSSAPIClient_MissingKrb5Conf(t *testing.T) {
	cfg := kerberosConfig()
	cfg.KerberosConfig = filepath.Join(t.TempDir(), "missing-krb5.conf")

	_, err := createGSSAPIClient(cfg, "svc-ldap", "EXAMPLE.COM")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kerberos configuration file not found")
	assert.Contains(t, err.Error(), "default_realm = EXAMPLE.COM")
}

func TestCreateGSSAPIClient_NoCredentials(t *testing.T) {
	dir := t.TempDir()
	krb5conf := filepath.Join(dir, "krb5.conf")
	require.NoError(t, os.WriteFile(krb5conf, []byte(exampleKrb5Conf("EXAMPLE.COM")), 0o600))
	t.Setenv("KRB5CCNAME", "FILE:"+filepath.Join(dir, "no-ccache"))

	cfg := kerberosConfig()
	cfg.KerberosConfig = krb5conf
	cfg.BindPassword = ""

	_, err := createGSSAPIClient(cfg, "svc-ldap", "EXAMPLE.COM")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable credentials")
}

func TestDefaultCCachePath(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/tmp/krb5cc_test")
	assert.Equal(t, "/tmp/krb5cc_test", defaultCCachePath())
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "keytab")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	assert.True(t, fileExists(file))
	assert.False(t, fileExists(dir))
	assert.False(t, fileExists(filepath.Join(dir, "missing")))
	assert.False(t, fileExists(""))
}
