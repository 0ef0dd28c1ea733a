package ldap

import (
	"context"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"
)

const (
	testServerURI = "ldap://ldap.example.com"
	testBaseDN    = "dc=example,dc=com"
	testBindDN    = "cn=admin,dc=example,dc=com"
	testUserDN    = "cn=bob,cn=users,dc=example,dc=com"
)

// MockConn implements the Conn interface for testing handle operations
type MockConn struct {
	mock.Mock
}

func (m *MockConn) Bind(username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *MockConn) GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error {
	args := m.Called(client, servicePrincipal, authzid)
	return args.Error(0)
}

func (m *MockConn) Unbind() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) SetTimeout(timeout time.Duration) {
	m.Called(timeout)
}

func (m *MockConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*ldap.SearchResult)
	return result, args.Error(1)
}

func (m *MockConn) Add(req *ldap.AddRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConn) Modify(req *ldap.ModifyRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConn) Del(req *ldap.DelRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockConn) PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error) {
	args := m.Called(req)
	result, _ := args.Get(0).(*ldap.PasswordModifyResult)
	return result, args.Error(1)
}

// testConfig returns a configuration pointing at a fake server with tracing off.
func testConfig() *ConnectionConfig {
	cfg := DefaultConfig()
	cfg.ServerURI = testServerURI
	cfg.BaseDN = testBaseDN
	cfg.BindDN = testBindDN
	cfg.BindPassword = "secret"
	return cfg
}

// dialerFor returns a DialFunc handing out conn and counting dials.
func dialerFor(conn Conn, dials *int) DialFunc {
	return func(_ context.Context, _ *ServerInfo, _ *ConnectionConfig) (Conn, error) {
		if dials != nil {
			*dials++
		}
		return conn, nil
	}
}

// newMockConn returns a MockConn that tolerates SetTimeout calls.
func newMockConn() *MockConn {
	m := &MockConn{}
	m.On("SetTimeout", mock.Anything).Maybe()
	return m
}

// createTestDirectory builds a Directory whose sessions all use one MockConn.
func createTestDirectory(t *testing.T, cfg *ConnectionConfig) (*Directory, *MockConn) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	conn := newMockConn()
	return NewDirectory(cfg, WithDialer(dialerFor(conn, nil))), conn
}

// expectServiceSession expects a service bind followed by an unbind.
func expectServiceSession(conn *MockConn) {
	conn.On("Bind", testBindDN, "secret").Return(nil).Once()
	conn.On("Unbind").Return(nil).Once()
}

// searchResult builds a go-ldap result with a single entry.
func searchResult(dn string, attrs map[string][]string) *ldap.SearchResult {
	return &ldap.SearchResult{
		Entries: []*ldap.Entry{ldap.NewEntry(dn, attrs)},
	}
}
