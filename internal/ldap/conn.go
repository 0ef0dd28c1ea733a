package ldap

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of *ldap.Conn used by a Handle.
type Conn interface {
	Bind(username, password string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
	Unbind() error
	Close() error
	SetTimeout(timeout time.Duration)
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
	PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error)
}

var _ Conn = (*ldap.Conn)(nil)

// DialFunc opens a transport connection to server.
type DialFunc func(ctx context.Context, server *ServerInfo, cfg *ConnectionConfig) (Conn, error)

// DialServer connects with go-ldap. ldaps:// dials TLS directly; ldap:// is
// upgraded with StartTLS when the configuration asks for it.
func DialServer(_ context.Context, server *ServerInfo, cfg *ConnectionConfig) (Conn, error) {
	opts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}),
	}

	tlsConfig := buildTLSConfig(cfg, server)
	if server.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(server.URL(), opts...)
	if err != nil {
		return nil, err
	}

	if !server.UseTLS && cfg.StartTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

func buildTLSConfig(cfg *ConnectionConfig, server *ServerInfo) *tls.Config {
	if cfg.TLSConfig != nil {
		tlsConfig := cfg.TLSConfig.Clone()
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = server.Host
		}
		return tlsConfig
	}

	return &tls.Config{
		ServerName:         server.Host,
		InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // operator opt-in
		MinVersion:         tls.VersionTLS12,
	}
}
