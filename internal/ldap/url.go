package ldap

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Default ports per scheme.
const (
	DefaultLDAPPort  = 389
	DefaultLDAPSPort = 636
)

// ServerInfo is the parsed form of a server URI.
type ServerInfo struct {
	Host   string
	Port   int
	UseTLS bool // ldaps scheme
}

// URL returns the canonical scheme://host:port form.
func (s *ServerInfo) URL() string {
	scheme := "ldap"
	if s.UseTLS {
		scheme = "ldaps"
	}

	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
}

// ParseServerURI parses an ldap:// or ldaps:// URI. Paths, queries and
// credentials embedded in the URI are rejected rather than ignored.
func ParseServerURI(uri string) (*ServerInfo, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("server URI cannot be empty")
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid server URI %q: %w", uri, err)
	}

	server := &ServerInfo{}
	switch strings.ToLower(parsed.Scheme) {
	case "ldap":
		server.Port = DefaultLDAPPort
	case "ldaps":
		server.UseTLS = true
		server.Port = DefaultLDAPSPort
	default:
		return nil, fmt.Errorf("unsupported scheme %q, must be ldap:// or ldaps://", parsed.Scheme)
	}

	if parsed.User != nil {
		return nil, fmt.Errorf("server URI must not embed credentials")
	}

	if parsed.Path != "" && parsed.Path != "/" {
		return nil, fmt.Errorf("server URI must not carry a path: %q", parsed.Path)
	}

	server.Host = parsed.Hostname()
	if server.Host == "" {
		return nil, fmt.Errorf("no hostname found in URI: %s", uri)
	}

	if portStr := parsed.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid port number: %s", portStr)
		}
		server.Port = port
	}

	return server, nil
}
