package ldap

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// Protocol settings applied to every handle.
const (
	// ProtocolVersion is the only LDAP protocol version spoken by the client.
	ProtocolVersion = 3

	// DefaultFilter matches any object.
	DefaultFilter = "(objectClass=*)"

	// PasswordAttribute is replaced directly when the password modify
	// extended operation cannot be used.
	PasswordAttribute = "userPassword"
)

// Trace destinations understood by the connection factory. Any other value
// is treated as a file path.
const (
	TraceStdout = "stdout"
	TraceStderr = "stderr"
)

// ConnectionConfig holds configuration for LDAP connections.
type ConnectionConfig struct {
	// Connection settings
	ServerURI string        // ldap:// or ldaps:// URI
	BaseDN    string        // Base DN for user lookups
	UsersRDN  string        `default:"cn=users"` // Container of user entries, relative to BaseDN
	Timeout   time.Duration `default:"30s"`      // Network and response timeout

	// Service credentials used when an operation does not supply its own
	BindDN       string
	BindPassword string

	// Trace settings
	TraceFile  string // stdout, stderr or a file path opened in append mode
	TraceLevel int    // 0 disables tracing

	// TLS settings
	StartTLS      bool        // Upgrade ldap:// connections with StartTLS
	TLSSkipVerify bool        // Skip certificate verification (not recommended)
	TLSConfig     *tls.Config // Custom TLS configuration, overrides TLSSkipVerify

	// Kerberos settings for the service bind
	KerberosRealm  string
	KerberosConfig string `default:"/etc/krb5.conf"`
	KerberosKeytab string
	KerberosCCache string
	KerberosSPN    string
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *ConnectionConfig {
	cfg := &ConnectionConfig{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("ldap: invalid config defaults: %v", err))
	}
	return cfg
}

// UsersBaseDN returns the container searched by ModifyUser.
func (c *ConnectionConfig) UsersBaseDN() string {
	switch {
	case c.BaseDN == "":
		return c.UsersRDN
	case c.UsersRDN == "":
		return c.BaseDN
	default:
		return c.UsersRDN + "," + c.BaseDN
	}
}

// HasKerberos reports whether the service bind should use GSSAPI.
func (c *ConnectionConfig) HasKerberos() bool {
	return c.KerberosRealm != ""
}

// Attributes maps attribute names to their ordered values.
type Attributes map[string][][]byte

// Get returns the values of the named attribute. Attribute names are matched
// case-insensitively, as servers may return a different case than requested.
func (a Attributes) Get(name string) [][]byte {
	if values, ok := a[name]; ok {
		return values
	}
	for attr, values := range a {
		if strings.EqualFold(attr, name) {
			return values
		}
	}
	return nil
}

// First returns the first value of the named attribute, or nil.
func (a Attributes) First(name string) []byte {
	values := a.Get(name)
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

// Entry is a search result entry.
type Entry struct {
	DN         string
	Attributes Attributes
}

// ModOp is the kind of a modification.
type ModOp int

const (
	ModAdd ModOp = iota
	ModReplace
	ModDelete
)

func (m ModOp) String() string {
	switch m {
	case ModAdd:
		return "add"
	case ModReplace:
		return "replace"
	case ModDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ParseModOp parses the textual form of a ModOp.
func ParseModOp(s string) (ModOp, error) {
	switch strings.ToLower(s) {
	case "add":
		return ModAdd, nil
	case "replace":
		return ModReplace, nil
	case "delete":
		return ModDelete, nil
	default:
		return 0, fmt.Errorf("unknown modification kind %q", s)
	}
}

// Modification is a single change applied to one attribute.
// Delete carries no value; Add and Replace carry exactly one.
type Modification struct {
	Op        ModOp
	Attribute string
	Value     []byte
}

// Validate checks the value/operation invariant.
func (m Modification) Validate() error {
	if m.Attribute == "" {
		return fmt.Errorf("modification attribute cannot be empty")
	}
	switch m.Op {
	case ModAdd, ModReplace:
		if m.Value == nil {
			return fmt.Errorf("%s of %s requires a value", m.Op, m.Attribute)
		}
	case ModDelete:
		if m.Value != nil {
			return fmt.Errorf("delete of %s cannot carry a value", m.Attribute)
		}
	default:
		return fmt.Errorf("unknown modification kind %d", int(m.Op))
	}
	return nil
}

// AttributeChange is a desired attribute value; a nil or empty Value means
// the attribute should be absent.
type AttributeChange struct {
	Attribute string
	Value     []byte
}

// SearchScope defines LDAP search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// ParseSearchScope parses base/one/sub (and their long forms).
func ParseSearchScope(s string) (SearchScope, error) {
	switch strings.ToLower(s) {
	case "", "base", "baseobject":
		return ScopeBaseObject, nil
	case "one", "onelevel", "single", "singlelevel":
		return ScopeSingleLevel, nil
	case "sub", "subtree", "wholesubtree":
		return ScopeWholeSubtree, nil
	default:
		return 0, fmt.Errorf("unknown search scope %q", s)
	}
}

// SearchRequest encapsulates LDAP search parameters. The zero Scope is the
// base object and an empty Filter matches any object.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
	TypesOnly  bool // Return attribute names without values
	SizeLimit  int
	TimeLimit  time.Duration
}
