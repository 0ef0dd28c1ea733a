package ldap

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Handle is an exclusively owned session with one directory server. It is
// created connected by Init, bound by Bind or BindWithConfig and released by
// Unbind. A Handle is not safe for concurrent use.
type Handle struct {
	conn   Conn
	server *ServerInfo
	config *ConnectionConfig
	trace  *traceSink
	secure bool
	bound  bool
	closed bool
}

// Init creates a handle connected to cfg.ServerURI.
func Init(ctx context.Context, cfg *ConnectionConfig) (*Handle, error) {
	return InitWithDialer(ctx, cfg, DialServer)
}

// InitWithDialer is Init with a custom transport.
func InitWithDialer(ctx context.Context, cfg *ConnectionConfig, dial DialFunc) (*Handle, error) {
	if cfg == nil {
		return nil, NewConnectionError(OpInit, "configuration is required", nil)
	}

	server, err := ParseServerURI(cfg.ServerURI)
	if err != nil {
		return nil, NewConnectionError(OpInit, "malformed server URI", err)
	}

	if err := checkContext(ctx, OpInit); err != nil {
		return nil, err
	}

	trace, err := openTraceSink(cfg.TraceFile, cfg.TraceLevel)
	if err != nil {
		return nil, NewConnectionError(OpInit, "failed to open trace destination", err)
	}

	fields := map[string]any{
		"server":           server.URL(),
		"timeout_ms":       cfg.Timeout.Milliseconds(),
		"start_tls":        cfg.StartTLS,
		"protocol_version": ProtocolVersion,
	}
	tflog.SubsystemDebug(ctx, LogSubsystem, "Connecting to LDAP server", fields)
	trace.Info("connect", fields)

	conn, err := dial(ctx, server, cfg)
	if err != nil {
		_ = trace.Close()
		LogLDAPError(ctx, LogSubsystem, OpInit, err, fields)
		return nil, NewConnectionError(OpInit, fmt.Sprintf("failed to connect to %s", server.URL()), err)
	}

	if cfg.Timeout > 0 {
		conn.SetTimeout(cfg.Timeout)
	}

	h := &Handle{
		conn:   conn,
		server: server,
		config: cfg,
		trace:  trace,
		secure: server.UseTLS || cfg.StartTLS,
	}

	tflog.SubsystemInfo(ctx, LogSubsystem, "LDAP connection established", map[string]any{
		"server": server.URL(),
		"secure": h.secure,
	})

	return h, nil
}

// Secure reports whether the session is protected by TLS, either through the
// ldaps scheme or a StartTLS upgrade.
func (h *Handle) Secure() bool { return h.secure }

// Server returns the parsed server URI.
func (h *Handle) Server() *ServerInfo { return h.server }

// Bound reports whether a bind has succeeded on the handle.
func (h *Handle) Bound() bool { return h.bound && !h.closed }

// Closed reports whether Unbind has run.
func (h *Handle) Closed() bool { return h.closed }

func (h *Handle) ensureUsable(ctx context.Context, op, dn string) error {
	if h == nil || h.conn == nil {
		return newError(op, ErrorCategoryConnection, dn, "no connection", nil)
	}
	if h.closed {
		return newError(op, ErrorCategoryConnection, dn, "handle is closed", nil)
	}
	if !h.bound {
		return newError(op, ErrorCategoryConnection, dn, "handle is not bound", nil)
	}
	return checkContext(ctx, op)
}

func (h *Handle) fail(ctx context.Context, op, dn string, err error) error {
	fields := map[string]any{
		"dn":     dn,
		"server": h.server.URL(),
	}
	LogLDAPError(ctx, LogSubsystem, op, err, fields)
	fields["error"] = err.Error()
	h.trace.Info(op+" failed", fields)
	return NewLDAPError(op, dn, err)
}

// Add creates dn with attrs. Attributes without values are skipped.
func (h *Handle) Add(ctx context.Context, dn string, attrs Attributes) error {
	if err := h.ensureUsable(ctx, OpAdd, dn); err != nil {
		return err
	}
	if err := ValidateDN(dn); err != nil {
		return NewValidationError(OpAdd, dn, err)
	}

	req := ldap.NewAddRequest(dn, nil)
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		values := attrs[name]
		if len(values) == 0 {
			continue
		}
		req.Attribute(name, toStrings(values))
	}

	h.trace.Info("add", map[string]any{"dn": dn, "attributes": len(req.Attributes)})
	h.trace.Debug("add request", map[string]any{"dn": dn, "attributes": attributeNames(req.Attributes)})

	if err := h.conn.Add(req); err != nil {
		return h.fail(ctx, OpAdd, dn, err)
	}
	return nil
}

// Modify applies mods to dn in a single request.
func (h *Handle) Modify(ctx context.Context, dn string, mods []Modification) error {
	if err := h.ensureUsable(ctx, OpModify, dn); err != nil {
		return err
	}
	if err := ValidateDN(dn); err != nil {
		return NewValidationError(OpModify, dn, err)
	}

	req, err := buildModifyRequest(dn, mods)
	if err != nil {
		return NewValidationError(OpModify, dn, err)
	}

	h.trace.Info("modify", map[string]any{"dn": dn, "changes": len(mods)})
	for _, mod := range mods {
		h.trace.Debug("modify change", map[string]any{"dn": dn, "op": mod.Op.String(), "attribute": mod.Attribute})
	}

	if err := h.conn.Modify(req); err != nil {
		return h.fail(ctx, OpModify, dn, err)
	}
	return nil
}

// Delete removes dn.
func (h *Handle) Delete(ctx context.Context, dn string) error {
	if err := h.ensureUsable(ctx, OpDelete, dn); err != nil {
		return err
	}
	if err := ValidateDN(dn); err != nil {
		return NewValidationError(OpDelete, dn, err)
	}

	h.trace.Info("delete", map[string]any{"dn": dn})

	if err := h.conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		return h.fail(ctx, OpDelete, dn, err)
	}
	return nil
}

// Search runs req. An empty Filter matches any object and the zero Scope is
// the base object. No match yields an empty, non-nil result.
func (h *Handle) Search(ctx context.Context, req SearchRequest) ([]*Entry, error) {
	if err := h.ensureUsable(ctx, OpSearch, req.BaseDN); err != nil {
		return nil, err
	}

	filter := req.Filter
	if filter == "" {
		filter = DefaultFilter
	}

	searchReq := ldap.NewSearchRequest(
		req.BaseDN,
		goLDAPScope(req.Scope),
		ldap.NeverDerefAliases,
		req.SizeLimit,
		int(req.TimeLimit/time.Second),
		req.TypesOnly,
		filter,
		req.Attributes,
		nil,
	)

	fields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     filter,
		"attributes": req.Attributes,
		"types_only": req.TypesOnly,
	}
	h.trace.Info("search", fields)

	result, err := h.conn.Search(searchReq)
	if err != nil {
		return nil, h.fail(ctx, OpSearch, req.BaseDN, err)
	}

	entries := make([]*Entry, 0, len(result.Entries))
	for _, e := range result.Entries {
		entry := convertEntry(e)
		h.trace.Trace("search entry", map[string]any{"dn": entry.DN, "attributes": len(entry.Attributes)})
		entries = append(entries, entry)
	}

	tflog.SubsystemTrace(ctx, LogSubsystem, "Search returned entries", map[string]any{
		"base_dn": req.BaseDN,
		"count":   len(entries),
	})

	return entries, nil
}

// ChangePassword sets the password of userDN. Secure handles use the password
// modify extended operation and return the server-generated password when one
// is issued; other handles replace the password attribute directly and return
// newPassword.
func (h *Handle) ChangePassword(ctx context.Context, userDN, newPassword, currentPassword string) (string, error) {
	if err := h.ensureUsable(ctx, OpChangePassword, userDN); err != nil {
		return "", err
	}
	if err := ValidateDN(userDN); err != nil {
		return "", NewValidationError(OpChangePassword, userDN, err)
	}

	if !h.secure {
		h.trace.Info("password replace", map[string]any{"dn": userDN, "attribute": PasswordAttribute})

		req := ldap.NewModifyRequest(userDN, nil)
		req.Replace(PasswordAttribute, []string{newPassword})
		if err := h.conn.Modify(req); err != nil {
			return "", h.fail(ctx, OpChangePassword, userDN, err)
		}
		return newPassword, nil
	}

	h.trace.Info("password modify", map[string]any{"dn": userDN, "with_current": currentPassword != ""})

	result, err := h.conn.PasswordModify(ldap.NewPasswordModifyRequest(userDN, currentPassword, newPassword))
	if err != nil {
		return "", h.fail(ctx, OpChangePassword, userDN, err)
	}

	if result != nil && result.GeneratedPassword != "" {
		return result.GeneratedPassword, nil
	}
	return newPassword, nil
}

func buildModifyRequest(dn string, mods []Modification) (*ldap.ModifyRequest, error) {
	req := ldap.NewModifyRequest(dn, nil)
	for _, mod := range mods {
		if err := mod.Validate(); err != nil {
			return nil, err
		}
		switch mod.Op {
		case ModAdd:
			req.Add(mod.Attribute, []string{string(mod.Value)})
		case ModReplace:
			req.Replace(mod.Attribute, []string{string(mod.Value)})
		case ModDelete:
			req.Delete(mod.Attribute, []string{})
		}
	}
	return req, nil
}

func convertEntry(e *ldap.Entry) *Entry {
	entry := &Entry{
		DN:         e.DN,
		Attributes: make(Attributes, len(e.Attributes)),
	}
	for _, attr := range e.Attributes {
		values := make([][]byte, 0, len(attr.ByteValues))
		for _, v := range attr.ByteValues {
			values = append(values, slices.Clone(v))
		}
		entry.Attributes[attr.Name] = values
	}
	return entry
}

func goLDAPScope(scope SearchScope) int {
	switch scope {
	case ScopeSingleLevel:
		return ldap.ScopeSingleLevel
	case ScopeWholeSubtree:
		return ldap.ScopeWholeSubtree
	default:
		return ldap.ScopeBaseObject
	}
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return NewConnectionError(op, "operation cancelled", err)
	}
	return nil
}

func toStrings(values [][]byte) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func attributeNames(attrs []ldap.Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Type
	}
	return names
}
