package ldap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Bind performs a simple bind on h. Invalid credentials yield an error
// matching ErrAuth; an unresponsive server yields ErrTimeout.
func Bind(ctx context.Context, h *Handle, dn, password string) error {
	if err := checkBindable(ctx, h, dn); err != nil {
		return err
	}

	fields := map[string]any{
		"dn":             dn,
		"server":         h.server.URL(),
		"anonymous_bind": password == "",
	}
	h.trace.Info("bind", fields)

	if err := h.conn.Bind(dn, password); err != nil {
		return bindFailed(ctx, h, dn, err)
	}

	h.bound = true
	tflog.SubsystemDebug(ctx, LogSubsystem, "Simple bind successful", fields)
	return nil
}

// BindWithConfig binds h with the service credentials of its configuration,
// using GSSAPI when a Kerberos realm is configured.
func BindWithConfig(ctx context.Context, h *Handle) error {
	if h == nil || h.config == nil {
		return newError(OpBind, ErrorCategoryConnection, "", "no connection", nil)
	}

	if !h.config.HasKerberos() {
		return Bind(ctx, h, h.config.BindDN, h.config.BindPassword)
	}

	if err := checkBindable(ctx, h, h.config.BindDN); err != nil {
		return err
	}

	h.trace.Info("bind", map[string]any{"mechanism": "GSSAPI", "server": h.server.URL()})

	if err := performKerberosAuth(ctx, h.conn, h.config, h.server); err != nil {
		return bindFailed(ctx, h, h.config.BindDN, err)
	}

	h.bound = true
	tflog.SubsystemInfo(ctx, LogSubsystem, "Kerberos bind successful", map[string]any{
		"server": h.server.URL(),
		"realm":  h.config.KerberosRealm,
	})
	return nil
}

// Unbind releases h: the session is unbound (or just closed when no bind
// succeeded) and an owned trace file is closed. Calling Unbind on a released
// handle is a no-op.
func Unbind(ctx context.Context, h *Handle) error {
	if h == nil || h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if h.conn != nil {
		if h.bound {
			h.trace.Info("unbind", map[string]any{"server": h.server.URL()})
			if err := h.conn.Unbind(); err != nil {
				// Unbind does not close the transport on failure
				errs = append(errs, NewLDAPError(OpUnbind, "", err))
				if cerr := h.conn.Close(); cerr != nil {
					tflog.SubsystemDebug(ctx, LogSubsystem, "Close after failed unbind", map[string]any{"error": cerr.Error()})
				}
			}
		} else {
			h.trace.Info("close", map[string]any{"server": h.server.URL()})
			if err := h.conn.Close(); err != nil {
				errs = append(errs, NewLDAPError(OpUnbind, "", err))
			}
		}
	}
	h.bound = false

	if err := h.trace.Close(); err != nil {
		errs = append(errs, NewConnectionError(OpUnbind, "failed to close trace file", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		LogLDAPError(ctx, LogSubsystem, OpUnbind, err, nil)
	} else {
		tflog.SubsystemTrace(ctx, LogSubsystem, "LDAP session released")
	}
	return err
}

func checkBindable(ctx context.Context, h *Handle, dn string) error {
	if h == nil || h.conn == nil {
		return newError(OpBind, ErrorCategoryConnection, dn, "no connection", nil)
	}
	if h.closed {
		return newError(OpBind, ErrorCategoryConnection, dn, "handle is closed", nil)
	}
	return checkContext(ctx, OpBind)
}

// bindFailed classifies a bind failure. Anything that is not a transport
// problem is reported as an authentication error.
func bindFailed(ctx context.Context, h *Handle, dn string, err error) error {
	ldapErr := NewLDAPError(OpBind, dn, err)
	switch ldapErr.Category {
	case ErrorCategoryConnection, ErrorCategoryTimeout, ErrorCategoryAuthentication:
	default:
		ldapErr.Category = ErrorCategoryAuthentication
		if ldapErr.Message == "" {
			ldapErr.Message = fmt.Sprintf("bind as %q rejected", dn)
		}
	}

	LogLDAPError(ctx, LogSubsystem, OpBind, err, map[string]any{
		"dn":     dn,
		"server": h.server.URL(),
	})
	h.trace.Info("bind failed", map[string]any{"dn": dn, "error": err.Error()})

	return ldapErr
}
