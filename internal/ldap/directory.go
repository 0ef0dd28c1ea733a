package ldap

import (
	"context"
	"errors"
)

// Directory runs one-shot operations against the configured server. Every
// call opens its own handle, binds, performs the operation and unbinds; no
// connection is shared between calls, so a Directory may be used from
// several goroutines at once.
type Directory struct {
	config *ConnectionConfig
	dial   DialFunc
}

// Option configures a Directory.
type Option func(*Directory)

// WithDialer replaces the transport used to open handles.
func WithDialer(dial DialFunc) Option {
	return func(d *Directory) {
		d.dial = dial
	}
}

// NewDirectory returns a Directory for cfg. A nil cfg uses DefaultConfig.
func NewDirectory(cfg *ConnectionConfig, opts ...Option) *Directory {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	d := &Directory{
		config: cfg,
		dial:   DialServer,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the connection configuration.
func (d *Directory) Config() *ConnectionConfig {
	return d.config
}

// credentials overrides the service bind for a single operation.
type credentials struct {
	dn       string
	password string
}

// withSession brackets fn with init, bind and a guaranteed unbind. Errors
// from the operation and from the unbind are joined.
func (d *Directory) withSession(ctx context.Context, op string, fields map[string]any, creds *credentials, fn func(h *Handle) error) error {
	return LogOperation(ctx, LogSubsystem, op, fields, func() (err error) {
		h, err := InitWithDialer(ctx, d.config, d.dial)
		if err != nil {
			return err
		}
		defer func() {
			if uerr := Unbind(ctx, h); uerr != nil {
				err = errors.Join(err, uerr)
			}
		}()

		if creds != nil {
			err = Bind(ctx, h, creds.dn, creds.password)
		} else {
			err = BindWithConfig(ctx, h)
		}
		if err != nil {
			return err
		}

		return fn(h)
	})
}

// Add creates dn with attrs; every attribute value is an addition.
func (d *Directory) Add(ctx context.Context, dn string, attrs Attributes) error {
	return d.withSession(ctx, OpAdd, map[string]any{"dn": dn}, nil, func(h *Handle) error {
		return h.Add(ctx, dn, attrs)
	})
}

// Modify applies mods to dn.
func (d *Directory) Modify(ctx context.Context, dn string, mods []Modification) error {
	return d.withSession(ctx, OpModify, map[string]any{"dn": dn, "changes": len(mods)}, nil, func(h *Handle) error {
		return h.Modify(ctx, dn, mods)
	})
}

// Delete removes dn.
func (d *Directory) Delete(ctx context.Context, dn string) error {
	return d.withSession(ctx, OpDelete, map[string]any{"dn": dn}, nil, func(h *Handle) error {
		return h.Delete(ctx, dn)
	})
}

// Search runs req with the service credentials.
func (d *Directory) Search(ctx context.Context, req SearchRequest) ([]*Entry, error) {
	fields := map[string]any{
		"base_dn": req.BaseDN,
		"scope":   req.Scope.String(),
		"filter":  req.Filter,
	}

	var entries []*Entry
	err := d.withSession(ctx, OpSearch, fields, nil, func(h *Handle) error {
		var err error
		entries, err = h.Search(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ChangePassword sets the password of userDN and returns the password now in
// effect. When currentPassword is given the session binds as the user,
// otherwise with the service credentials.
func (d *Directory) ChangePassword(ctx context.Context, userDN, newPassword, currentPassword string) (string, error) {
	var creds *credentials
	if currentPassword != "" {
		creds = &credentials{dn: userDN, password: currentPassword}
	}

	fields := map[string]any{
		"dn":           userDN,
		"self_service": creds != nil,
	}

	var result string
	err := d.withSession(ctx, OpChangePassword, fields, creds, func(h *Handle) error {
		var err error
		result, err = h.ChangePassword(ctx, userDN, newPassword, currentPassword)
		return err
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
