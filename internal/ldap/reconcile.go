package ldap

import (
	"bytes"
	"context"
	"fmt"
)

// ComputeModifications diffs desired against the first value of each current
// attribute. An empty desired value means the attribute should be absent,
// and an attribute whose first value is empty counts as absent.
//
//	desired set, current absent   -> Add
//	desired set, current differs  -> Replace
//	desired absent, current set   -> Delete
//	otherwise                     -> nothing
//
// The result preserves the order of desired.
func ComputeModifications(current Attributes, desired []AttributeChange) []Modification {
	var mods []Modification

	for _, change := range desired {
		cur := current.First(change.Attribute)

		switch {
		case len(change.Value) > 0 && len(cur) == 0:
			mods = append(mods, Modification{Op: ModAdd, Attribute: change.Attribute, Value: change.Value})
		case len(change.Value) > 0 && !bytes.Equal(cur, change.Value):
			mods = append(mods, Modification{Op: ModReplace, Attribute: change.Attribute, Value: change.Value})
		case len(change.Value) == 0 && len(cur) > 0:
			mods = append(mods, Modification{Op: ModDelete, Attribute: change.Attribute})
		}
	}

	return mods
}

// ModifyUser reconciles the entry named cn=userID in the users container
// with changes. Nothing is written when the entry already matches; a
// missing user yields an error matching ErrNotFound.
func (d *Directory) ModifyUser(ctx context.Context, userID string, changes []AttributeChange) error {
	baseDN := d.config.UsersBaseDN()
	fields := map[string]any{
		"user_id": userID,
		"base_dn": baseDN,
		"changes": len(changes),
	}

	return d.withSession(ctx, OpModifyUser, fields, nil, func(h *Handle) error {
		attrs := make([]string, 0, len(changes))
		for _, c := range changes {
			attrs = append(attrs, c.Attribute)
		}

		entries, err := h.Search(ctx, SearchRequest{
			BaseDN:     baseDN,
			Scope:      ScopeSingleLevel,
			Filter:     UserFilter(userID),
			Attributes: attrs,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return NewNotFoundError(OpModifyUser, baseDN, fmt.Sprintf("User '%s' not found", userID))
		}

		entry := entries[0]
		mods := ComputeModifications(entry.Attributes, changes)
		if len(mods) == 0 {
			h.trace.Debug("modify user: no changes", map[string]any{"dn": entry.DN})
			return nil
		}

		return h.Modify(ctx, entry.DN, mods)
	})
}

// SetValue reconciles a single attribute of dn with value. An empty value
// removes the attribute.
func (d *Directory) SetValue(ctx context.Context, dn, attr string, value []byte) error {
	return d.withSession(ctx, OpModify, map[string]any{"dn": dn, "attribute": attr}, nil, func(h *Handle) error {
		current, err := entryAttributes(ctx, h, dn, []string{attr})
		if err != nil {
			return err
		}

		mods := ComputeModifications(current, []AttributeChange{{Attribute: attr, Value: value}})
		if len(mods) == 0 {
			return nil
		}
		return h.Modify(ctx, dn, mods)
	})
}

// AddValue appends value to attr of dn.
func (d *Directory) AddValue(ctx context.Context, dn, attr string, value []byte) error {
	return d.Modify(ctx, dn, []Modification{{Op: ModAdd, Attribute: attr, Value: value}})
}

// UserFilter returns the equality filter selecting a user by common name.
func UserFilter(userID string) string {
	return "(cn=" + escapeFilter(userID) + ")"
}

// entryAttributes reads attrs of the entry at dn. A base search that returns
// nothing yields nil attributes.
func entryAttributes(ctx context.Context, h *Handle, dn string, attrs []string) (Attributes, error) {
	entries, err := h.Search(ctx, SearchRequest{BaseDN: dn, Attributes: attrs})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0].Attributes, nil
}
