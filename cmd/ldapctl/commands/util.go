package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/isometry/ldapctl/internal/ldap"
)

// directory is the part of *ldap.Directory used by the write commands.
type directory interface {
	Add(ctx context.Context, dn string, attrs ldap.Attributes) error
	Modify(ctx context.Context, dn string, mods []ldap.Modification) error
	Delete(ctx context.Context, dn string) error
	SetValue(ctx context.Context, dn, attr string, value []byte) error
	AddValue(ctx context.Context, dn, attr string, value []byte) error
	ModifyUser(ctx context.Context, userID string, changes []ldap.AttributeChange) error
	ChangePassword(ctx context.Context, userDN, newPassword, currentPassword string) (string, error)
}

var _ directory = (*ldap.Directory)(nil)

// entryView is the printable form of a search entry.
type entryView struct {
	DN         string              `json:"dn" yaml:"dn"`
	Attributes map[string][]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type entryList []entryView

func newEntryList(entries []*ldap.Entry) entryList {
	list := make(entryList, 0, len(entries))
	for _, e := range entries {
		view := entryView{DN: e.DN, Attributes: make(map[string][]string, len(e.Attributes))}
		for name, values := range e.Attributes {
			view.Attributes[name] = formatValues(name, values)
		}
		list = append(list, view)
	}
	return list
}

func (l entryList) Headers() []string {
	return []string{"DN", "Attribute", "Value"}
}

func (l entryList) Rows() [][]string {
	var rows [][]string
	for _, e := range l {
		if len(e.Attributes) == 0 {
			rows = append(rows, []string{e.DN, "", ""})
			continue
		}
		for _, name := range slices.Sorted(maps.Keys(e.Attributes)) {
			values := e.Attributes[name]
			if len(values) == 0 {
				rows = append(rows, []string{e.DN, name, ""})
			}
			for _, v := range values {
				rows = append(rows, []string{e.DN, name, v})
			}
		}
	}
	return rows
}

// attributeValues is the printable result of get.
type attributeValues struct {
	DN         string              `json:"dn" yaml:"dn"`
	Attributes map[string][]string `json:"attributes" yaml:"attributes"`
	order      []string
}

func (a attributeValues) Headers() []string {
	return []string{"Attribute", "Value"}
}

func (a attributeValues) Rows() [][]string {
	var rows [][]string
	for _, name := range a.order {
		values := a.Attributes[name]
		if values == nil {
			rows = append(rows, []string{name, "<absent>"})
			continue
		}
		for _, v := range values {
			rows = append(rows, []string{name, v})
		}
	}
	return rows
}

func formatValues(attr string, values [][]byte) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = ldap.FormatValue(attr, v)
	}
	return out
}

// splitAssignment splits name=value. The value may be empty.
func splitAssignment(arg string) (string, string, error) {
	name, value, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid attribute %q, expected name=value", arg)
	}
	return name, value, nil
}

// parseAttributes groups repeated name=value arguments into attributes.
func parseAttributes(args []string) (ldap.Attributes, error) {
	attrs := make(ldap.Attributes)
	for _, arg := range args {
		name, value, err := splitAssignment(arg)
		if err != nil {
			return nil, err
		}
		attrs[name] = append(attrs[name], []byte(value))
	}
	return attrs, nil
}

// parseChanges turns name=value arguments into desired values, in order.
// name= requests removal of the attribute.
func parseChanges(args []string) ([]ldap.AttributeChange, error) {
	changes := make([]ldap.AttributeChange, 0, len(args))
	for _, arg := range args {
		name, value, err := splitAssignment(arg)
		if err != nil {
			return nil, err
		}
		var v []byte
		if value != "" {
			v = []byte(value)
		}
		changes = append(changes, ldap.AttributeChange{Attribute: name, Value: v})
	}
	return changes, nil
}

// parseModifications builds modifications from --add, --replace and --delete
// flags, in that order.
func parseModifications(adds, replaces, deletes []string) ([]ldap.Modification, error) {
	var mods []ldap.Modification

	for _, group := range []struct {
		op   ldap.ModOp
		args []string
	}{{ldap.ModAdd, adds}, {ldap.ModReplace, replaces}} {
		for _, arg := range group.args {
			name, value, err := splitAssignment(arg)
			if err != nil {
				return nil, err
			}
			mods = append(mods, ldap.Modification{Op: group.op, Attribute: name, Value: []byte(value)})
		}
	}

	for _, name := range deletes {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("attribute name cannot be empty")
		}
		mods = append(mods, ldap.Modification{Op: ldap.ModDelete, Attribute: name})
	}

	return mods, nil
}

// parseAttributeList splits a comma separated attribute list.
func parseAttributeList(s string) []string {
	var attrs []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			attrs = append(attrs, part)
		}
	}
	return attrs
}
