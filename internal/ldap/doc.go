/*
Package ldap provides a thin directory access layer over go-ldap.

Every operation runs as one short session: a handle is created, bound,
used for a single request and released. Nothing is pooled or reused
between calls.

# Sessions

The low-level functions mirror the session lifecycle:

  - Init: connects to the configured server URI and opens the trace sink
  - Bind / BindWithConfig: simple bind, or GSSAPI when a Kerberos realm is set
  - Unbind: releases the handle exactly once

A Handle is secure when it was opened with ldaps:// or upgraded with
StartTLS. Password changes over a secure handle use the password modify
extended operation; otherwise the password attribute is replaced.

# Directory Operations

Directory wraps each request in its own session:

  - Add, Modify, Delete, Search, ChangePassword
  - ModifyUser, SetValue, AddValue: reconcile attributes, writing only what differs
  - GetValue, GetValueList, GetValues, GetValuesLists: attribute lookups

# Errors

Errors are *LDAPError values classified from the LDAP result code and
matched with errors.Is against ErrConnection, ErrAuth, ErrDirectory,
ErrNotFound and ErrTimeout. ErrorList collects messages across calls.

# Logging

Operations log through the tflog "ldap" subsystem. Protocol tracing is
written separately to the configured trace destination at the configured
trace level.
*/
package ldap
