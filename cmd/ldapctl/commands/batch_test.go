package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/isometry/ldapctl/internal/ldap"
)

// MockDirectory implements the directory interface for testing batch runs
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Add(ctx context.Context, dn string, attrs ldap.Attributes) error {
	return m.Called(ctx, dn, attrs).Error(0)
}

func (m *MockDirectory) Modify(ctx context.Context, dn string, mods []ldap.Modification) error {
	return m.Called(ctx, dn, mods).Error(0)
}

func (m *MockDirectory) Delete(ctx context.Context, dn string) error {
	return m.Called(ctx, dn).Error(0)
}

func (m *MockDirectory) SetValue(ctx context.Context, dn, attr string, value []byte) error {
	return m.Called(ctx, dn, attr, value).Error(0)
}

func (m *MockDirectory) AddValue(ctx context.Context, dn, attr string, value []byte) error {
	return m.Called(ctx, dn, attr, value).Error(0)
}

func (m *MockDirectory) ModifyUser(ctx context.Context, userID string, changes []ldap.AttributeChange) error {
	return m.Called(ctx, userID, changes).Error(0)
}

func (m *MockDirectory) ChangePassword(ctx context.Context, userDN, newPassword, currentPassword string) (string, error) {
	args := m.Called(ctx, userDN, newPassword, currentPassword)
	return args.String(0), args.Error(1)
}

const batchDocument = `
operations:
  - op: add
    dn: cn=bob,cn=users,dc=example,dc=com
    attributes:
      objectClass: [top, person]
      sn: [Bob]
  - op: modify
    dn: cn=bob,cn=users,dc=example,dc=com
    changes:
      - op: replace
        attribute: mail
        value: bob@example.com
      - op: delete
        attribute: description
        value: ignored
  - op: set
    dn: cn=bob,cn=users,dc=example,dc=com
    attribute: telephoneNumber
  - op: add-value
    dn: cn=admins,dc=example,dc=com
    attribute: member
    value: cn=bob,cn=users,dc=example,dc=com
  - op: modify-user
    user_id: bob
    changes:
      - attribute: mail
        value: bob@example.com
      - attribute: pager
  - op: passwd
    dn: cn=bob,cn=users,dc=example,dc=com
    new_password: n3w
  - op: delete
    dn: cn=alice,cn=users,dc=example,dc=com
`

func TestParseBatch(t *testing.T) {
	file, err := parseBatch(strings.NewReader(batchDocument))

	require.NoError(t, err)
	require.Len(t, file.Operations, 7)
	assert.Equal(t, "add", file.Operations[0].Op)
	assert.Equal(t, []string{"top", "person"}, file.Operations[0].Attributes["objectClass"])
	assert.Equal(t, "bob", file.Operations[4].UserID)
	assert.Len(t, file.Operations[4].Changes, 2)
}

func TestParseBatch_Errors(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		_, err := parseBatch(strings.NewReader("operations:\n  - op: add\n    distinguished_name: cn=x\n"))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parseBatch(strings.NewReader("operations: [\n"))
		assert.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		file, err := parseBatch(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, file.Operations)
	})
}

func TestExecuteBatch(t *testing.T) {
	file, err := parseBatch(strings.NewReader(batchDocument))
	require.NoError(t, err)

	ctx := context.Background()
	dir := &MockDirectory{}
	bob := "cn=bob,cn=users,dc=example,dc=com"

	dir.On("Add", ctx, bob, ldap.Attributes{
		"objectClass": {[]byte("top"), []byte("person")},
		"sn":          {[]byte("Bob")},
	}).Return(nil).Once()
	dir.On("Modify", ctx, bob, []ldap.Modification{
		{Op: ldap.ModReplace, Attribute: "mail", Value: []byte("bob@example.com")},
		{Op: ldap.ModDelete, Attribute: "description"},
	}).Return(nil).Once()
	dir.On("SetValue", ctx, bob, "telephoneNumber", []byte(nil)).Return(nil).Once()
	dir.On("AddValue", ctx, "cn=admins,dc=example,dc=com", "member", []byte(bob)).Return(nil).Once()
	dir.On("ModifyUser", ctx, "bob", []ldap.AttributeChange{
		{Attribute: "mail", Value: []byte("bob@example.com")},
		{Attribute: "pager"},
	}).Return(errors.New("LDAP modify user failed - User 'bob' not found")).Once()
	dir.On("ChangePassword", ctx, bob, "n3w", "").Return("n3w", nil).Once()
	dir.On("Delete", ctx, "cn=alice,cn=users,dc=example,dc=com").Return(nil).Once()

	errs := executeBatch(ctx, dir, file.Operations, false)

	assert.Equal(t, 1, errs.Len())
	assert.Equal(t, []string{"operation 5 (modify-user): LDAP modify user failed - User 'bob' not found"}, errs.Messages())
	dir.AssertExpectations(t)
}

func TestExecuteBatch_StopOnError(t *testing.T) {
	ctx := context.Background()
	dir := &MockDirectory{}

	ops := []batchOperation{
		{Op: "delete", DN: "cn=a,dc=example,dc=com"},
		{Op: "rename", DN: "cn=b,dc=example,dc=com"},
		{Op: "delete", DN: "cn=c,dc=example,dc=com"},
	}
	dir.On("Delete", ctx, "cn=a,dc=example,dc=com").Return(nil).Once()

	t.Run("stops at the first failure", func(t *testing.T) {
		errs := executeBatch(ctx, dir, ops, true)

		require.Equal(t, 1, errs.Len())
		assert.Contains(t, errs.Messages()[0], `unknown operation "rename"`)
		dir.AssertNotCalled(t, "Delete", ctx, "cn=c,dc=example,dc=com")
	})

	t.Run("continues by default", func(t *testing.T) {
		dir.On("Delete", ctx, "cn=a,dc=example,dc=com").Return(nil).Once()
		dir.On("Delete", ctx, "cn=c,dc=example,dc=com").
			Return(&ldap.LDAPError{Operation: ldap.OpDelete, Category: ldap.ErrorCategoryNotFound, Message: "gone"}).Once()

		errs := executeBatch(ctx, dir, ops, false)

		assert.Equal(t, 2, errs.Len())
		assert.EqualError(t, errs.Err(),
			`operation 2 (rename): unknown operation "rename"; operation 3 (delete): LDAP delete failed - gone`)
	})
}

func TestExecuteOperation_InvalidModification(t *testing.T) {
	dir := &MockDirectory{}

	err := executeOperation(context.Background(), dir, batchOperation{
		Op:      "modify",
		DN:      "cn=bob,dc=example,dc=com",
		Changes: []batchChange{{Op: "increment", Attribute: "uidNumber", Value: "1"}},
	})

	assert.Error(t, err)
	dir.AssertNotCalled(t, "Modify", mock.Anything, mock.Anything, mock.Anything)
}
