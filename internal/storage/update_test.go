package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuildUserUpdateEmpty(t *testing.T) {
	t.Parallel()

	_, _, err := buildUserUpdate(42, UserUpdate{})
	require.Equal(t, ErrEmptyUpdate, err)
}

func TestBuildUserUpdateAllFields(t *testing.T) {
	t.Parallel()

	sql, args, err := buildUserUpdate(42, UserUpdate{
		Username: strPtr("alice"),
		Name:     strPtr("Alice"),
		Token:    strPtr("secret"),
	})

	require.NoError(t, err)
	require.Equal(t, "update users set username = $1, name = $2, token = $3 where id = $4", sql)
	require.Equal(t, []interface{}{"alice", "Alice", "secret", int64(42)}, args)
}

func TestBuildUserUpdateSingleField(t *testing.T) {
	t.Parallel()

	sql, args, err := buildUserUpdate(7, UserUpdate{Name: strPtr("Bob")})

	require.NoError(t, err)
	require.Equal(t, "update users set name = $1 where id = $2", sql)
	require.Equal(t, []interface{}{"Bob", int64(7)}, args)
}

func TestBuildUserUpdateEmptyStringIsAValue(t *testing.T) {
	t.Parallel()

	// presence, not truthiness: an empty token clears the column
	sql, args, err := buildUserUpdate(7, UserUpdate{Token: strPtr("")})

	require.NoError(t, err)
	require.Equal(t, "update users set token = $1 where id = $2", sql)
	require.Equal(t, []interface{}{"", int64(7)}, args)
}
