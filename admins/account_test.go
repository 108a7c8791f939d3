package admins_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tableside/admin-auth/admins"
)

func TestValidatePassword(t *testing.T) {
	require.ErrorIs(t, admins.ValidatePassword("short"), admins.ErrWeakPassword)
	require.NoError(t, admins.ValidatePassword("exactly8"))
	require.NoError(t, admins.ValidatePassword("a perfectly fine passphrase"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := admins.HashPassword("correct horse battery")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery", hash)

	require.True(t, admins.CheckPasswordHash("correct horse battery", hash))
	require.False(t, admins.CheckPasswordHash("wrong password", hash))
}

func TestRoleValidation(t *testing.T) {
	require.True(t, admins.RoleOwner.Valid())
	require.True(t, admins.RoleStaff.Valid())
	require.False(t, admins.Role("superuser").Valid())
	require.False(t, admins.Role("").Valid())
}

func TestRepoScopesByTenant(t *testing.T) {
	repo := admins.NewInMemoryRepo()
	ctx := context.Background()

	account := &admins.Account{
		RestaurantID: 1,
		Email:        "Chef@Example.com",
		PasswordHash: "hash",
		Role:         admins.RoleStaff,
		Active:       true,
	}
	require.NoError(t, repo.Create(ctx, account))
	require.NotEmpty(t, account.ID)

	// Email lookup is case-insensitive within the tenant.
	got, err := repo.GetByEmail(ctx, 1, "chef@example.com")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	// The same email in another tenant is a different namespace.
	_, err = repo.GetByEmail(ctx, 2, "chef@example.com")
	require.ErrorIs(t, err, admins.ErrNotFound)

	require.NoError(t, repo.Create(ctx, &admins.Account{
		RestaurantID: 2,
		Email:        "chef@example.com",
		PasswordHash: "hash",
		Role:         admins.RoleOwner,
		Active:       true,
	}))

	// But a duplicate within the tenant conflicts.
	err = repo.Create(ctx, &admins.Account{
		RestaurantID: 1,
		Email:        "CHEF@example.com",
		PasswordHash: "hash",
		Role:         admins.RoleOwner,
		Active:       true,
	})
	require.ErrorIs(t, err, admins.ErrDuplicateEmail)
}
