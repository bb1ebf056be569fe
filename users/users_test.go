package users_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Admin1234", true},
		{"short1A", false},
		{"alllowercase1", false},
		{"ALLUPPERCASE1", false},
		{"NoNumbersHere", false},
	}
	for _, tc := range tests {
		t.Run(tc.password, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tc.password)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestNewUser(t *testing.T) {
	u, err := users.New("admin@sdt.com", "Admin1234", users.RoleAdmin)
	require.NoError(t, err)
	require.NotEqual(t, "Admin1234", u.PasswordHash)
	require.True(t, u.CheckPassword("Admin1234"))
	require.False(t, u.CheckPassword("wrong"))
	require.True(t, u.HasRole(users.RoleAdmin))
	require.False(t, u.HasRole(users.RoleManager))
	require.Equal(t, []string{"ADMIN"}, u.RoleNames())

	_, err = users.New("weak@sdt.com", "weak")
	require.Error(t, err)
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	u, err := users.New("Driver@SDT.com", "Driver1234", users.RoleDeliveryGuy)
	require.NoError(t, err)
	u.CompanyID = "company-1"
	require.NoError(t, repo.Upsert(u))
	require.NotEmpty(t, u.ID)

	got, err := repo.GetByEmail("driver@sdt.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = repo.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, "company-1", got.CompanyID)

	require.NoError(t, repo.SetBlocked("driver@sdt.com", true))
	require.True(t, got.Blocked)
	require.NoError(t, repo.SetLastLogin("driver@sdt.com"))
	require.False(t, got.LastLogin.IsZero())

	_, err = repo.GetByEmail("nobody@sdt.com")
	require.ErrorIs(t, err, errors.ErrUserNotFound)
	require.ErrorIs(t, repo.SetBlocked("nobody@sdt.com", true), errors.ErrUserNotFound)
}
