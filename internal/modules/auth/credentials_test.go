package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore_Register(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	in := aliceInput()
	in.Username = "  Alice "
	in.Email = "ALICE@X.com"
	u, err := env.creds.Register(ctx, in)
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Equal(t, "Alice Liddell", u.FullName)

	stored, err := env.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123!", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))
	assert.Empty(t, stored.RefreshToken)
}

func TestCredentialStore_RegisterValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"blank username", func(in *RegisterInput) { in.Username = "   " }, "username"},
		{"blank email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"blank full name", func(in *RegisterInput) { in.FullName = " " }, "full_name"},
		{"blank password", func(in *RegisterInput) { in.Password = "   " }, "password"},
		{"missing avatar", func(in *RegisterInput) { in.AvatarURL = "" }, "avatar_url"},
		{"password too long", func(in *RegisterInput) { in.Password = strings.Repeat("x", 73) }, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := aliceInput()
			tt.mutate(&in)

			_, err := env.creds.Register(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestCredentialStore_RegisterConflict(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	_, err := env.creds.Register(ctx, aliceInput())
	require.NoError(t, err)

	sameName := aliceInput()
	sameName.Username = "ALICE"
	sameName.Email = "other@x.com"
	_, err = env.creds.Register(ctx, sameName)
	assert.ErrorIs(t, err, ErrConflict)

	sameEmail := aliceInput()
	sameEmail.Username = "alice2"
	sameEmail.Email = "Alice@x.com"
	_, err = env.creds.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCredentialStore_Authenticate(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	registered, err := env.creds.Register(ctx, aliceInput())
	require.NoError(t, err)

	byName, err := env.creds.Authenticate(ctx, "Alice", "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, byName.ID)

	byEmail, err := env.creds.Authenticate(ctx, " alice@x.com ", "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, byEmail.ID)

	_, wrongPassword := env.creds.Authenticate(ctx, "alice", "nope")
	_, unknownUser := env.creds.Authenticate(ctx, "bob", "Secret123!")
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredential)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredential)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())

	_, err = env.creds.Authenticate(ctx, "  ", "x")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.creds.Authenticate(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCredentialStore_VerifyPassword(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	u, err := env.creds.Register(ctx, aliceInput())
	require.NoError(t, err)
	stored, err := env.creds.FindByID(ctx, u.ID)
	require.NoError(t, err)

	assert.True(t, env.creds.VerifyPassword(stored, "Secret123!"))
	assert.False(t, env.creds.VerifyPassword(stored, "secret123!"))
	assert.False(t, env.creds.VerifyPassword(nil, "Secret123!"))
}

func TestCredentialStore_ChangePassword(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	u, err := env.creds.Register(ctx, aliceInput())
	require.NoError(t, err)

	err = env.creds.ChangePassword(ctx, u.ID, "wrong", "NewSecret1!")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	err = env.creds.ChangePassword(ctx, u.ID, "Secret123!", "  ")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.creds.ChangePassword(ctx, u.ID, "Secret123!", "NewSecret1!"))

	_, err = env.creds.Authenticate(ctx, "alice", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = env.creds.Authenticate(ctx, "alice", "NewSecret1!")
	assert.NoError(t, err)

	err = env.creds.ChangePassword(ctx, "missing", "a", "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialStore_Lookups(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	u, err := env.creds.Register(ctx, aliceInput())
	require.NoError(t, err)

	found, err := env.creds.FindByIdentifier(ctx, "ALICE@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = env.creds.FindByIdentifier(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.creds.FindByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialStore_UpdateProfile(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	u, err := env.creds.Register(ctx, aliceInput())
	require.NoError(t, err)
	bob := aliceInput()
	bob.Username, bob.Email = "bob", "bob@x.com"
	_, err = env.creds.Register(ctx, bob)
	require.NoError(t, err)

	updated, err := env.creds.UpdateAccount(ctx, u.ID, " Alice L. ", "Alice.L@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", updated.FullName)
	assert.Equal(t, "alice.l@x.com", updated.Email)

	_, err = env.creds.UpdateAccount(ctx, u.ID, "Alice", "bob@x.com")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = env.creds.UpdateAccount(ctx, u.ID, "", "a@x.com")
	assert.ErrorIs(t, err, ErrValidation)

	withAvatar, err := env.creds.UpdateAvatar(ctx, u.ID, "https://cdn.example/new.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/new.png", withAvatar.AvatarURL)

	withCover, err := env.creds.UpdateCoverImage(ctx, u.ID, "https://cdn.example/cover.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/cover.png", withCover.CoverImageURL)

	_, err = env.creds.UpdateAvatar(ctx, u.ID, " ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.creds.UpdateCoverImage(ctx, "missing", "https://cdn.example/x.png")
	assert.ErrorIs(t, err, ErrNotFound)
}
