package auth

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vidtube/internal/database"
	"vidtube/internal/pkg/jwt"
	"vidtube/internal/pkg/password"
	"vidtube/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	tokens   *jwt.Service
	creds    *CredentialStore
	svc      *Service
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := database.Connect(":memory:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	hasher, err := password.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := jwt.New(jwt.Config{
		AccessSecret:  "auth-test-access-secret",
		RefreshSecret: "auth-test-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    240 * time.Hour,
		Issuer:        "vidtube-test",
	})
	require.NoError(t, err)

	env := &testEnv{
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
		tokens:   tokens,
	}
	env.creds = NewCredentialStore(env.users, hasher)
	env.svc = NewService(env.creds, tokens, env.sessions, zerolog.Nop(), opts)
	return env
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Username:  "alice",
		Email:     "alice@x.com",
		FullName:  "Alice Liddell",
		Password:  "Secret123!",
		AvatarURL: "https://cdn.example/alice.png",
	}
}

// mockSessions lets tests inject store failures.
type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Persist(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return m.Called(ctx, userID, token, expiresAt).Error(0)
}

func (m *mockSessions) Validate(ctx context.Context, userID, token string) (bool, error) {
	args := m.Called(ctx, userID, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessions) Rotate(ctx context.Context, userID, previous, next string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, userID, previous, next, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessions) Invalidate(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
