package auth

import (
	"context"
	"time"

	"vidtube/internal/domain"
	"vidtube/internal/pkg/jwt"
	"vidtube/internal/repository"
)

// UserRepository is the persistence the credential store needs.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateAccount(ctx context.Context, id, fullName, email string) (*domain.User, error)
	UpdateImage(ctx context.Context, id string, field repository.ImageField, url string) (*domain.User, error)
}

// SessionStore holds the single live refresh token of each user.
// Implemented by repository.SessionRepository and session.RedisStore.
type SessionStore interface {
	Persist(ctx context.Context, userID, token string, expiresAt time.Time) error
	Validate(ctx context.Context, userID, token string) (bool, error)
	// Rotate swaps previous for next only if previous is still stored.
	Rotate(ctx context.Context, userID, previous, next string, expiresAt time.Time) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

type TokenIssuer interface {
	IssuePair(u *domain.User) (*jwt.Pair, error)
	Verify(token string, expected jwt.Kind) (*jwt.Claims, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}
