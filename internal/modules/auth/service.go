package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vidtube/internal/domain"
	"vidtube/internal/pkg/jwt"
)

const retryBackoff = 25 * time.Millisecond

type Options struct {
	// RevokeSessionOnPasswordChange logs the user out everywhere after a
	// successful password change.
	RevokeSessionOnPasswordChange bool
	// RevokeSessionOnRefreshReuse invalidates the session when an authentic,
	// unexpired refresh token is presented that is no longer the stored one.
	RevokeSessionOnRefreshReuse bool
	// StoreRetryAttempts bounds extra tries of idempotent session writes.
	StoreRetryAttempts int
}

// Service drives the session lifecycle: login, refresh, logout.
type Service struct {
	creds    *CredentialStore
	tokens   TokenIssuer
	sessions SessionStore
	log      zerolog.Logger
	opts     Options
}

type LoginResult struct {
	User   *domain.PublicUser
	Tokens *jwt.Pair
}

func NewService(creds *CredentialStore, tokens TokenIssuer, sessions SessionStore, log zerolog.Logger, opts Options) *Service {
	if opts.StoreRetryAttempts < 0 {
		opts.StoreRetryAttempts = 0
	}
	return &Service{
		creds:    creds,
		tokens:   tokens,
		sessions: sessions,
		log:      log.With().Str("component", "auth").Logger(),
		opts:     opts,
	}
}

func (s *Service) Credentials() *CredentialStore { return s.creds }

func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.PublicUser, error) {
	u, err := s.creds.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// Login verifies the password, issues a pair and makes its refresh token the
// only live one for the user.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	u, err := s.creds.Authenticate(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredential) {
			s.log.Info().Msg("login rejected")
		}
		return nil, err
	}

	pair, err := s.tokens.IssuePair(u)
	if err != nil {
		return nil, internal("issue tokens", err)
	}
	err = s.retry(ctx, func() error {
		return s.sessions.Persist(ctx, u.ID, pair.RefreshToken, pair.RefreshExpiresAt)
	})
	if err != nil {
		return nil, internal("persist session", err)
	}

	s.log.Info().Str("user_id", u.ID).Msg("user logged in")
	return &LoginResult{User: u.Public(), Tokens: pair}, nil
}

// Refresh trades a live refresh token for a new pair. The old token stops
// working as soon as this returns; of two concurrent calls with the same
// token exactly one succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*jwt.Pair, error) {
	claims, err := s.tokens.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		s.log.Warn().Err(err).Msg("refresh token rejected")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	userID := claims.UserID()

	u, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Warn().Str("user_id", userID).Msg("refresh for unknown user")
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	ok, err := s.sessions.Validate(ctx, userID, refreshToken)
	if err != nil {
		return nil, internal("validate session", err)
	}
	if !ok {
		s.onReplay(ctx, userID)
		return nil, ErrUnauthorized
	}

	pair, err := s.tokens.IssuePair(u)
	if err != nil {
		return nil, internal("issue tokens", err)
	}
	rotated, err := s.sessions.Rotate(ctx, userID, refreshToken, pair.RefreshToken, pair.RefreshExpiresAt)
	if err != nil {
		return nil, internal("rotate session", err)
	}
	if !rotated {
		s.log.Warn().Str("user_id", userID).Msg("refresh lost rotation race")
		return nil, ErrUnauthorized
	}
	return pair, nil
}

func (s *Service) onReplay(ctx context.Context, userID string) {
	ev := s.log.Warn().Str("user_id", userID)
	if !s.opts.RevokeSessionOnRefreshReuse {
		ev.Msg("refresh token does not match stored session")
		return
	}
	ev.Msg("refresh token reuse detected, revoking session")
	err := s.retry(ctx, func() error { return s.sessions.Invalidate(ctx, userID) })
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("revoke session after reuse")
	}
}

// Logout clears the stored refresh token. Access tokens already handed out
// stay valid until they expire.
func (s *Service) Logout(ctx context.Context, userID string) error {
	err := s.retry(ctx, func() error { return s.sessions.Invalidate(ctx, userID) })
	if err != nil {
		return internal("invalidate session", err)
	}
	s.log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := s.creds.ChangePassword(ctx, userID, oldPassword, newPassword); err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Msg("password changed")
	if !s.opts.RevokeSessionOnPasswordChange {
		return nil
	}
	err := s.retry(ctx, func() error { return s.sessions.Invalidate(ctx, userID) })
	if err != nil {
		return internal("invalidate session", err)
	}
	return nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*domain.PublicUser, error) {
	u, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (s *Service) UpdateAccount(ctx context.Context, userID, fullName, email string) (*domain.PublicUser, error) {
	return s.creds.UpdateAccount(ctx, userID, fullName, email)
}

func (s *Service) UpdateAvatar(ctx context.Context, userID, url string) (*domain.PublicUser, error) {
	return s.creds.UpdateAvatar(ctx, userID, url)
}

func (s *Service) UpdateCoverImage(ctx context.Context, userID, url string) (*domain.PublicUser, error) {
	return s.creds.UpdateCoverImage(ctx, userID, url)
}

// retry runs an idempotent store write up to 1+StoreRetryAttempts times.
func (s *Service) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.opts.StoreRetryAttempts; attempt++ {
		if attempt > 0 {
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("retrying session write")
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
	}
	return err
}
