package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"gorm.io/gorm"

	"vidtube/internal/domain"
)

// SessionRepository keeps the single live refresh token of each user on the
// users row itself.
type SessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

type sessionRow struct {
	RefreshToken     string
	RefreshExpiresAt *time.Time
}

// Persist overwrites whatever token was stored for userID.
func (r *SessionRepository) Persist(ctx context.Context, userID, token string, expiresAt time.Time) error {
	exp := expiresAt.UTC()
	tx := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]any{
			"refresh_token":      token,
			"refresh_expires_at": &exp,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Validate reports whether token is the one currently stored for userID.
func (r *SessionRepository) Validate(ctx context.Context, userID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var row sessionRow
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Select("refresh_token", "refresh_expires_at").
		Where("id = ?", userID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if row.RefreshToken == "" {
		return false, nil
	}
	if row.RefreshExpiresAt != nil && !row.RefreshExpiresAt.After(r.now()) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(row.RefreshToken), []byte(token)) == 1, nil
}

// Rotate swaps previous for next in a single conditional UPDATE. It returns
// false when the stored token is no longer previous, i.e. another refresh or
// a logout got there first.
func (r *SessionRepository) Rotate(ctx context.Context, userID, previous, next string, expiresAt time.Time) (bool, error) {
	if previous == "" || next == "" {
		return false, nil
	}
	exp := expiresAt.UTC()
	tx := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND refresh_token = ?", userID, previous).
		UpdateColumns(map[string]any{
			"refresh_token":      next,
			"refresh_expires_at": &exp,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// Invalidate clears the stored token. Clearing an already empty session is
// not an error.
func (r *SessionRepository) Invalidate(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]any{
			"refresh_token":      "",
			"refresh_expires_at": nil,
		}).Error
}

// DeleteExpired clears refresh tokens whose expiry has passed and returns how
// many sessions were dropped.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("refresh_expires_at IS NOT NULL AND refresh_expires_at < ?", r.now().UTC()).
		UpdateColumns(map[string]any{
			"refresh_token":      "",
			"refresh_expires_at": nil,
		})
	return tx.RowsAffected, tx.Error
}
