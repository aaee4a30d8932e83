package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"vidtube/internal/domain"
)

// ImageField selects which profile image column UpdateImage writes.
type ImageField string

const (
	ImageAvatar ImageField = "avatar_url"
	ImageCover  ImageField = "cover_image_url"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. Uniqueness of username and email is enforced by the
// unique indexes, so concurrent inserts of the same name cannot both win.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Username = domain.NormalizeUsername(u.Username)
	u.Email = domain.NormalizeEmail(u.Email)

	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.ErrUserExists
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

// GetByIdentifier looks a user up by username or email.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	key := domain.NormalizeUsername(identifier)
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", key, key).
		First(&u).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash})
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*domain.User, error) {
	err := r.update(ctx, id, map[string]any{
		"full_name": fullName,
		"email":     domain.NormalizeEmail(email),
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) UpdateImage(ctx context.Context, id string, field ImageField, url string) (*domain.User, error) {
	if field != ImageAvatar && field != ImageCover {
		return nil, errors.New("unknown image field")
	}
	if err := r.update(ctx, id, map[string]any{string(field): url}); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).UpdateColumns(fields)
	if tx.Error != nil {
		if isDuplicateKey(tx.Error) {
			return domain.ErrUserExists
		}
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrUserNotFound
	}
	return err
}

// isDuplicateKey recognises unique violations from PostgreSQL and from the
// pure Go SQLite driver, whose errors gorm cannot translate on its own.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
