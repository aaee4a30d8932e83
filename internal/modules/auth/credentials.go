package auth

import (
	"context"
	"errors"
	"strings"

	"vidtube/internal/domain"
	"vidtube/internal/pkg/password"
	"vidtube/internal/pkg/validator"
	"vidtube/internal/repository"
)

// RegisterInput is what a new account is created from. AvatarURL and
// CoverImageURL are references produced by the upload service.
type RegisterInput struct {
	Username      string `json:"username" validate:"required,max=64,excludesall=@"`
	Email         string `json:"email" validate:"required,email,max=255"`
	FullName      string `json:"full_name" validate:"required,max=255"`
	Password      string `json:"password" validate:"required"`
	AvatarURL     string `json:"avatar_url" validate:"required,max=1024"`
	CoverImageURL string `json:"cover_image_url" validate:"omitempty,max=1024"`
}

func (in *RegisterInput) normalize() {
	in.Username = domain.NormalizeUsername(in.Username)
	in.Email = domain.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	in.CoverImageURL = strings.TrimSpace(in.CoverImageURL)
}

type accountInput struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// CredentialStore owns user records and password checks.
type CredentialStore struct {
	users  UserRepository
	hasher PasswordHasher
}

func NewCredentialStore(users UserRepository, hasher PasswordHasher) *CredentialStore {
	return &CredentialStore{users: users, hasher: hasher}
}

// Register creates a user. Uniqueness is decided by the insert itself.
func (s *CredentialStore) Register(ctx context.Context, in RegisterInput) (*domain.PublicUser, error) {
	in.normalize()
	fields := validator.Validate(in)
	if strings.TrimSpace(in.Password) == "" {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["password"] = "required"
	}
	if fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		AvatarURL:     in.AvatarURL,
		CoverImageURL: in.CoverImageURL,
		PasswordHash:  hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, ErrConflict
		}
		return nil, internal("create user", err)
	}
	return u.Public(), nil
}

// VerifyPassword reports whether candidate matches the stored hash of u.
func (s *CredentialStore) VerifyPassword(u *domain.User, candidate string) bool {
	if u == nil {
		return s.hasher.Verify("", candidate)
	}
	return s.hasher.Verify(u.PasswordHash, candidate)
}

// Authenticate resolves identifier (username or email) and checks the
// password. Unknown users and wrong passwords both yield ErrInvalidCredential
// after a full hash comparison.
func (s *CredentialStore) Authenticate(ctx context.Context, identifier, plain string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case identifier == "":
		return nil, invalid("identifier", "required")
	case plain == "":
		return nil, invalid("password", "required")
	}

	u, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.VerifyPassword(nil, plain)
			return nil, ErrInvalidCredential
		}
		return nil, internal("load user", err)
	}
	if !s.VerifyPassword(u, plain) {
		return nil, ErrInvalidCredential
	}
	return u, nil
}

// ChangePassword replaces the hash once oldPlain verifies. Sessions are left
// alone; the caller decides whether to invalidate them.
func (s *CredentialStore) ChangePassword(ctx context.Context, userID, oldPlain, newPlain string) error {
	if strings.TrimSpace(newPlain) == "" {
		return invalid("new_password", "required")
	}
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.VerifyPassword(u, oldPlain) {
		return ErrInvalidCredential
	}
	hash, err := s.hashPassword(newPlain)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return s.mapLookup("update password", err)
	}
	return nil
}

func (s *CredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	u, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, s.mapLookup("find user", err)
	}
	return u, nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapLookup("find user", err)
	}
	return u, nil
}

// UpdateAccount changes the display name and email of userID.
func (s *CredentialStore) UpdateAccount(ctx context.Context, userID, fullName, email string) (*domain.PublicUser, error) {
	in := accountInput{
		FullName: strings.TrimSpace(fullName),
		Email:    domain.NormalizeEmail(email),
	}
	if fields := validator.Validate(in); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}
	u, err := s.users.UpdateAccount(ctx, userID, in.FullName, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, ErrConflict
		}
		return nil, s.mapLookup("update account", err)
	}
	return u.Public(), nil
}

func (s *CredentialStore) UpdateAvatar(ctx context.Context, userID, url string) (*domain.PublicUser, error) {
	return s.updateImage(ctx, userID, repository.ImageAvatar, url)
}

func (s *CredentialStore) UpdateCoverImage(ctx context.Context, userID, url string) (*domain.PublicUser, error) {
	return s.updateImage(ctx, userID, repository.ImageCover, url)
}

func (s *CredentialStore) updateImage(ctx context.Context, userID string, field repository.ImageField, url string) (*domain.PublicUser, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalid("url", "required")
	}
	if !validator.Var(url, "max=1024") {
		return nil, invalid("url", "max")
	}
	u, err := s.users.UpdateImage(ctx, userID, field, url)
	if err != nil {
		return nil, s.mapLookup("update image", err)
	}
	return u.Public(), nil
}

func (s *CredentialStore) hashPassword(plain string) (string, error) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return "", invalid("password", "max")
		}
		return "", internal("hash password", err)
	}
	return hash, nil
}

func (s *CredentialStore) mapLookup(op string, err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return ErrNotFound
	}
	return internal(op, err)
}
