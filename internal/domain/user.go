package domain

import (
	"strings"
	"time"
)

// User is the identity record behind every authenticated request.
//
// PasswordHash and RefreshToken never leave the server: they are excluded
// from JSON and stripped from every value handed to callers (see Public).
type User struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	Username         string     `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email            string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	FullName         string     `json:"full_name" gorm:"size:255;index;not null"`
	AvatarURL        string     `json:"avatar_url" gorm:"size:1024;not null"`
	CoverImageURL    string     `json:"cover_image_url,omitempty" gorm:"size:1024"`
	PasswordHash     string     `json:"-" gorm:"not null"`
	RefreshToken     string     `json:"-" gorm:"size:1024"`
	RefreshExpiresAt *time.Time `json:"-" gorm:"index"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PublicUser is the sanitized view of a User.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// NormalizeUsername lower-cases and trims a username.
func NormalizeUsername(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
