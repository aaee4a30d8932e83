package auth

import (
	"time"

	"vidtube/internal/domain"
	"vidtube/internal/pkg/jwt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// identifier prefers username and falls back to email.
func (r LoginRequest) identifier() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type UpdateAccountRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type ImageRequest struct {
	URL string `json:"url"`
}

type TokensResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type LoginResponse struct {
	User *domain.PublicUser `json:"user"`
	TokensResponse
}

func tokensResponse(p *jwt.Pair) TokensResponse {
	return TokensResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
