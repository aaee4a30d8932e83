package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidtube/internal/domain"
	"vidtube/internal/middleware"
	"vidtube/internal/pkg/response"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// CookieOptions controls the token cookies set on login and refresh.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	Path     string
	Domain   string
}

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
	cookies CookieOptions
	log     zerolog.Logger
}

func NewHandler(service *Service, cookies CookieOptions, log zerolog.Logger) *Handler {
	if cookies.Path == "" {
		cookies.Path = "/"
	}
	if cookies.SameSite == 0 {
		cookies.SameSite = http.SameSiteLaxMode
	}
	return &Handler{service: service, cookies: cookies, log: log}
}

// RegisterPublicRoutes mounts the unauthenticated endpoints. loginGuards run
// in front of the login handler only (rate limiting).
func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup, loginGuards ...gin.HandlerFunc) {
	users := v1.Group("/users")
	{
		users.POST("/register", h.Register)
		users.POST("/login", append(loginGuards, h.Login)...)
		users.POST("/refresh-token", h.RefreshToken)
	}
}

// RegisterProtectedRoutes expects protected to run middleware.JWTAuth.
func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	users := protected.Group("/users")
	{
		users.POST("/logout", h.Logout)
		users.POST("/change-password", h.ChangePassword)
		users.GET("/current-user", h.CurrentUser)
		users.PATCH("/update-account", h.UpdateAccount)
		users.PATCH("/avatar", h.UpdateAvatar)
		users.PATCH("/cover-image", h.UpdateCoverImage)
	}
}

// Register creates a new account.
// @Summary		Register user
// @Tags		Auth
// @Param		request	body	RegisterInput	true	"username, email, full_name, password, avatar_url"
// @Success		201	{object}	map[string]interface{} "Created user without secrets"
// @Failure		400	{object}	map[string]interface{} "Validation error"
// @Failure		409	{object}	map[string]interface{} "Username or email taken"
// @Router		/users/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, user, "User registered successfully")
}

// Login authenticates by username or email and starts a session.
// @Summary		Login
// @Tags		Auth
// @Param		request	body	LoginRequest	true	"username or email, password"
// @Success		200	{object}	map[string]interface{} "User, access and refresh token; cookies set"
// @Failure		400	{object}	map[string]interface{} "Missing identifier or password"
// @Failure		401	{object}	map[string]interface{} "Invalid username or password"
// @Failure		429	{object}	map[string]interface{} "Too many attempts"
// @Router		/users/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Login(c.Request.Context(), req.identifier(), req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setTokenCookies(c, res.Tokens.AccessToken, res.Tokens.AccessExpiresAt, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	response.SuccessWithMessage(c, http.StatusOK, LoginResponse{
		User:           res.User,
		TokensResponse: tokensResponse(res.Tokens),
	}, "User logged in successfully")
}

// RefreshToken rotates the refresh token. The token is read from the
// refreshToken cookie, or from the JSON body.
// @Summary		Refresh access token
// @Tags		Auth
// @Param		request	body	RefreshRequest	false	"refreshToken when no cookie is sent"
// @Success		200	{object}	map[string]interface{} "New token pair; cookies set"
// @Failure		401	{object}	map[string]interface{} "Invalid, expired or reused refresh token"
// @Router		/users/refresh-token [POST]
func (h *Handler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(RefreshCookie)
	if token == "" {
		var req RefreshRequest
		// An absent body, chunked or not, falls through to the 401 below.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		h.writeError(c, ErrUnauthorized)
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setTokenCookies(c, pair.AccessToken, pair.AccessExpiresAt, pair.RefreshToken, pair.RefreshExpiresAt)
	response.SuccessWithMessage(c, http.StatusOK, tokensResponse(pair), "Access token refreshed")
}

// Logout ends the current session.
// @Summary		Logout
// @Tags		Auth
// @Security	BearerAuth
// @Success		200	{object}	map[string]interface{} "Session cleared; cookies removed"
// @Failure		401	{object}	map[string]interface{} "Unauthorized request"
// @Router		/users/logout [POST]
func (h *Handler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		h.writeError(c, err)
		return
	}

	h.clearTokenCookies(c)
	response.SuccessWithMessage(c, http.StatusOK, gin.H{}, "User logged out")
}

// ChangePassword replaces the password of the current user.
// @Summary		Change password
// @Tags		Profile
// @Security	BearerAuth
// @Param		request	body	ChangePasswordRequest	true	"old_password, new_password"
// @Success		200	{object}	map[string]interface{} "Password changed"
// @Failure		400	{object}	map[string]interface{} "Missing new password"
// @Failure		401	{object}	map[string]interface{} "Old password does not match"
// @Router		/users/change-password [POST]
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	err := h.service.ChangePassword(c.Request.Context(), middleware.CurrentUserID(c), req.OldPassword, req.NewPassword)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

// CurrentUser returns the profile attached by the auth middleware.
// @Summary		Current user
// @Tags		Profile
// @Security	BearerAuth
// @Success		200	{object}	map[string]interface{} "Current user"
// @Failure		401	{object}	map[string]interface{} "Unauthorized request"
// @Router		/users/current-user [GET]
func (h *Handler) CurrentUser(c *gin.Context) {
	if user := middleware.CurrentUser(c); user != nil {
		response.Success(c, http.StatusOK, user)
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// UpdateAccount changes full name and email.
// @Summary		Update account
// @Tags		Profile
// @Security	BearerAuth
// @Param		request	body	UpdateAccountRequest	true	"full_name, email"
// @Success		200	{object}	map[string]interface{} "Updated user"
// @Failure		400	{object}	map[string]interface{} "Validation error"
// @Failure		409	{object}	map[string]interface{} "Email taken"
// @Router		/users/update-account [PATCH]
func (h *Handler) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, err := h.service.UpdateAccount(c.Request.Context(), middleware.CurrentUserID(c), req.FullName, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, user, "Account details updated successfully")
}

// UpdateAvatar stores a new avatar reference produced by the upload service.
// @Router		/users/avatar [PATCH]
func (h *Handler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, h.service.UpdateAvatar, "Avatar updated successfully")
}

// UpdateCoverImage stores a new cover image reference.
// @Router		/users/cover-image [PATCH]
func (h *Handler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, h.service.UpdateCoverImage, "Cover image updated successfully")
}

func (h *Handler) updateImage(c *gin.Context, update imageUpdater, message string) {
	var req ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user, err := update(c.Request.Context(), middleware.CurrentUserID(c), req.URL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, user, message)
}

type imageUpdater func(ctx context.Context, userID, url string) (*domain.PublicUser, error)

func (h *Handler) setTokenCookies(c *gin.Context, access string, accessExp time.Time, refresh string, refreshExp time.Time) {
	h.setCookie(c, AccessCookie, access, maxAge(accessExp))
	h.setCookie(c, RefreshCookie, refresh, maxAge(refreshExp))
}

func (h *Handler) clearTokenCookies(c *gin.Context) {
	h.setCookie(c, AccessCookie, "", -1)
	h.setCookie(c, RefreshCookie, "", -1)
}

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(h.cookies.SameSite)
	c.SetCookie(name, value, maxAge, h.cookies.Path, h.cookies.Domain, h.cookies.Secure, true)
}

func maxAge(exp time.Time) int {
	secs := int(time.Until(exp).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// writeError is the single translation from error kinds to HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", verr.Fields)
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input")
	case errors.Is(err, ErrConflict):
		response.Error(c, http.StatusConflict, "CONFLICT", "User with this username or email already exists")
	case errors.Is(err, ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized request")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "User not found")
	default:
		_ = c.Error(err)
		h.log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", middleware.RequestID(c)).
			Msg("request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
