package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vidtube/internal/domain"
)

// Kind tells access and refresh tokens apart.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool {
	return k == KindAccess || k == KindRefresh
}

func (k Kind) other() Kind {
	if k == KindAccess {
		return KindRefresh
	}
	return KindAccess
}

// Verification failures. Exactly one of them is returned by Verify.
var (
	ErrMalformed = errors.New("token malformed or signature invalid")
	ErrExpired   = errors.New("token expired")
	ErrWrongKind = errors.New("token has the wrong kind")
)

// Claims is the signed payload of both token kinds. Access tokens carry the
// profile fields; refresh tokens carry only the subject.
type Claims struct {
	Kind     Kind   `json:"typ"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	jwtlib.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Service issues and verifies HS256 access and refresh tokens. It keeps no
// state besides its configuration and is safe for concurrent use.
type Service struct {
	secrets map[Kind][]byte
	ttl     map[Kind]time.Duration
	issuer  string
	now     func() time.Time
	parser  *jwtlib.Parser
}

// Pair is what login and refresh hand back to the caller.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func New(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, errors.New("jwt: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: token TTLs must be > 0")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		secrets: map[Kind][]byte{
			KindAccess:  []byte(cfg.AccessSecret),
			KindRefresh: []byte(cfg.RefreshSecret),
		},
		ttl: map[Kind]time.Duration{
			KindAccess:  cfg.AccessTTL,
			KindRefresh: cfg.RefreshTTL,
		},
		issuer: cfg.Issuer,
		now:    now,
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(now),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	s.parser = jwtlib.NewParser(opts...)
	return s, nil
}

// IssueAccessToken signs a short-lived token carrying the user's profile.
func (s *Service) IssueAccessToken(u *domain.User) (string, time.Time, error) {
	return s.issue(KindAccess, u)
}

// IssueRefreshToken signs a long-lived token carrying only the subject.
func (s *Service) IssueRefreshToken(u *domain.User) (string, time.Time, error) {
	return s.issue(KindRefresh, u)
}

// IssuePair issues a fresh access and refresh token for u.
func (s *Service) IssuePair(u *domain.User) (*Pair, error) {
	access, accessExp, err := s.IssueAccessToken(u)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(u)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) issue(kind Kind, u *domain.User) (string, time.Time, error) {
	if u == nil || u.ID == "" {
		return "", time.Time{}, errors.New("jwt: user id is required")
	}

	now := s.now()
	exp := now.Add(s.ttl[kind])
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	if kind == KindAccess {
		claims.Username = u.Username
		claims.Email = u.Email
		claims.FullName = u.FullName
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secrets[kind])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	// NumericDate truncates to seconds; report what is actually in the token.
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, expiry and kind of tokenStr. The error is always
// one of ErrMalformed, ErrExpired or ErrWrongKind so callers can tell them
// apart with errors.Is.
func (s *Service) Verify(tokenStr string, expected Kind) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMalformed
	}

	claims, err := s.parse(tokenStr, expected)
	switch {
	case err == nil:
		if !claims.Kind.valid() {
			return nil, ErrMalformed
		}
		if claims.Kind != expected {
			return nil, ErrWrongKind
		}
		if claims.Subject == "" {
			return nil, ErrMalformed
		}
		return claims, nil
	case errors.Is(err, jwtlib.ErrTokenExpired):
		if claims == nil || !claims.Kind.valid() {
			return nil, ErrMalformed
		}
		if claims.Kind != expected {
			return nil, ErrWrongKind
		}
		return nil, ErrExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		// Signed with the other kind's secret?
		other, otherErr := s.parse(tokenStr, expected.other())
		if other != nil && other.Kind == expected.other() &&
			(otherErr == nil || errors.Is(otherErr, jwtlib.ErrTokenExpired)) {
			return nil, ErrWrongKind
		}
		return nil, ErrMalformed
	default:
		return nil, ErrMalformed
	}
}

// parse returns the claims whenever the signature checked out, including
// when claim validation (expiry, issuer) failed afterwards.
func (s *Service) parse(tokenStr string, kind Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return s.secrets[kind], nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwtlib.ErrTokenInvalidClaims):
		return claims, err
	default:
		return nil, err
	}
}
