package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube/internal/domain"
)

var testUser = &domain.User{
	ID:       "0b7c8f0e-3f43-4a53-9d36-6a1f6c1f0a11",
	Username: "alice",
	Email:    "alice@x.com",
	FullName: "Alice Liddell",
}

func newTestService(t *testing.T, now func() time.Time) *Service {
	t.Helper()
	s, err := New(Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    240 * time.Hour,
		Issuer:        "vidtube-test",
		Now:           now,
	})
	require.NoError(t, err)
	return s
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{AccessSecret: "same", RefreshSecret: "same", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = New(Config{AccessSecret: "", RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = New(Config{AccessSecret: "a", RefreshSecret: "r", AccessTTL: 0, RefreshTTL: time.Hour})
	assert.Error(t, err)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	s := newTestService(t, nil)

	token, exp, err := s.IssueAccessToken(testUser)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := s.Verify(token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, claims.UserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.Equal(t, "Alice Liddell", claims.FullName)
	assert.Equal(t, KindAccess, claims.Kind)
}

func TestRefreshToken_CarriesOnlySubject(t *testing.T) {
	s := newTestService(t, nil)

	token, _, err := s.IssueRefreshToken(testUser)
	require.NoError(t, err)

	claims, err := s.Verify(token, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, claims.UserID())
	assert.Empty(t, claims.Username)
	assert.Empty(t, claims.Email)
}

func TestIssuePair_TokensAreUnique(t *testing.T) {
	fixed := time.Now()
	s := newTestService(t, func() time.Time { return fixed })

	p1, err := s.IssuePair(testUser)
	require.NoError(t, err)
	p2, err := s.IssuePair(testUser)
	require.NoError(t, err)

	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)
	assert.NotEqual(t, p1.AccessToken, p2.AccessToken)
}

func TestVerify_DistinguishesFailures(t *testing.T) {
	s := newTestService(t, nil)

	other, err := New(Config{
		AccessSecret:  "some-other-access-secret",
		RefreshSecret: "some-other-refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "vidtube-test",
	})
	require.NoError(t, err)
	forged, _, err := other.IssueAccessToken(testUser)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	stale := newTestService(t, func() time.Time { return past })
	expired, _, err := stale.IssueAccessToken(testUser)
	require.NoError(t, err)

	refresh, _, err := s.IssueRefreshToken(testUser)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		kind  Kind
		want  error
	}{
		{"empty", "", KindAccess, ErrMalformed},
		{"garbage", "not.a.jwt", KindAccess, ErrMalformed},
		{"wrong secret", forged, KindAccess, ErrMalformed},
		{"expired", expired, KindAccess, ErrExpired},
		{"refresh as access", refresh, KindAccess, ErrWrongKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.Verify(tt.token, tt.kind)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_AccessPresentedAsRefresh(t *testing.T) {
	s := newTestService(t, nil)

	access, _, err := s.IssueAccessToken(testUser)
	require.NoError(t, err)

	_, err = s.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	s := newTestService(t, nil)

	claims := Claims{
		Kind: KindAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   testUser.ID,
			Issuer:    "vidtube-test",
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, claims).
		SignedString([]byte("access-secret-for-tests"))
	require.NoError(t, err)

	_, err = s.Verify(token, KindAccess)
	assert.ErrorIs(t, err, ErrMalformed)

	unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).
		SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(unsigned, KindAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_RejectsForeignIssuer(t *testing.T) {
	s := newTestService(t, nil)

	foreign, err := New(Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "someone-else",
	})
	require.NoError(t, err)
	token, _, err := foreign.IssueAccessToken(testUser)
	require.NoError(t, err)

	_, err = s.Verify(token, KindAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_MissingOrUnknownKindIsMalformed(t *testing.T) {
	s := newTestService(t, nil)

	sign := func(kind Kind, exp time.Time) string {
		t.Helper()
		claims := Claims{
			Kind: kind,
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject:   testUser.ID,
				Issuer:    "vidtube-test",
				IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(-2 * time.Hour)),
				ExpiresAt: jwtlib.NewNumericDate(exp),
			},
		}
		token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).
			SignedString([]byte("access-secret-for-tests"))
		require.NoError(t, err)
		return token
	}

	live := time.Now().Add(time.Minute)
	gone := time.Now().Add(-time.Hour)
	tests := []struct {
		name  string
		token string
		kind  Kind
	}{
		{"no kind as access", sign("", live), KindAccess},
		{"no kind as refresh", sign("", live), KindRefresh},
		{"unknown kind", sign("session", live), KindAccess},
		{"no kind and expired", sign("", gone), KindAccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.Verify(tt.token, tt.kind)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
