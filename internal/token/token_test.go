package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-min-32-bytes-long!!")

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(testSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return svc
}

// signRaw builds a token outside the service so tests can control every claim.
func signRaw(t *testing.T, secret []byte, claims *Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestNewService(t *testing.T) {
	t.Run("short secret rejected", func(t *testing.T) {
		svc, err := NewService([]byte("too-short"), time.Minute, time.Hour)
		require.Error(t, err)
		require.Nil(t, svc)
	})

	t.Run("non-positive TTL rejected", func(t *testing.T) {
		svc, err := NewService(testSecret, 0, time.Hour)
		require.Error(t, err)
		require.Nil(t, svc)
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	principalID := uuid.Must(uuid.NewV7())

	signed, exp, err := svc.IssueAccess(principalID, "tenant-a", false, []string{"read"})
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := svc.Verify(signed, KindAccess)
	require.NoError(t, err)
	require.Equal(t, principalID.String(), claims.Subject)
	require.Equal(t, "tenant-a", claims.TenantID)
	require.False(t, claims.Superadmin)
	require.Equal(t, []string{"read"}, claims.Scopes)

	got, err := claims.PrincipalID()
	require.NoError(t, err)
	require.Equal(t, principalID, got)
}

func TestIssuedTokensAreUnique(t *testing.T) {
	svc := newTestService(t)
	principalID := uuid.Must(uuid.NewV7())

	// Issued within the same second, so iat/exp are identical; only the jti
	// distinguishes them.
	first, _, err := svc.IssueRefresh(principalID, "tenant-a", false)
	require.NoError(t, err)
	second, _, err := svc.IssueRefresh(principalID, "tenant-a", false)
	require.NoError(t, err)

	require.NotEqual(t, first, second)

	claims, err := svc.Verify(first, KindRefresh)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)
}

func TestKindEnforcement(t *testing.T) {
	svc := newTestService(t)
	principalID := uuid.Must(uuid.NewV7())

	access, _, err := svc.IssueAccess(principalID, "", true, nil)
	require.NoError(t, err)

	refresh, _, err := svc.IssueRefresh(principalID, "", true)
	require.NoError(t, err)

	t.Run("access token rejected as refresh", func(t *testing.T) {
		_, err := svc.Verify(access, KindRefresh)
		require.ErrorIs(t, err, ErrWrongKind)
	})

	t.Run("refresh token rejected as access", func(t *testing.T) {
		_, err := svc.Verify(refresh, KindAccess)
		require.ErrorIs(t, err, ErrWrongKind)
	})

	t.Run("refresh token accepted as refresh", func(t *testing.T) {
		claims, err := svc.Verify(refresh, KindRefresh)
		require.NoError(t, err)
		require.True(t, claims.Superadmin)
		require.Empty(t, claims.TenantID)
	})
}

func TestExpiryBoundary(t *testing.T) {
	svc := newTestService(t)
	now := time.Now()

	t.Run("just expired", func(t *testing.T) {
		expired := signRaw(t, testSecret, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.Must(uuid.NewV7()).String(),
				IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
			},
			TokenKind: KindAccess,
		})

		_, err := svc.Verify(expired, KindAccess)
		require.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("well within validity", func(t *testing.T) {
		valid := signRaw(t, testSecret, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.Must(uuid.NewV7()).String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			TokenKind: KindAccess,
		})

		_, err := svc.Verify(valid, KindAccess)
		require.NoError(t, err)
	})
}

func TestVerifyFailures(t *testing.T) {
	svc := newTestService(t)
	now := time.Now()

	t.Run("unknown secret", func(t *testing.T) {
		other := signRaw(t, []byte("another-secret-key-32-bytes-long!!!"), &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.Must(uuid.NewV7()).String(),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			TokenKind: KindAccess,
		})

		_, err := svc.Verify(other, KindAccess)
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := svc.Verify("not.a.jwt", KindAccess)
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		noSub := signRaw(t, testSecret, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			TokenKind: KindAccess,
		})

		_, err := svc.Verify(noSub, KindAccess)
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("missing kind", func(t *testing.T) {
		noKind := signRaw(t, testSecret, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.Must(uuid.NewV7()).String(),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		})

		_, err := svc.Verify(noKind, KindAccess)
		require.ErrorIs(t, err, ErrMalformedToken)
	})
}
