// Package token issues and verifies the signed, time-bound tokens that carry
// identity, tenant and privilege claims between requests. Tokens are HS256
// JWTs signed with a process-wide secret; access and refresh tokens are
// distinguished by a kind claim that is signed into the payload.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes access tokens from refresh tokens. The kind is part of
// the signed payload, so a refresh token can never be replayed where an
// access token is required and vice versa.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Verification failures. Verify never returns raw library errors so callers
// can branch on the failure class without depending on the JWT implementation.
var (
	ErrExpiredToken     = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrMalformedToken   = errors.New("token malformed")
	ErrWrongKind        = errors.New("token kind mismatch")
)

const issuer = "tenauth"

// Claims is the decoded payload of a signed token.
type Claims struct {
	jwt.RegisteredClaims
	TenantID   string   `json:"tenant_id,omitempty"`
	Superadmin bool     `json:"is_superadmin"`
	TokenKind  Kind     `json:"kind"`
	Scopes     []string `json:"scopes,omitempty"`
}

// PrincipalID returns the subject claim parsed as a UUID.
func (c *Claims) PrincipalID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrMalformedToken
	}
	return id, nil
}

// Service issues and verifies tokens. Issuance and verification are pure CPU
// operations; the service holds no state beyond the signing secret and TTLs.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a token service. The secret must be at least 32 bytes.
func NewService(secret []byte, accessTTL, refreshTTL time.Duration) (*Service, error) {
	if len(secret) < 32 {
		return nil, errors.New("token signing secret must be at least 32 bytes")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	return &Service{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssueAccess creates a short-lived access token for the principal.
// tenantID is empty for superadmins operating against the master namespace.
func (s *Service) IssueAccess(principalID uuid.UUID, tenantID string, superadmin bool, scopes []string) (string, time.Time, error) {
	return s.issue(KindAccess, s.accessTTL, principalID, tenantID, superadmin, scopes)
}

// IssueRefresh creates a long-lived refresh token for the principal.
func (s *Service) IssueRefresh(principalID uuid.UUID, tenantID string, superadmin bool) (string, time.Time, error) {
	return s.issue(KindRefresh, s.refreshTTL, principalID, tenantID, superadmin, nil)
}

func (s *Service) issue(kind Kind, ttl time.Duration, principalID uuid.UUID, tenantID string, superadmin bool, scopes []string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)

	// jwt timestamps truncate to whole seconds, so the jti is what keeps two
	// tokens issued back to back from being byte-identical. Refresh revocation
	// keys sessions by token fingerprint and depends on this.
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principalID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		TenantID:   tenantID,
		Superadmin: superadmin,
		TokenKind:  kind,
		Scopes:     scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates a token, checking the signature, expiry and
// kind marker. Tokens signed with an unknown secret or algorithm fail with
// ErrInvalidSignature; tokens missing required claims fail with
// ErrMalformedToken.
func (s *Service) Verify(tokenStr string, expected Kind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedToken
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}

	if claims.Subject == "" || claims.TokenKind == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}

	if claims.TokenKind != expected {
		return nil, ErrWrongKind
	}

	return claims, nil
}
