package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/tenant"
	"github.com/tenauth/tenauth/internal/token"
)

// tenantHeader carries an explicit tenant id, honored only when it agrees
// with the authenticated token's claims.
const tenantHeader = "X-Tenant-ID"

type contextKey string

const (
	claimsContextKey    contextKey = "claims"
	principalContextKey contextKey = "principal"
)

func claimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	return claims, ok
}

func principalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*models.Principal)
	return p, ok
}

// requireBearer verifies the access token in the Authorization header and
// loads the principal behind it into the request context.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, token.ErrMalformedToken)
			return
		}

		claims, err := s.tokens.Verify(raw, token.KindAccess)
		if err != nil {
			writeError(w, err)
			return
		}

		principalID, err := claims.PrincipalID()
		if err != nil {
			writeError(w, err)
			return
		}

		p, err := s.auth.GetPrincipal(r.Context(), principalID)
		if err != nil {
			// A valid token for a vanished principal is an auth failure,
			// not a 404.
			writeError(w, token.ErrMalformedToken)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		ctx = context.WithValue(ctx, principalContextKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
		return "", false
	}
	return value, true
}

// resolveTenant derives the active tenant for the request from the token
// claims, the {tenant} path segment and the tenant header, failing closed
// when they disagree.
func resolveTenant(r *http.Request) (string, error) {
	ref := tenant.Ref{
		Path:   r.PathValue("tenant"),
		Header: r.Header.Get(tenantHeader),
	}
	if claims, ok := claimsFromContext(r.Context()); ok {
		ref.Claims = claims.TenantID
	}
	return tenant.Resolve(ref)
}
