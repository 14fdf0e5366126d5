// Package server exposes the authentication core over HTTP: credential
// login, token refresh, and superadmin tenant management.
package server

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/tenauth/tenauth/internal/auth"
	"github.com/tenauth/tenauth/internal/httputil"
	"github.com/tenauth/tenauth/internal/logger"
	"github.com/tenauth/tenauth/internal/token"
)

// Server wraps the auth service with the HTTP surface.
type Server struct {
	auth        *auth.Service
	tokens      *token.Service
	corsOrigins []string
}

// NewServer creates a new server around the auth orchestrator.
func NewServer(authSvc *auth.Service, tokens *token.Service, corsOrigins []string) *Server {
	return &Server{
		auth:        authSvc,
		tokens:      tokens,
		corsOrigins: corsOrigins,
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Credential surface (no bearer token required)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)

	// Authenticated surface
	mux.Handle("GET /v1/auth/me", s.requireBearer(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /v1/auth/logout-all", s.requireBearer(http.HandlerFunc(s.handleLogoutAll)))
	mux.Handle("GET /v1/t/{tenant}/check", s.requireBearer(http.HandlerFunc(s.handleTenantCheck)))

	// Tenant management (superadmin)
	mux.Handle("POST /v1/tenants", s.requireBearer(http.HandlerFunc(s.handleCreateTenant)))
	mux.Handle("GET /v1/tenants", s.requireBearer(http.HandlerFunc(s.handleListTenants)))
	mux.Handle("GET /v1/tenants/{name}", s.requireBearer(http.HandlerFunc(s.handleGetTenant)))
	mux.Handle("DELETE /v1/tenants/{name}", s.requireBearer(http.HandlerFunc(s.handleDeleteTenant)))
	mux.Handle("PUT /v1/tenants/{name}/status", s.requireBearer(http.HandlerFunc(s.handleTenantStatus)))

	handler := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", tenantHeader},
		AllowCredentials: true,
	}).Handler(mux)

	handler = httputil.ClientIPMiddleware()(handler)
	handler = logger.Requests(log)(handler)

	return handler
}
