package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tenauth/tenauth/internal/auth"
	"github.com/tenauth/tenauth/internal/httputil"
	"github.com/tenauth/tenauth/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type principalResponse struct {
	PrincipalID string  `json:"principal_id"`
	Email       string  `json:"email"`
	TenantID    *string `json:"tenant_id"`
	Superadmin  bool    `json:"is_superadmin"`
	Active      bool    `json:"is_active"`
}

func principalResponseFrom(p *models.Principal) principalResponse {
	resp := principalResponse{
		PrincipalID: p.PrincipalID.String(),
		Email:       p.Email,
		Superadmin:  p.Superadmin,
		Active:      p.Active,
	}
	if p.OrgID != nil {
		id := p.OrgID.String()
		resp.TenantID = &id
	}
	return resp
}

// handleLogin accepts either a form submission (username/password) or a JSON
// body (email/password) and returns a token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email, passwd, err := loginCredentials(r)
	if err != nil {
		writeError(w, auth.ErrInvalidCredentials)
		return
	}

	pair, _, err := s.auth.Login(r.Context(), email, passwd, sessionMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func loginCredentials(r *http.Request) (string, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", err
		}
		return req.Email, req.Password, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return r.PostFormValue("username"), r.PostFormValue("password"), nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, auth.ErrInvalidCredentials)
		return
	}

	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken, sessionMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, auth.ErrInvalidCredentials)
		return
	}

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrInvalidCredentials)
		return
	}

	count, err := s.auth.LogoutAll(r.Context(), p.PrincipalID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"revoked": count})
}

// handleMe returns the authenticated principal together with the tenant
// resolved for the request.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrInvalidCredentials)
		return
	}

	tenantID, err := resolveTenant(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		principalResponse
		ResolvedTenant string `json:"resolved_tenant,omitempty"`
	}{
		principalResponse: principalResponseFrom(p),
		ResolvedTenant:    tenantID,
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleTenantCheck authorizes the caller against the tenant named in the
// path, exercising the full resolution and authorization chain.
func (s *Server) handleTenantCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrInvalidCredentials)
		return
	}

	tenantID, err := resolveTenant(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.auth.AuthorizeTenant(r.Context(), p, tenantID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"tenant_id": tenantID})
}

func sessionMeta(r *http.Request) auth.SessionMeta {
	return auth.SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: httputil.ClientIPFromContext(r.Context()),
	}
}
