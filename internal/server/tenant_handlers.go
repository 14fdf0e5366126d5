package server

import (
	"encoding/json"
	"net/http"

	"github.com/tenauth/tenauth/internal/auth"
	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/tenant"
)

type createTenantRequest struct {
	Name          string `json:"name"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

type tenantStatusRequest struct {
	Suspended bool `json:"suspended"`
}

type tenantResponse struct {
	OrgID        string `json:"org_id"`
	Name         string `json:"name"`
	NamespaceKey string `json:"namespace_key"`
	Status       string `json:"status"`
}

func tenantResponseFrom(org *models.Organization) tenantResponse {
	return tenantResponse{
		OrgID:        org.OrgID.String(),
		Name:         org.Name,
		NamespaceKey: org.NamespaceKey,
		Status:       string(org.Status),
	}
}

// requireSuperadmin gates the tenant management handlers.
func (s *Server) requireSuperadmin(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrInvalidCredentials)
		return nil, false
	}
	if err := auth.Authorize(p, "", auth.Requirement{Active: true, Superadmin: true}); err != nil {
		writeError(w, err)
		return nil, false
	}
	return p, true
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSuperadmin(w, r); !ok {
		return
	}

	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, tenant.ErrInvalidName)
		return
	}

	org, admin, err := s.auth.CreateTenant(r.Context(), req.Name, req.AdminEmail, req.AdminPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		Tenant tenantResponse    `json:"tenant"`
		Admin  principalResponse `json:"admin"`
	}{
		Tenant: tenantResponseFrom(org),
		Admin:  principalResponseFrom(admin),
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSuperadmin(w, r); !ok {
		return
	}

	orgs, err := s.auth.ListTenants(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]tenantResponse, 0, len(orgs))
	for _, org := range orgs {
		resp = append(resp, tenantResponseFrom(org))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSuperadmin(w, r); !ok {
		return
	}

	org, err := s.auth.GetTenant(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tenantResponseFrom(org))
}

func (s *Server) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSuperadmin(w, r); !ok {
		return
	}

	if err := s.auth.DeleteTenant(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTenantStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSuperadmin(w, r); !ok {
		return
	}

	var req tenantStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, tenant.ErrInvalidName)
		return
	}

	org, err := s.auth.SuspendTenant(r.Context(), r.PathValue("name"), req.Suspended)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tenantResponseFrom(org))
}
