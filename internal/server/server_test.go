package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenauth/tenauth/internal/auth"
	"github.com/tenauth/tenauth/internal/logger"
	"github.com/tenauth/tenauth/internal/password"
	"github.com/tenauth/tenauth/internal/store/memory"
	"github.com/tenauth/tenauth/internal/token"
)

var testSecret = []byte("test-secret-key-min-32-bytes-long!!")

func newTestServer(t *testing.T) (*httptest.Server, *auth.Service) {
	t.Helper()

	identity := memory.NewIdentity()

	tokens, err := token.NewService(testSecret, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	authSvc, err := auth.NewService(identity, tokens, password.NewHasher(password.MinCost), auth.Config{
		StoreTimeout:  time.Second,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)

	srv := NewServer(authSvc, tokens, []string{"*"})
	ts := httptest.NewServer(srv.Handler(logger.Setup(false)))
	t.Cleanup(ts.Close)

	return ts, authSvc
}

func seedSuperadmin(t *testing.T, authSvc *auth.Service) {
	t.Helper()
	_, err := authSvc.EnsureSuperadmin(t.Context(), "root@example.com", "root-password")
	require.NoError(t, err)
}

func doJSON(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func login(t *testing.T, ts *httptest.Server, email, passwd string) auth.TokenPair {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", loginRequest{Email: email, Password: passwd})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[auth.TokenPair](t, resp)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("JSON body", func(t *testing.T) {
		ts, authSvc := newTestServer(t)
		seedSuperadmin(t, authSvc)

		pair := login(t, ts, "root@example.com", "root-password")
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "bearer", pair.TokenType)
	})

	t.Run("form body", func(t *testing.T) {
		ts, authSvc := newTestServer(t)
		seedSuperadmin(t, authSvc)

		form := url.Values{"username": {"root@example.com"}, "password": {"root-password"}}
		resp, err := http.Post(ts.URL+"/v1/auth/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("bad credentials are generic 401", func(t *testing.T) {
		ts, authSvc := newTestServer(t)
		seedSuperadmin(t, authSvc)

		wrongPw := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", loginRequest{Email: "root@example.com", Password: "nope-nope"})
		unknown := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", loginRequest{Email: "ghost@example.com", Password: "nope-nope"})

		require.Equal(t, http.StatusUnauthorized, wrongPw.StatusCode)
		require.Equal(t, http.StatusUnauthorized, unknown.StatusCode)

		wrongBody := decodeBody[errorResponse](t, wrongPw)
		unknownBody := decodeBody[errorResponse](t, unknown)
		require.Equal(t, wrongBody.Error, unknownBody.Error)
	})

	t.Run("locked account maps to 429", func(t *testing.T) {
		ts, authSvc := newTestServer(t)
		seedSuperadmin(t, authSvc)

		for i := 0; i < 5; i++ {
			resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", loginRequest{Email: "root@example.com", Password: "nope-nope"})
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		}

		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", loginRequest{Email: "root@example.com", Password: "root-password"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	})
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	ts, authSvc := newTestServer(t)
	seedSuperadmin(t, authSvc)

	pair := login(t, ts, "root@example.com", "root-password")

	t.Run("refresh rotates", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		next := decodeBody[auth.TokenPair](t, resp)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		// The rotated-out token no longer refreshes.
		replay := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
		defer replay.Body.Close()
		require.Equal(t, http.StatusUnauthorized, replay.StatusCode)

		pair = next
	})

	t.Run("access token rejected for refresh", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/refresh", "", refreshRequest{RefreshToken: pair.AccessToken})
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout revokes", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/logout", "", refreshRequest{RefreshToken: pair.RefreshToken})
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		replay := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/refresh", "", refreshRequest{RefreshToken: pair.RefreshToken})
		defer replay.Body.Close()
		require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	})
}

func TestMeEndpoint(t *testing.T) {
	ts, authSvc := newTestServer(t)
	seedSuperadmin(t, authSvc)
	pair := login(t, ts, "root@example.com", "root-password")

	t.Run("requires bearer token", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/v1/auth/me", "", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("returns the principal", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/v1/auth/me", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		me := decodeBody[principalResponse](t, resp)
		require.Equal(t, "root@example.com", me.Email)
		require.True(t, me.Superadmin)
	})

	t.Run("refresh token rejected as bearer", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/v1/auth/me", pair.RefreshToken, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestTenantEndpoints(t *testing.T) {
	ts, authSvc := newTestServer(t)
	seedSuperadmin(t, authSvc)
	rootPair := login(t, ts, "root@example.com", "root-password")

	createReq := createTenantRequest{
		Name:          "Acme Corp",
		AdminEmail:    "admin@acme.com",
		AdminPassword: "admin-password",
	}

	t.Run("create requires superadmin", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tenants", "", createReq)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	var acmeID string

	t.Run("create tenant", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tenants", rootPair.AccessToken, createReq)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		created := decodeBody[struct {
			Tenant tenantResponse    `json:"tenant"`
			Admin  principalResponse `json:"admin"`
		}](t, resp)
		require.Equal(t, "org_acme_corp", created.Tenant.NamespaceKey)
		require.Equal(t, "active", created.Tenant.Status)
		require.NotNil(t, created.Admin.TenantID)
		require.Equal(t, created.Tenant.OrgID, *created.Admin.TenantID)

		acmeID = created.Tenant.OrgID
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tenants", rootPair.AccessToken, createReq)
		defer resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("tenant admin cannot manage tenants", func(t *testing.T) {
		adminPair := login(t, ts, "admin@acme.com", "admin-password")
		resp := doJSON(t, http.MethodGet, ts.URL+"/v1/tenants", adminPair.AccessToken, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("tenant check resolves from token claims", func(t *testing.T) {
		adminPair := login(t, ts, "admin@acme.com", "admin-password")
		resp := doJSON(t, http.MethodGet, ts.URL+"/v1/t/"+acmeID+"/check", adminPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody[map[string]string](t, resp)
		require.Equal(t, acmeID, body["tenant_id"])
	})

	t.Run("conflicting tenant header fails closed", func(t *testing.T) {
		adminPair := login(t, ts, "admin@acme.com", "admin-password")

		req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/t/"+acmeID+"/check", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+adminPair.AccessToken)
		req.Header.Set("X-Tenant-ID", "some-other-tenant")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("wrong tenant path fails closed", func(t *testing.T) {
		adminPair := login(t, ts, "admin@acme.com", "admin-password")
		resp := doJSON(t, http.MethodGet, ts.URL+"/v1/t/another-tenant/check", adminPair.AccessToken, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("suspend denies tenant operations", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, ts.URL+"/v1/tenants/Acme%20Corp/status", rootPair.AccessToken, tenantStatusRequest{Suspended: true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody[tenantResponse](t, resp)
		require.Equal(t, "suspended", body.Status)

		adminPair := login(t, ts, "admin@acme.com", "admin-password")
		check := doJSON(t, http.MethodGet, ts.URL+"/v1/t/"+acmeID+"/check", adminPair.AccessToken, nil)
		defer check.Body.Close()
		require.Equal(t, http.StatusForbidden, check.StatusCode)

		reactivate := doJSON(t, http.MethodPut, ts.URL+"/v1/tenants/Acme%20Corp/status", rootPair.AccessToken, tenantStatusRequest{Suspended: false})
		reactivate.Body.Close()
		require.Equal(t, http.StatusOK, reactivate.StatusCode)
	})

	t.Run("get and list", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/v1/tenants/Acme%20Corp", rootPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody[tenantResponse](t, resp)
		require.Equal(t, acmeID, body.OrgID)

		list := doJSON(t, http.MethodGet, ts.URL+"/v1/tenants", rootPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, list.StatusCode)
		tenants := decodeBody[[]tenantResponse](t, list)
		require.Len(t, tenants, 1)
	})

	t.Run("delete cascades", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, ts.URL+"/v1/tenants/Acme%20Corp", rootPair.AccessToken, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		missing := doJSON(t, http.MethodGet, ts.URL+"/v1/tenants/Acme%20Corp", rootPair.AccessToken, nil)
		defer missing.Body.Close()
		require.Equal(t, http.StatusNotFound, missing.StatusCode)

		loginResp := doJSON(t, http.MethodPost, ts.URL+"/v1/auth/login", "", loginRequest{Email: "admin@acme.com", Password: "admin-password"})
		defer loginResp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, loginResp.StatusCode)
	})
}
