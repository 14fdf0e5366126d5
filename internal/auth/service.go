// Package auth composes the credential hasher, token service, tenant rules
// and identity store into the authentication and authorization core:
// login with lockout, token pair issuance, refresh with revocation, tenant
// onboarding and privilege checks.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/password"
	"github.com/tenauth/tenauth/internal/store"
	"github.com/tenauth/tenauth/internal/tenant"
	"github.com/tenauth/tenauth/internal/token"
)

const minPasswordLen = 8

// Config tunes the orchestrator's lockout and store-access behavior.
type Config struct {
	// LockThreshold is the number of consecutive failed logins that locks
	// an account. Default: 5
	LockThreshold int

	// LockCooldown is how long a locked account stays locked. Default: 15m
	LockCooldown time.Duration

	// StoreTimeout bounds every identity store call. Default: 3s
	StoreTimeout time.Duration

	// RetryInterval is the pause before the single retry of an unavailable
	// store call. Default: 100ms
	RetryInterval time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.LockThreshold == 0 {
		c.LockThreshold = 5
	}
	if c.LockCooldown == 0 {
		c.LockCooldown = 15 * time.Minute
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 100 * time.Millisecond
	}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionMeta carries optional audit metadata recorded on the session row.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// Service is the auth orchestrator. It is stateless between requests; all
// cross-request state lives in the identity store or in signed tokens.
type Service struct {
	identity store.Identity
	tokens   *token.Service
	hasher   *password.Hasher
	cfg      Config

	// dummyHash keeps the unknown-email failure path doing the same bcrypt
	// work as a wrong-password failure, so response timing does not reveal
	// whether an email is registered.
	dummyHash string
}

// NewService creates the orchestrator.
func NewService(identity store.Identity, tokens *token.Service, hasher *password.Hasher, cfg Config) (*Service, error) {
	cfg.ApplyDefaults()

	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	return &Service{
		identity:  identity,
		tokens:    tokens,
		hasher:    hasher,
		cfg:       cfg,
		dummyHash: dummy,
	}, nil
}

// NormalizeEmail lowercases and validates an email address. Uniqueness and
// lookups always operate on the normalized form.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Authenticate verifies an email/password pair. Unknown email and wrong
// password produce the same ErrInvalidCredentials after comparable work.
// Accounts inside a lockout window are rejected before any hashing.
func (s *Service) Authenticate(ctx context.Context, email, passwd string) (*models.Principal, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		// Same cost and same error as an unknown address.
		s.hasher.Verify(passwd, s.dummyHash)
		return nil, ErrInvalidCredentials
	}

	p, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Principal, error) {
		return s.identity.Principals.FindByEmail(ctx, email)
	})
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			s.hasher.Verify(passwd, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if p.IsLocked(now) {
		return nil, ErrAccountLocked
	}

	if !s.hasher.Verify(passwd, p.PasswordHash) {
		count, ferr := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (int, error) {
			return s.identity.Principals.RecordLoginFailure(ctx, p.PrincipalID, s.cfg.LockThreshold, now.Add(s.cfg.LockCooldown))
		})
		if ferr != nil {
			log.Warn().Err(ferr).Str("principal_id", p.PrincipalID.String()).Msg("Failed to record login failure")
		} else if count >= s.cfg.LockThreshold {
			log.Info().Str("principal_id", p.PrincipalID.String()).Int("failures", count).Msg("Account locked after repeated failures")
		}
		return nil, ErrInvalidCredentials
	}

	if !p.Active {
		return nil, ErrInactiveAccount
	}

	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Principals.ResetLoginFailures(ctx, p.PrincipalID, now)
	}); err != nil {
		log.Warn().Err(err).Str("principal_id", p.PrincipalID.String()).Msg("Failed to reset login failures")
	}

	p.FailedLogins = 0
	p.LockedUntil = nil
	p.LastLoginAt = &now

	return p, nil
}

// Login authenticates and issues a token pair.
func (s *Service) Login(ctx context.Context, email, passwd string, meta SessionMeta) (*TokenPair, *models.Principal, error) {
	p, err := s.Authenticate(ctx, email, passwd)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, p, meta)
	if err != nil {
		return nil, nil, err
	}

	return pair, p, nil
}

// Refresh exchanges a valid refresh token for a new token pair, rotating the
// underlying session. The principal must still exist and be active; a
// revoked session is rejected with the generic credentials error.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	principalID, err := claims.PrincipalID()
	if err != nil {
		return nil, err
	}

	fp := Fingerprint(refreshToken)
	sess, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Session, error) {
		return s.identity.Sessions.GetByFingerprint(ctx, fp)
	})
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if sess.PrincipalID != principalID {
		return nil, ErrInvalidCredentials
	}

	p, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Principal, error) {
		return s.identity.Principals.Get(ctx, principalID)
	})
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			// A valid-looking token for a deleted principal is still rejected.
			return nil, ErrInactiveAccount
		}
		return nil, err
	}
	if !p.Active {
		return nil, ErrInactiveAccount
	}

	// Rotate: revoke the presented token before issuing the new pair.
	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Sessions.DeleteByFingerprint(ctx, fp)
	}); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return nil, err
	}

	return s.issuePair(ctx, p, meta)
}

// Logout revokes the session behind a refresh token. Revoking an already
// revoked token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.tokens.Verify(refreshToken, token.KindRefresh); err != nil {
		return err
	}

	err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Sessions.DeleteByFingerprint(ctx, Fingerprint(refreshToken))
	})
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil
	}
	return err
}

// LogoutAll revokes every session for a principal.
func (s *Service) LogoutAll(ctx context.Context, principalID uuid.UUID) (int, error) {
	return run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (int, error) {
		return s.identity.Sessions.DeleteByPrincipal(ctx, principalID)
	})
}

// GetPrincipal loads a principal by ID.
func (s *Service) GetPrincipal(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	return run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Principal, error) {
		return s.identity.Principals.Get(ctx, principalID)
	})
}

func (s *Service) issuePair(ctx context.Context, p *models.Principal, meta SessionMeta) (*TokenPair, error) {
	tenantID := ""
	if p.OrgID != nil {
		tenantID = p.OrgID.String()
	}

	access, accessExp, err := s.tokens.IssueAccess(p.PrincipalID, tenantID, p.Superadmin, nil)
	if err != nil {
		return nil, err
	}

	refresh, refreshExp, err := s.tokens.IssueRefresh(p.PrincipalID, tenantID, p.Superadmin)
	if err != nil {
		return nil, err
	}

	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &models.Session{
		SessionID:   sessionID,
		PrincipalID: p.PrincipalID,
		OrgID:       p.OrgID,
		Fingerprint: Fingerprint(refresh),
		CreatedAt:   now,
		ExpiresAt:   refreshExp,
		LastUsedAt:  now,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
	}

	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Sessions.Create(ctx, session)
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    accessExp,
	}, nil
}

// CreatePrincipalParams describes a principal to create.
type CreatePrincipalParams struct {
	Email      string
	Password   string
	OrgID      *uuid.UUID
	Superadmin bool
}

// CreatePrincipal creates a principal. Elevation to superadmin requires the
// acting caller to already be a verified superadmin.
func (s *Service) CreatePrincipal(ctx context.Context, actor *models.Principal, params CreatePrincipalParams) (*models.Principal, error) {
	if params.Superadmin && (actor == nil || !actor.Superadmin) {
		return nil, ErrInsufficientPrivilege
	}
	return s.createPrincipal(ctx, params)
}

func (s *Service) createPrincipal(ctx context.Context, params CreatePrincipalParams) (*models.Principal, error) {
	email, err := NormalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if len(params.Password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	principalID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &models.Principal{
		PrincipalID:  principalID,
		Email:        email,
		PasswordHash: hash,
		OrgID:        params.OrgID,
		Superadmin:   params.Superadmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Principals.Create(ctx, p)
	}); err != nil {
		return nil, err
	}

	return p, nil
}

// CreateTenant onboards a new organization together with its admin
// principal. The admin is written first and the organization row is the
// committing step; if the organization write fails the admin is rolled back
// so no orphaned account survives a clean failure. A crash in between leaves
// an orphan that CleanupOrphanAdmins reclaims, and a retried CreateTenant
// with the same admin email reclaims it inline.
func (s *Service) CreateTenant(ctx context.Context, name, adminEmail, adminPassword string) (*models.Organization, *models.Principal, error) {
	name = strings.TrimSpace(name)
	namespaceKey, err := tenant.NamespaceKey(name)
	if err != nil {
		return nil, nil, err
	}

	if _, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Organization, error) {
		return s.identity.Organizations.FindByName(ctx, name)
	}); err == nil {
		return nil, nil, store.ErrOrganizationAlreadyExists
	} else if !errors.Is(err, store.ErrOrganizationNotFound) {
		return nil, nil, err
	}

	orgID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, err
	}

	adminParams := CreatePrincipalParams{
		Email:    adminEmail,
		Password: adminPassword,
		OrgID:    &orgID,
	}

	admin, err := s.createPrincipal(ctx, adminParams)
	if errors.Is(err, store.ErrPrincipalAlreadyExists) {
		admin, err = s.reclaimOrphanAdmin(ctx, adminParams)
	}
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	org := &models.Organization{
		OrgID:            orgID,
		Name:             name,
		NamespaceKey:     namespaceKey,
		Status:           models.OrganizationStatusActive,
		AdminPrincipalID: admin.PrincipalID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Organizations.Create(ctx, org)
	}); err != nil {
		// Roll back the admin rather than leave an orphaned account.
		if derr := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
			return s.identity.Principals.Delete(ctx, admin.PrincipalID)
		}); derr != nil {
			log.Error().Err(derr).
				Str("principal_id", admin.PrincipalID.String()).
				Msg("Failed to roll back tenant admin; orphan will be reclaimed by cleanup")
		}
		return nil, nil, err
	}

	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("name", org.Name).
		Msg("Created tenant")

	return org, admin, nil
}

// reclaimOrphanAdmin handles a duplicate admin email during tenant creation:
// if the existing principal is an orphan from an earlier failed onboarding
// it is removed and recreated, otherwise the duplicate stands.
func (s *Service) reclaimOrphanAdmin(ctx context.Context, params CreatePrincipalParams) (*models.Principal, error) {
	email, err := NormalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}

	existing, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Principal, error) {
		return s.identity.Principals.FindByEmail(ctx, email)
	})
	if err != nil {
		return nil, err
	}

	if existing.Superadmin || existing.OrgID == nil {
		return nil, store.ErrPrincipalAlreadyExists
	}

	if _, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Organization, error) {
		return s.identity.Organizations.Get(ctx, *existing.OrgID)
	}); err == nil {
		return nil, store.ErrPrincipalAlreadyExists
	} else if !errors.Is(err, store.ErrOrganizationNotFound) {
		return nil, err
	}

	log.Info().
		Str("principal_id", existing.PrincipalID.String()).
		Msg("Reclaiming orphaned tenant admin")

	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Principals.Delete(ctx, existing.PrincipalID)
	}); err != nil {
		return nil, err
	}

	return s.createPrincipal(ctx, params)
}

// DeleteTenant removes an organization and cascades to its principals,
// sessions and data namespace.
func (s *Service) DeleteTenant(ctx context.Context, name string) error {
	org, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Organization, error) {
		return s.identity.Organizations.FindByName(ctx, name)
	})
	if err != nil {
		return err
	}

	return runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Organizations.Delete(ctx, org.OrgID)
	})
}

// SuspendTenant marks an organization suspended. Its principals keep their
// accounts but every tenant-scoped operation is denied until reactivation.
func (s *Service) SuspendTenant(ctx context.Context, name string, suspended bool) (*models.Organization, error) {
	org, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Organization, error) {
		return s.identity.Organizations.FindByName(ctx, name)
	})
	if err != nil {
		return nil, err
	}

	status := models.OrganizationStatusActive
	if suspended {
		status = models.OrganizationStatusSuspended
	}

	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Organizations.UpdateStatus(ctx, org.OrgID, status)
	}); err != nil {
		return nil, err
	}

	org.Status = status
	return org, nil
}

// ListTenants lists all organizations.
func (s *Service) ListTenants(ctx context.Context) ([]*models.Organization, error) {
	return run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) ([]*models.Organization, error) {
		return s.identity.Organizations.List(ctx)
	})
}

// GetTenant loads an organization by name.
func (s *Service) GetTenant(ctx context.Context, name string) (*models.Organization, error) {
	return run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Organization, error) {
		return s.identity.Organizations.FindByName(ctx, name)
	})
}

// SweepExpiredSessions removes refresh sessions past their expiry.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int, error) {
	return run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (int, error) {
		return s.identity.Sessions.DeleteExpired(ctx)
	})
}

// CleanupOrphanAdmins removes principals left behind by tenant onboarding
// that crashed before the organization write committed.
func (s *Service) CleanupOrphanAdmins(ctx context.Context) (int, error) {
	orphans, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) ([]*models.Principal, error) {
		return s.identity.Principals.ListOrphanAdmins(ctx)
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, orphan := range orphans {
		if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
			return s.identity.Principals.Delete(ctx, orphan.PrincipalID)
		}); err != nil {
			log.Warn().Err(err).Str("principal_id", orphan.PrincipalID.String()).Msg("Failed to remove orphan admin")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("count", removed).Msg("Removed orphaned tenant admins")
	}

	return removed, nil
}

// EnsureSuperadmin creates the superadmin principal, or resets its password
// and reactivates it if it already exists. Used by the bootstrap command.
func (s *Service) EnsureSuperadmin(ctx context.Context, email, passwd string) (*models.Principal, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(passwd) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}

	existing, err := run(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) (*models.Principal, error) {
		return s.identity.Principals.FindByEmail(ctx, normalized)
	})
	if err != nil {
		if !errors.Is(err, store.ErrPrincipalNotFound) {
			return nil, err
		}
		return s.createPrincipal(ctx, CreatePrincipalParams{
			Email:      email,
			Password:   passwd,
			Superadmin: true,
		})
	}

	hash, err := s.hasher.Hash(passwd)
	if err != nil {
		return nil, err
	}

	existing.PasswordHash = hash
	existing.Superadmin = true
	existing.Active = true
	existing.FailedLogins = 0
	existing.LockedUntil = nil

	if err := runVoid(ctx, s.cfg.StoreTimeout, s.cfg.RetryInterval, func(ctx context.Context) error {
		return s.identity.Principals.Update(ctx, existing)
	}); err != nil {
		return nil, err
	}

	log.Info().Str("principal_id", existing.PrincipalID.String()).Msg("Reset superadmin credentials")

	return existing, nil
}
