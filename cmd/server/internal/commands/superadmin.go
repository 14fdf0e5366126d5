package commands

import (
	"context"
	"errors"
	"time"

	"github.com/tenauth/tenauth/internal/auth"
	"github.com/tenauth/tenauth/internal/logger"
	"github.com/tenauth/tenauth/internal/password"
	"github.com/tenauth/tenauth/internal/token"
)

// CreateSuperadminCmd bootstraps (or resets) the superadmin account. Safe to
// run repeatedly; an existing account gets its password reset and is
// reactivated.
type CreateSuperadminCmd struct {
	Email    string `help:"superadmin email" required:"" env:"TENAUTH_SUPERADMIN_EMAIL"`
	Password string `help:"superadmin password" required:"" env:"TENAUTH_SUPERADMIN_PASSWORD"`

	BcryptCost    int                `help:"bcrypt cost factor" default:"12" env:"TENAUTH_BCRYPT_COST"`
	StoreType     string             `help:"store type (memory or postgres)" default:"postgres" env:"TENAUTH_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *CreateSuperadminCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	if c.StoreType == "memory" {
		return errors.New("create-superadmin requires a durable store (--store-type=postgres)")
	}

	identity, cleanup, err := buildIdentity(ctx, log, c.StoreType, c.PostgresStore)
	if err != nil {
		return err
	}
	defer cleanup()

	// The token service is unused by this command but the orchestrator
	// requires one; any valid secret works.
	tokens, err := token.NewService([]byte("bootstrap-only-secret-never-issued!!"), time.Minute, time.Minute)
	if err != nil {
		return err
	}

	authSvc, err := auth.NewService(identity, tokens, password.NewHasher(c.BcryptCost), auth.Config{})
	if err != nil {
		return err
	}

	p, err := authSvc.EnsureSuperadmin(ctx, c.Email, c.Password)
	if err != nil {
		return err
	}

	log.Info().Str("principal_id", p.PrincipalID.String()).Str("email", p.Email).Msg("Superadmin ready")
	return nil
}
