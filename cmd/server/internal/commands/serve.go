package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tenauth/tenauth/internal/auth"
	"github.com/tenauth/tenauth/internal/logger"
	"github.com/tenauth/tenauth/internal/password"
	"github.com/tenauth/tenauth/internal/server"
	"github.com/tenauth/tenauth/internal/store"
	memorystore "github.com/tenauth/tenauth/internal/store/memory"
	postgresstore "github.com/tenauth/tenauth/internal/store/postgres"
	"github.com/tenauth/tenauth/internal/token"
)

type ServeCmd struct {
	// Server configuration
	Listen      string   `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"TENAUTH_LISTEN"`
	CORSOrigins []string `help:"allowed CORS origins" default:"http://localhost:3000" env:"TENAUTH_CORS_ORIGINS"`
	Config      string   `help:"path to optional yaml config file; values in the file override flags" env:"TENAUTH_CONFIG" type:"existingfile" optional:""`

	// Token configuration
	TokenSecret string        `help:"HS256 signing secret (min 32 bytes)" env:"TENAUTH_TOKEN_SECRET"`
	AccessTTL   time.Duration `help:"access token lifetime" default:"15m" env:"TENAUTH_ACCESS_TTL"`
	RefreshTTL  time.Duration `help:"refresh token lifetime" default:"168h" env:"TENAUTH_REFRESH_TTL"`

	// Credential configuration
	BcryptCost    int           `help:"bcrypt cost factor" default:"12" env:"TENAUTH_BCRYPT_COST"`
	LockThreshold int           `help:"failed logins before lockout" default:"5" env:"TENAUTH_LOCK_THRESHOLD"`
	LockCooldown  time.Duration `help:"lockout duration" default:"15m" env:"TENAUTH_LOCK_COOLDOWN"`

	// Background maintenance
	SweepInterval time.Duration `help:"interval for expired session and orphan admin sweeps" default:"1h" env:"TENAUTH_SWEEP_INTERVAL"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"TENAUTH_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	ConnString     string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
	MaxConns       int32  `help:"maximum number of connections in pool" default:"20"`
	MinConns       int32  `help:"minimum number of connections in pool" default:"2"`
	ConnectTimeout int32  `help:"connect timeout in seconds" default:"10"`
	AutoMigrate    bool   `help:"run database migrations on startup" default:"false" env:"TENAUTH_POSTGRES_AUTO_MIGRATE"`
}

// fileConfig mirrors the subset of ServeCmd that may come from a yaml file.
// Durations are strings in Go duration syntax ("15m", "168h").
type fileConfig struct {
	Listen        string   `yaml:"listen"`
	CORSOrigins   []string `yaml:"cors_origins"`
	TokenSecret   string   `yaml:"token_secret"`
	AccessTTL     string   `yaml:"access_ttl"`
	RefreshTTL    string   `yaml:"refresh_ttl"`
	BcryptCost    int      `yaml:"bcrypt_cost"`
	LockThreshold int      `yaml:"lock_threshold"`
	LockCooldown  string   `yaml:"lock_cooldown"`
	SweepInterval string   `yaml:"sweep_interval"`
	StoreType     string   `yaml:"store_type"`
	Postgres      struct {
		ConnString  string `yaml:"conn_string"`
		AutoMigrate bool   `yaml:"auto_migrate"`
	} `yaml:"postgres"`
}

func parseDuration(name, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s in config file: %w", name, err)
	}
	*dst = d
	return nil
}

// applyConfigFile merges a yaml config file over the command. Set fields in
// the file win; unset fields keep their flag/env/default values.
func (c *ServeCmd) applyConfigFile() error {
	if c.Config == "" {
		return nil
	}

	data, err := os.ReadFile(c.Config)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if file.Listen != "" {
		c.Listen = file.Listen
	}
	if len(file.CORSOrigins) > 0 {
		c.CORSOrigins = file.CORSOrigins
	}
	if file.TokenSecret != "" {
		c.TokenSecret = file.TokenSecret
	}
	if err := parseDuration("access_ttl", file.AccessTTL, &c.AccessTTL); err != nil {
		return err
	}
	if err := parseDuration("refresh_ttl", file.RefreshTTL, &c.RefreshTTL); err != nil {
		return err
	}
	if err := parseDuration("lock_cooldown", file.LockCooldown, &c.LockCooldown); err != nil {
		return err
	}
	if err := parseDuration("sweep_interval", file.SweepInterval, &c.SweepInterval); err != nil {
		return err
	}
	if file.BcryptCost > 0 {
		c.BcryptCost = file.BcryptCost
	}
	if file.LockThreshold > 0 {
		c.LockThreshold = file.LockThreshold
	}
	if file.StoreType != "" {
		c.StoreType = file.StoreType
	}
	if file.Postgres.ConnString != "" {
		c.PostgresStore.ConnString = file.Postgres.ConnString
	}
	if file.Postgres.AutoMigrate {
		c.PostgresStore.AutoMigrate = true
	}

	return nil
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	if err := c.applyConfigFile(); err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.TokenSecret == "" {
		return errors.New("token signing secret is required (--token-secret or TENAUTH_TOKEN_SECRET)")
	}

	identity, cleanup, err := buildIdentity(ctx, log, c.StoreType, c.PostgresStore)
	if err != nil {
		return err
	}
	defer cleanup()

	tokens, err := token.NewService([]byte(c.TokenSecret), c.AccessTTL, c.RefreshTTL)
	if err != nil {
		return err
	}

	authSvc, err := auth.NewService(identity, tokens, password.NewHasher(c.BcryptCost), auth.Config{
		LockThreshold: c.LockThreshold,
		LockCooldown:  c.LockCooldown,
	})
	if err != nil {
		return err
	}

	srv := server.NewServer(authSvc, tokens, c.CORSOrigins)
	httpServer := configureHTTPServer(c.Listen, srv.Handler(log))

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go runMaintenanceSweep(sweepCtx, authSvc, c.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Msg("Listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}

// runMaintenanceSweep periodically removes expired refresh sessions and
// orphaned tenant admins.
func runMaintenanceSweep(ctx context.Context, authSvc *auth.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := authSvc.SweepExpiredSessions(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to sweep expired sessions")
			} else if n > 0 {
				log.Info().Int("count", n).Msg("Removed expired sessions")
			}

			if _, err := authSvc.CleanupOrphanAdmins(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to clean up orphan admins")
			}
		}
	}
}

// buildIdentity creates the identity store for the configured backend.
func buildIdentity(ctx context.Context, log zerolog.Logger, storeType string, flags PostgresStoreFlags) (store.Identity, func(), error) {
	switch storeType {
	case "postgres":
		if flags.ConnString == "" {
			return store.Identity{}, nil, errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
		}

		poolCfg := &postgresstore.PoolConfig{
			ConnString:     flags.ConnString,
			MaxConns:       flags.MaxConns,
			MinConns:       flags.MinConns,
			ConnectTimeout: flags.ConnectTimeout,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return store.Identity{}, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if flags.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return store.Identity{}, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL identity store")
		return postgresstore.NewIdentity(pool), pool.Close, nil

	default:
		log.Info().Msg("Using in-memory identity store")
		return memorystore.NewIdentity(), func() {}, nil
	}
}
