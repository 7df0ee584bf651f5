// Package runtime wires configuration, stores, the ledger client and the
// HTTP server into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/cobx-network/player_layer/internal/app"
	"github.com/cobx-network/player_layer/internal/app/httpapi"
	"github.com/cobx-network/player_layer/internal/app/services/identity"
	"github.com/cobx-network/player_layer/internal/app/storage/postgres"
	"github.com/cobx-network/player_layer/internal/chain"
	"github.com/cobx-network/player_layer/internal/config"
	"github.com/cobx-network/player_layer/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *http.Server
	db         *sql.DB
}

// NewApplication constructs a new application instance with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if cfg.Ledger.ProgramID == "" {
		return nil, fmt.Errorf("PLAYER_PROGRAM_ID is required")
	}
	serverKey, err := chain.KeypairFromBase58(cfg.Ledger.ServerKeySeed)
	if err != nil {
		return nil, fmt.Errorf("SERVER_KEY_SEED: %w", err)
	}

	ledger, err := chain.NewClient(chain.ClientConfig{
		RPCURL:  cfg.Ledger.RPCURL,
		Timeout: 15 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("configure ledger client: %w", err)
	}

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	mint, _ := cfg.Ledger.Mint(cfg.Ledger.Cluster)
	if mint == "" {
		log.Warnf("no cobx mint configured for cluster %q; provisioning will refuse requests", cfg.Ledger.Cluster)
	}

	application := app.New(app.Config{
		Stores:    stores,
		Ledger:    ledger,
		Program:   chain.PlayerProgram{ID: chain.Address(cfg.Ledger.ProgramID), Mint: chain.Address(mint)},
		ServerKey: serverKey,
		Cluster:   cfg.Ledger.Cluster,
		Verifier:  identity.NewJWTVerifier(cfg.Auth.JWTSecret),
		Logger:    log,
	})

	if db != nil {
		application.Health.Register("database", func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	}
	application.Health.Register("ledger", func(ctx context.Context) error {
		_, err := ledger.LatestBlockhash(ctx)
		return err
	})

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      httpapi.NewHandler(application, cfg.Auth.AdminToken, log.WithField("component", "httpapi")),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		httpServer: httpSrv,
		db:         db,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the HTTP server and closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}

	return nil
}

// buildStores opens the configured database, or falls back to the in-memory
// stores when no DSN is set.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DB_DSN not set; using in-memory stores")
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := postgres.Apply(migrateCtx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{Profiles: store, Intents: store}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
