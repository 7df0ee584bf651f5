// Package app wires the domain services over a shared set of stores.
package app

import (
	"github.com/cobx-network/player_layer/internal/app/services/health"
	"github.com/cobx-network/player_layer/internal/app/services/identity"
	"github.com/cobx-network/player_layer/internal/app/services/progression"
	"github.com/cobx-network/player_layer/internal/app/services/provisioning"
	"github.com/cobx-network/player_layer/internal/app/storage"
	"github.com/cobx-network/player_layer/internal/app/storage/memory"
	"github.com/cobx-network/player_layer/internal/chain"
	"github.com/cobx-network/player_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Profiles storage.ProfileStore
	Intents  storage.IntentStore
}

// Config carries the external dependencies the application needs.
type Config struct {
	Stores    Stores
	Ledger    provisioning.Ledger
	Program   chain.PlayerProgram
	ServerKey chain.Keypair
	Cluster   string
	Verifier  identity.Verifier
	Logger    *logger.Logger
}

// Application ties domain services together.
type Application struct {
	log *logger.Logger

	Identity     *identity.Service
	Provisioning *provisioning.Service
	Progression  *progression.Service
	Health       *health.Service
}

// New builds a fully initialised application with the provided dependencies.
func New(cfg Config) *Application {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("app")
	}

	if cfg.Stores.Profiles == nil || cfg.Stores.Intents == nil {
		mem := memory.New()
		if cfg.Stores.Profiles == nil {
			cfg.Stores.Profiles = mem
		}
		if cfg.Stores.Intents == nil {
			cfg.Stores.Intents = mem
		}
	}

	identitySvc := identity.New(cfg.Stores.Profiles, cfg.Verifier, log.WithField("service", "identity"))
	provisioningSvc := provisioning.New(provisioning.Config{
		Profiles:  cfg.Stores.Profiles,
		Intents:   cfg.Stores.Intents,
		Ledger:    cfg.Ledger,
		Program:   cfg.Program,
		ServerKey: cfg.ServerKey,
		Cluster:   cfg.Cluster,
		Logger:    log.WithField("service", "provisioning"),
	})
	progressionSvc := progression.New(cfg.Stores.Profiles, log.WithField("service", "progression"))

	return &Application{
		log:          log,
		Identity:     identitySvc,
		Provisioning: provisioningSvc,
		Progression:  progressionSvc,
		Health:       health.NewService(),
	}
}
