// Package provisioning implements the account-provisioning protocol: it
// derives program addresses for an identity, creates the player and cobx
// token accounts on the ledger, and keeps the off-chain profile linkage
// consistent, including recovery from partially-completed prior attempts.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/metrics"
	"github.com/cobx-network/player_layer/internal/app/storage"
	"github.com/cobx-network/player_layer/internal/chain"
	"github.com/cobx-network/player_layer/pkg/logger"
)

// Ledger abstracts the chain client operations the service needs.
type Ledger interface {
	AccountExists(ctx context.Context, addr chain.Address) (bool, error)
	LatestBlockhash(ctx context.Context) (chain.Blockhash, error)
	SubmitAndConfirm(ctx context.Context, tx *chain.Transaction) (string, error)
}

// Service is the provisioning orchestrator.
type Service struct {
	profiles  storage.ProfileStore
	intents   storage.IntentStore
	ledger    Ledger
	program   chain.PlayerProgram
	serverKey chain.Keypair
	cluster   string
	log       *logger.Logger
}

// Config wires a provisioning service. All fields except Logger are
// required.
type Config struct {
	Profiles  storage.ProfileStore
	Intents   storage.IntentStore
	Ledger    Ledger
	Program   chain.PlayerProgram
	ServerKey chain.Keypair
	Cluster   string
	Logger    *logger.Logger
}

// New constructs a provisioning service.
func New(cfg Config) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("provisioning")
	}
	return &Service{
		profiles:  cfg.Profiles,
		intents:   cfg.Intents,
		ledger:    cfg.Ledger,
		program:   cfg.Program,
		serverKey: cfg.ServerKey,
		cluster:   cfg.Cluster,
		log:       log,
	}
}

// Request carries the user-supplied provisioning input.
type Request struct {
	Name  string
	Class *int
}

// Provision creates the player and token accounts for the profile's
// identity and links them to the profile. A collision on the derived
// address routes web2 requests through Recover; this is also how the loser
// of two concurrent requests for the same identity converges.
func (s *Service) Provision(ctx context.Context, p profile.Profile, req Request, mode provision.Mode) (provision.Result, error) {
	if p.PlayerAccountAddress != "" {
		return provision.Result{}, provision.ErrAlreadyProvisioned
	}
	if err := validateRequest(req, mode); err != nil {
		return provision.Result{}, err
	}

	seed, err := s.identitySeed(p, mode)
	if err != nil {
		return provision.Result{}, err
	}
	if err := s.requireMint(); err != nil {
		return provision.Result{}, err
	}

	playerAddr := s.program.PlayerAddress(seed)
	tokenAddr := s.program.TokenAddress(seed)

	intent, err := s.openIntent(ctx, p.UserID, playerAddr, tokenAddr)
	if err != nil {
		return provision.Result{}, err
	}

	owner := s.serverKey.Address()
	if mode == provision.ModeWeb3 {
		owner = p.WalletAddress
	}

	blockhash, err := s.ledger.LatestBlockhash(ctx)
	if err != nil {
		return provision.Result{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	class := 0
	if req.Class != nil {
		class = *req.Class
	}
	tx := chain.NewTransaction(s.serverKey.Address(), blockhash,
		s.program.CreatePlayerInstruction(playerAddr, tokenAddr, owner, s.serverKey.Address(), req.Name, class))
	if err := tx.Sign(s.serverKey); err != nil {
		return provision.Result{}, fmt.Errorf("sign transaction: %w", err)
	}

	intent.State = provision.IntentSubmitted
	if intent, err = s.intents.UpdateIntent(ctx, intent); err != nil {
		return provision.Result{}, fmt.Errorf("record submission: %w", err)
	}

	txRef, err := s.ledger.SubmitAndConfirm(ctx, tx)
	metrics.RecordLedgerSubmission(err == nil)
	if err != nil {
		return s.classifySubmitFailure(ctx, p, intent, mode, err)
	}

	intent.State = provision.IntentConfirmed
	intent.TxRef = txRef
	if intent, err = s.intents.UpdateIntent(ctx, intent); err != nil {
		s.log.WithError(err).WithField("user_id", p.UserID).Warn("intent update failed after confirmation")
	}

	if err := s.linkProfile(ctx, p.UserID, playerAddr, tokenAddr); err != nil {
		intent.Detail = err.Error()
		if _, uerr := s.intents.UpdateIntent(ctx, intent); uerr != nil {
			s.log.WithError(uerr).Warn("intent detail update failed")
		}
		return provision.Result{}, fmt.Errorf("%w: %v", provision.ErrInconsistency, err)
	}

	intent.State = provision.IntentLinked
	if _, err := s.intents.UpdateIntent(ctx, intent); err != nil {
		s.log.WithError(err).WithField("user_id", p.UserID).Warn("intent update failed after linkage")
	}

	s.log.WithField("user_id", p.UserID).
		WithField("player_address", playerAddr).
		WithField("tx_ref", txRef).
		WithField("mode", mode).
		Info("player account provisioned")

	return provision.Result{PlayerAddress: playerAddr, TokenAddress: tokenAddr, TxRef: txRef}, nil
}

// Intents returns the user's provisioning intent log, oldest first.
func (s *Service) Intents(ctx context.Context, userID string) ([]provision.Intent, error) {
	intents, err := s.intents.ListIntents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	sort.Slice(intents, func(i, j int) bool {
		return intents[i].CreatedAt.Before(intents[j].CreatedAt)
	})
	return intents, nil
}

func (s *Service) classifySubmitFailure(ctx context.Context, p profile.Profile, intent provision.Intent, mode provision.Mode, err error) (provision.Result, error) {
	var fault *chain.Fault
	if !errors.As(err, &fault) {
		s.failIntent(ctx, intent, err.Error())
		return provision.Result{}, fmt.Errorf("ledger submission failed: %w", err)
	}

	switch fault.Kind {
	case chain.FaultFunding:
		s.failIntent(ctx, intent, fault.Message)
		return provision.Result{}, provision.ErrInsufficientFunding
	case chain.FaultCollision:
		if mode == provision.ModeWeb3 {
			s.failIntent(ctx, intent, fault.Message)
			return provision.Result{}, provision.ErrLedgerAccountExists
		}
		s.log.WithField("user_id", p.UserID).
			WithField("player_address", intent.PlayerAddress).
			Info("address collision, reconciling prior attempt")
		return s.Recover(ctx, p)
	default:
		s.failIntent(ctx, intent, fault.Message)
		return provision.Result{}, fmt.Errorf("ledger submission failed: %w", fault)
	}
}

func (s *Service) failIntent(ctx context.Context, intent provision.Intent, detail string) {
	intent.State = provision.IntentFailed
	intent.Detail = detail
	if _, err := s.intents.UpdateIntent(ctx, intent); err != nil {
		s.log.WithError(err).Warn("intent failure update failed")
	}
}

// openIntent records the provisioning attempt, converging on the existing
// record when another request for the same identity already created one.
func (s *Service) openIntent(ctx context.Context, userID string, player, token chain.Address) (provision.Intent, error) {
	intent, err := s.intents.CreateIntent(ctx, provision.Intent{
		UserID:        userID,
		PlayerAddress: player,
		TokenAddress:  token,
		State:         provision.IntentRequested,
	})
	if err == nil {
		return intent, nil
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		return provision.Intent{}, fmt.Errorf("record intent: %w", err)
	}

	existing, err := s.intents.GetIntent(ctx, userID, player)
	if err != nil {
		return provision.Intent{}, fmt.Errorf("load intent: %w", err)
	}
	return existing, nil
}

// linkProfile writes the ledger linkage in a single atomic profile update:
// the address fields and the active status always land together.
func (s *Service) linkProfile(ctx context.Context, userID string, player, token chain.Address) error {
	active := profile.StatusActive
	_, err := s.profiles.UpdateProfile(ctx, userID, profile.Patch{
		PlayerAccountAddress:    &player,
		CobxTokenAccountAddress: &token,
		PDAStatus:               &active,
	})
	if err != nil {
		return fmt.Errorf("profile update failed: %w", err)
	}
	return nil
}

func (s *Service) identitySeed(p profile.Profile, mode provision.Mode) ([]byte, error) {
	switch mode {
	case provision.ModeWeb3:
		if p.WalletAddress == "" {
			return nil, provision.ErrWalletNotLinked
		}
		seed, err := chain.SeedFromWallet(p.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", provision.ErrValidation, err)
		}
		return seed, nil
	default:
		return chain.SeedFromUserID(p.UserID), nil
	}
}

func (s *Service) requireMint() error {
	if s.program.Mint == "" {
		return fmt.Errorf("%w: no cobx mint configured for cluster %q", provision.ErrConfiguration, s.cluster)
	}
	return nil
}

func validateRequest(req Request, mode provision.Mode) error {
	name := strings.TrimSpace(req.Name)
	if mode == provision.ModeWeb3 && name == "" {
		return fmt.Errorf("%w: name is required", provision.ErrValidation)
	}
	if name != "" && len(name) < provision.MinNameLength {
		return fmt.Errorf("%w: name must be at least %d characters", provision.ErrValidation, provision.MinNameLength)
	}

	maxClass := provision.MaxClassWeb2
	if mode == provision.ModeWeb3 {
		maxClass = provision.MaxClassWeb3
		if req.Class == nil {
			return fmt.Errorf("%w: character class is required", provision.ErrValidation)
		}
	}
	if req.Class != nil && (*req.Class < provision.MinClass || *req.Class > maxClass) {
		return fmt.Errorf("%w: character class must be between %d and %d", provision.ErrValidation, provision.MinClass, maxClass)
	}
	return nil
}
