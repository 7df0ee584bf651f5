// Package identity resolves inbound credentials to user profiles and owns
// profile registration ahead of provisioning.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/hkdf"

	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/storage"
	"github.com/cobx-network/player_layer/internal/chain"
	"github.com/cobx-network/player_layer/pkg/logger"
)

const sessionKeyInfo = "cobx/session/signing/v1"

// Service resolves credentials and manages profile rows.
type Service struct {
	store    storage.ProfileStore
	verifier Verifier
	log      *logger.Logger
}

// New constructs an identity service.
func New(store storage.ProfileStore, verifier Verifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("identity")
	}
	return &Service{store: store, verifier: verifier, log: log}
}

// VerifyCredential maps a credential to its user id without touching the
// store. Registration uses it before any profile row exists.
func (s *Service) VerifyCredential(credential string) (string, error) {
	return s.verifier.Verify(strings.TrimSpace(credential))
}

// Resolve verifies a credential and loads the profile it identifies.
func (s *Service) Resolve(ctx context.Context, credential string) (profile.Profile, error) {
	userID, err := s.verifier.Verify(strings.TrimSpace(credential))
	if err != nil {
		return profile.Profile{}, err
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load profile %s: %w", userID, err)
	}
	return p, nil
}

// Register creates the profile row for a new user, deriving the session
// keypair for the real-time session system.
func (s *Service) Register(ctx context.Context, userID string) (profile.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return profile.Profile{}, fmt.Errorf("user id is required")
	}

	sessionSeed := make([]byte, 32)
	if _, err := rand.Read(sessionSeed); err != nil {
		return profile.Profile{}, fmt.Errorf("generate session seed: %w", err)
	}
	signingSeed, err := expandSessionSeed(sessionSeed)
	if err != nil {
		return profile.Profile{}, err
	}
	key, err := chain.KeypairFromSeed(signingSeed)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("derive session keypair: %w", err)
	}

	p, err := s.store.CreateProfile(ctx, profile.Profile{
		UserID:            userID,
		PDAStatus:         profile.StatusNone,
		SessionIdentity:   string(key.Address()),
		SessionPrivateKey: base58.Encode(signingSeed),
	})
	if err != nil {
		return profile.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	s.log.WithField("user_id", userID).Info("profile registered")
	return p, nil
}

// LinkWallet attaches a user-custodial wallet address to the profile. A
// wallet belongs to at most one profile.
func (s *Service) LinkWallet(ctx context.Context, userID string, wallet chain.Address) (profile.Profile, error) {
	if _, err := chain.SeedFromWallet(wallet); err != nil {
		return profile.Profile{}, fmt.Errorf("invalid wallet address: %w", err)
	}

	existing, err := s.store.GetProfileByWallet(ctx, wallet)
	switch {
	case err == nil && existing.UserID != userID:
		return profile.Profile{}, fmt.Errorf("wallet already linked to another account: %w", storage.ErrDuplicate)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return profile.Profile{}, fmt.Errorf("check wallet linkage: %w", err)
	}

	p, err := s.store.UpdateProfile(ctx, userID, profile.Patch{WalletAddress: &wallet})
	if err != nil {
		return profile.Profile{}, fmt.Errorf("link wallet: %w", err)
	}

	s.log.WithField("user_id", userID).
		WithField("wallet", wallet).
		Info("wallet linked")
	return p, nil
}

func expandSessionSeed(seed []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(sessionKeyInfo))
	out := make([]byte, 32)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("expand session seed: %w", err)
	}
	return out, nil
}
