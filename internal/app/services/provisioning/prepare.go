package provisioning

import (
	"context"
	"fmt"

	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/chain"
)

// Prepare builds the creation transaction for a user-custodial wallet
// without submitting it: the wallet pays the fee, the server partial-signs
// as the required co-signer, and the caller completes signing and submits
// out of band. No profile state changes here; linkage happens in Complete
// once the caller reports the submission.
func (s *Service) Prepare(ctx context.Context, wallet chain.Address, req Request) (provision.Prepared, error) {
	if err := validateRequest(req, provision.ModeWeb3); err != nil {
		return provision.Prepared{}, err
	}
	seed, err := chain.SeedFromWallet(wallet)
	if err != nil {
		return provision.Prepared{}, fmt.Errorf("%w: %v", provision.ErrValidation, err)
	}
	if err := s.requireMint(); err != nil {
		return provision.Prepared{}, err
	}

	playerAddr := s.program.PlayerAddress(seed)
	tokenAddr := s.program.TokenAddress(seed)

	blockhash, err := s.ledger.LatestBlockhash(ctx)
	if err != nil {
		return provision.Prepared{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx := chain.NewTransaction(wallet, blockhash,
		s.program.CreatePlayerInstruction(playerAddr, tokenAddr, wallet, s.serverKey.Address(), req.Name, *req.Class))
	if err := tx.Sign(s.serverKey); err != nil {
		return provision.Prepared{}, fmt.Errorf("sign transaction: %w", err)
	}

	encoded, err := tx.Serialize()
	if err != nil {
		return provision.Prepared{}, err
	}

	s.log.WithField("wallet", wallet).
		WithField("player_address", playerAddr).
		Info("creation transaction prepared for client signing")

	return provision.Prepared{Transaction: encoded, PlayerAddress: playerAddr, TokenAddress: tokenAddr}, nil
}

// Complete verifies that a client-submitted creation transaction landed on
// the ledger and writes the profile linkage for it.
func (s *Service) Complete(ctx context.Context, p profile.Profile, txRef string) (provision.Result, error) {
	if p.PlayerAccountAddress != "" {
		return provision.Result{}, provision.ErrAlreadyProvisioned
	}
	if p.WalletAddress == "" {
		return provision.Result{}, provision.ErrWalletNotLinked
	}

	seed, err := chain.SeedFromWallet(p.WalletAddress)
	if err != nil {
		return provision.Result{}, fmt.Errorf("%w: %v", provision.ErrValidation, err)
	}

	playerAddr := s.program.PlayerAddress(seed)
	tokenAddr := s.program.TokenAddress(seed)

	exists, err := s.ledger.AccountExists(ctx, playerAddr)
	if err != nil {
		return provision.Result{}, fmt.Errorf("check player account: %w", err)
	}
	if !exists {
		return provision.Result{}, provision.ErrNotConfirmed
	}

	intent, err := s.openIntent(ctx, p.UserID, playerAddr, tokenAddr)
	if err != nil {
		return provision.Result{}, err
	}
	intent.State = provision.IntentConfirmed
	intent.TxRef = txRef
	if intent, err = s.intents.UpdateIntent(ctx, intent); err != nil {
		s.log.WithError(err).WithField("user_id", p.UserID).Warn("intent update failed during completion")
	}

	if err := s.linkProfile(ctx, p.UserID, playerAddr, tokenAddr); err != nil {
		return provision.Result{}, fmt.Errorf("%w: %v", provision.ErrInconsistency, err)
	}

	intent.State = provision.IntentLinked
	if _, err := s.intents.UpdateIntent(ctx, intent); err != nil {
		s.log.WithError(err).WithField("user_id", p.UserID).Warn("intent update failed after completion linkage")
	}

	s.log.WithField("user_id", p.UserID).
		WithField("player_address", playerAddr).
		WithField("tx_ref", txRef).
		Info("client-submitted account linked")

	return provision.Result{PlayerAddress: playerAddr, TokenAddress: tokenAddr, TxRef: txRef}, nil
}
