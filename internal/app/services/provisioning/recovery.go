package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/metrics"
	"github.com/cobx-network/player_layer/internal/chain"
)

// Recover reconciles a web2 identity whose player account already exists on
// the ledger from a prior attempt that never finished: it verifies the token
// account (creating it server-signed when missing) and repairs the profile
// linkage. The token-account leg is idempotent; the profile is written
// exactly once.
func (s *Service) Recover(ctx context.Context, p profile.Profile) (provision.Result, error) {
	seed := chain.SeedFromUserID(p.UserID)
	playerAddr := s.program.PlayerAddress(seed)
	tokenAddr := s.program.TokenAddress(seed)

	intent, err := s.openIntent(ctx, p.UserID, playerAddr, tokenAddr)
	if err != nil {
		return provision.Result{}, err
	}

	exists, err := s.ledger.AccountExists(ctx, tokenAddr)
	if err != nil {
		return provision.Result{}, fmt.Errorf("check token account: %w", err)
	}

	var txRef string
	if !exists {
		blockhash, err := s.ledger.LatestBlockhash(ctx)
		if err != nil {
			return provision.Result{}, fmt.Errorf("fetch blockhash: %w", err)
		}

		tx := chain.NewTransaction(s.serverKey.Address(), blockhash,
			s.program.CreateTokenAccountInstruction(playerAddr, tokenAddr, s.serverKey.Address()))
		if err := tx.Sign(s.serverKey); err != nil {
			return provision.Result{}, fmt.Errorf("sign transaction: %w", err)
		}

		txRef, err = s.ledger.SubmitAndConfirm(ctx, tx)
		metrics.RecordLedgerSubmission(err == nil)
		if err != nil {
			// A collision here means another reconciler created the token
			// account first; that is the outcome we wanted.
			var fault *chain.Fault
			if !errors.As(err, &fault) || fault.Kind != chain.FaultCollision {
				s.failIntent(ctx, intent, err.Error())
				return provision.Result{}, fmt.Errorf("create token account: %w", err)
			}
			txRef = ""
		}
	}

	intent.State = provision.IntentConfirmed
	intent.TxRef = txRef
	if intent, err = s.intents.UpdateIntent(ctx, intent); err != nil {
		s.log.WithError(err).WithField("user_id", p.UserID).Warn("intent update failed during recovery")
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
		s.log.WithError(err).WithField("user_id", p.UserID).Warn("intent update failed after recovery linkage")
	}

	s.log.WithField("user_id", p.UserID).
		WithField("player_address", playerAddr).
		Info("player account reconciled")

	return provision.Result{PlayerAddress: playerAddr, TokenAddress: tokenAddr, TxRef: txRef, Recovered: true}, nil
}
