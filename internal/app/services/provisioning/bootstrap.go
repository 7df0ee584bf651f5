package provisioning

import (
	"context"
	"fmt"

	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/metrics"
	"github.com/cobx-network/player_layer/internal/chain"
)

// EnsureConfig creates the singleton program configuration account if it
// does not exist yet. Check-then-act: a concurrent duplicate bootstrap can
// race past the existence check, which is tolerated because this is an
// administrator-invoked one-time operation.
func (s *Service) EnsureConfig(ctx context.Context) (provision.ConfigStatus, error) {
	if err := s.requireMint(); err != nil {
		return provision.ConfigStatus{}, err
	}

	addr := s.program.ConfigAddress()
	exists, err := s.ledger.AccountExists(ctx, addr)
	if err != nil {
		return provision.ConfigStatus{}, fmt.Errorf("check config account: %w", err)
	}
	if exists {
		return provision.ConfigStatus{Address: addr, AlreadyExists: true}, nil
	}

	blockhash, err := s.ledger.LatestBlockhash(ctx)
	if err != nil {
		return provision.ConfigStatus{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx := chain.NewTransaction(s.serverKey.Address(), blockhash,
		s.program.InitializeConfigInstruction(s.serverKey.Address()))
	if err := tx.Sign(s.serverKey); err != nil {
		return provision.ConfigStatus{}, fmt.Errorf("sign transaction: %w", err)
	}

	txRef, err := s.ledger.SubmitAndConfirm(ctx, tx)
	metrics.RecordLedgerSubmission(err == nil)
	if err != nil {
		return provision.ConfigStatus{}, fmt.Errorf("create config account: %w", err)
	}

	s.log.WithField("config_address", addr).
		WithField("tx_ref", txRef).
		Info("program configuration created")

	return provision.ConfigStatus{Address: addr, AlreadyExists: false, TxRef: txRef}, nil
}

// ConfigStatus reports whether the program configuration account exists,
// without creating it.
func (s *Service) ConfigStatus(ctx context.Context) (provision.ConfigStatus, error) {
	addr := s.program.ConfigAddress()
	exists, err := s.ledger.AccountExists(ctx, addr)
	if err != nil {
		return provision.ConfigStatus{}, fmt.Errorf("check config account: %w", err)
	}
	return provision.ConfigStatus{Address: addr, AlreadyExists: exists}, nil
}
