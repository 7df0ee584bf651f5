package provisioning

import (
	"context"
	"fmt"
	"sync"

	"github.com/cobx-network/player_layer/internal/chain"
)

// fakeLedger emulates the ledger's create-once semantics: a second creation
// for an occupied address is rejected with a collision fault, atomically
// across the accounts of one instruction.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[chain.Address]bool
	submits  int

	failNext *chain.Fault
	errNext  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[chain.Address]bool)}
}

func (l *fakeLedger) createAccount(addr chain.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[addr] = true
}

func (l *fakeLedger) AccountExists(_ context.Context, addr chain.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[addr], nil
}

func (l *fakeLedger) LatestBlockhash(_ context.Context) (chain.Blockhash, error) {
	return chain.Blockhash{Hash: "fake-blockhash", Height: 1}, nil
}

func (l *fakeLedger) SubmitAndConfirm(_ context.Context, tx *chain.Transaction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.errNext != nil {
		err := l.errNext
		l.errNext = nil
		return "", err
	}
	if l.failNext != nil {
		fault := l.failNext
		l.failNext = nil
		return "", fault
	}

	for _, instr := range tx.Instructions {
		var created []chain.Address
		switch instr.Method {
		case "create_player":
			created = instr.Accounts[:2] // player, token
		case "create_token_account":
			created = instr.Accounts[1:2] // token
		case "initialize_config":
			created = instr.Accounts[:1] // config
		default:
			return "", fmt.Errorf("unknown instruction %s", instr.Method)
		}

		for _, addr := range created {
			if l.accounts[addr] {
				return "", &chain.Fault{Kind: chain.FaultCollision, Message: "account " + string(addr) + " already in use"}
			}
		}
		for _, addr := range created {
			l.accounts[addr] = true
		}
	}

	l.submits++
	return fmt.Sprintf("tx-%d", l.submits), nil
}
