// Package profile holds the off-chain user profile model. A profile row
// exists before provisioning starts; provisioning only fills in the ledger
// linkage fields.
package profile

import (
	"time"

	"github.com/cobx-network/player_layer/internal/chain"
)

// PDAStatus tracks the provisioning state of the player's ledger account.
type PDAStatus string

const (
	StatusNone     PDAStatus = "none"
	StatusPending  PDAStatus = "pending"
	StatusCreating PDAStatus = "creating"
	StatusActive   PDAStatus = "active"
	StatusFailed   PDAStatus = "failed"
)

// Profile is the mutable off-chain record for one user identity.
//
// Invariant: PlayerAccountAddress is set if and only if the corresponding
// ledger account has been confirmed created; the address and StatusActive
// are always written in the same update.
type Profile struct {
	UserID                  string
	WalletAddress           chain.Address
	PlayerAccountAddress    chain.Address
	CobxTokenAccountAddress chain.Address
	PDAStatus               PDAStatus

	// Linkage for the real-time session system.
	SessionIdentity   string
	SessionPrivateKey string

	Experience int64
	Level      int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch is a partial profile update. Nil fields are left untouched; the
// store applies all non-nil fields in a single row update.
type Patch struct {
	WalletAddress           *chain.Address
	PlayerAccountAddress    *chain.Address
	CobxTokenAccountAddress *chain.Address
	PDAStatus               *PDAStatus
	SessionIdentity         *string
	SessionPrivateKey       *string
	Experience              *int64
	Level                   *int
}
