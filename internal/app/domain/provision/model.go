// Package provision holds the account-provisioning domain model: execution
// modes, the provisioning intent log, and operation results.
package provision

import (
	"time"

	"github.com/cobx-network/player_layer/internal/chain"
)

// Mode selects the identity model a provisioning request runs under.
type Mode string

const (
	// ModeWeb2 provisions for a server-custodial identity; the server signs
	// and pays for the creation transaction.
	ModeWeb2 Mode = "web2"
	// ModeWeb3 provisions for a user-custodial wallet.
	ModeWeb3 Mode = "web3"
)

// Character class ranges per mode. Web2 additionally accepts the reserved
// class 3, which is not offered to user-custodial wallets.
const (
	MinClass     = 0
	MaxClassWeb2 = 3
	MaxClassWeb3 = 2

	MinNameLength = 3
)

// IntentState tracks a provisioning attempt through its lifecycle so that
// duplicate requests and partial failures converge on one record.
type IntentState string

const (
	IntentRequested IntentState = "requested"
	IntentSubmitted IntentState = "submitted"
	IntentConfirmed IntentState = "confirmed"
	IntentLinked    IntentState = "linked"
	IntentFailed    IntentState = "failed"
)

// Intent is one row of the provisioning intent log, keyed by user and
// derived player address.
type Intent struct {
	ID            string
	UserID        string
	PlayerAddress chain.Address
	TokenAddress  chain.Address
	State         IntentState
	TxRef         string
	Detail        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Result is a successful provisioning outcome.
type Result struct {
	PlayerAddress chain.Address `json:"player_address"`
	TokenAddress  chain.Address `json:"token_address"`
	TxRef         string        `json:"tx_ref,omitempty"`
	// Recovered is true when the account was reconciled from a prior
	// partially-completed attempt rather than freshly created.
	Recovered bool `json:"recovered,omitempty"`
}

// Prepared is a partially-signed transaction handed back for out-of-band
// signing.
type Prepared struct {
	Transaction   string        `json:"transaction"`
	PlayerAddress chain.Address `json:"player_address"`
	TokenAddress  chain.Address `json:"token_address"`
}

// ConfigStatus reports the singleton program configuration account.
type ConfigStatus struct {
	Address       chain.Address `json:"address"`
	AlreadyExists bool          `json:"already_exists"`
	TxRef         string        `json:"tx_ref,omitempty"`
}
