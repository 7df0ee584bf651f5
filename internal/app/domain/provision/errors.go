package provision

import "errors"

// Errors
var (
	// ErrValidation covers user-correctable input problems.
	ErrValidation = errors.New("invalid provisioning input")
	// ErrAlreadyProvisioned means the profile already carries a player
	// account address.
	ErrAlreadyProvisioned = errors.New("account already provisioned")
	// ErrLedgerAccountExists means the derived address is occupied on the
	// ledger and no recovery applies (web3 path).
	ErrLedgerAccountExists = errors.New("account already exists on ledger")
	// ErrWalletNotLinked means a web3 request arrived for a profile with no
	// linked wallet.
	ErrWalletNotLinked = errors.New("no wallet linked to this account")
	// ErrConfiguration is a server-side misconfiguration, such as a missing
	// mint for the active cluster. Operator action required; never retried.
	ErrConfiguration = errors.New("provisioning configuration error")
	// ErrInsufficientFunding means the server wallet cannot pay for account
	// creation. Fixed operator-facing message, no retry.
	ErrInsufficientFunding = errors.New("server wallet has insufficient funds for account creation; operator action required")
	// ErrInconsistency means the ledger write succeeded but the profile
	// linkage did not. Manual reconciliation required.
	ErrInconsistency = errors.New("ledger state ahead of profile store; manual reconciliation required")
	// ErrNotConfirmed means a client-submitted transaction could not be
	// verified on the ledger yet.
	ErrNotConfirmed = errors.New("player account not found on ledger")
)
