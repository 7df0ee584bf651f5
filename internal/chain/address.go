package chain

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// Namespace tags for program-derived addresses. Each account family hashes
// under its own tag so the same identity seed yields distinct addresses.
const (
	NamespacePlayer    = "player"
	NamespaceCobxToken = "cobx-token"
	NamespaceConfig    = "config"
)

// ConfigSeed is the fixed seed for the singleton program configuration
// account.
var ConfigSeed = []byte("cobx-config-v1")

const pdaDomain = "cobx-pda-v1"

// SeedFromUserID returns the canonical identity seed for a server-custodial
// user. The raw user id never feeds the derivation directly; it is hashed to
// a fixed length first.
func SeedFromUserID(userID string) []byte {
	sum := sha256.Sum256([]byte(userID))
	return sum[:]
}

// SeedFromWallet returns the identity seed for a user-custodial wallet: the
// raw 32 public key bytes behind the base58 address.
func SeedFromWallet(wallet Address) ([]byte, error) {
	raw, err := base58.Decode(string(wallet))
	if err != nil {
		return nil, fmt.Errorf("decode wallet address: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("wallet address must decode to 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// DeriveProgramAddress computes the deterministic program-owned address for
// a namespace tag and seed. Pure: no network or store access.
func DeriveProgramAddress(program Address, namespace string, seed []byte) Address {
	h := sha256.New()
	h.Write([]byte(pdaDomain))
	h.Write([]byte(program))
	h.Write([]byte(namespace))
	h.Write(seed)
	return Address(base58.Encode(h.Sum(nil)))
}
