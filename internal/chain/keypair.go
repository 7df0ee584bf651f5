package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair holds an ed25519 signing key used to authorize ledger
// transactions.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewKeypair generates a fresh random keypair.
func NewKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{pub: pub, priv: priv}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return Keypair{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// KeypairFromBase58 decodes a base58-encoded 32-byte seed into a keypair.
func KeypairFromBase58(encoded string) (Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return Keypair{}, fmt.Errorf("decode key seed: %w", err)
	}
	return KeypairFromSeed(raw)
}

// Address returns the base58 address for the public key.
func (k Keypair) Address() Address {
	return Address(base58.Encode(k.pub))
}

// Sign signs the message with the private key.
func (k Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Verify reports whether sig is a valid signature of message by addr.
func Verify(addr Address, message, sig []byte) bool {
	raw, err := base58.Decode(string(addr))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(raw), message, sig)
}
