package chain

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestDeriveProgramAddressDeterministic(t *testing.T) {
	program := Address("4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM")
	seed := SeedFromUserID("user-123")

	a := DeriveProgramAddress(program, NamespacePlayer, seed)
	b := DeriveProgramAddress(program, NamespacePlayer, seed)
	if a != b {
		t.Fatalf("derivation not deterministic: %s vs %s", a, b)
	}

	other := DeriveProgramAddress(program, NamespacePlayer, SeedFromUserID("user-124"))
	if a == other {
		t.Fatalf("distinct seeds produced the same address")
	}

	token := DeriveProgramAddress(program, NamespaceCobxToken, seed)
	if a == token {
		t.Fatalf("distinct namespaces produced the same address")
	}
}

func TestSeedFromWallet(t *testing.T) {
	key, err := NewKeypair()
	if err != nil {
		t.Fatalf("new keypair: %v", err)
	}

	seed, err := SeedFromWallet(key.Address())
	if err != nil {
		t.Fatalf("seed from wallet: %v", err)
	}
	if len(seed) != 32 {
		t.Fatalf("expected 32 byte seed, got %d", len(seed))
	}

	if _, err := SeedFromWallet(Address(base58.Encode([]byte("short")))); err == nil {
		t.Fatalf("expected error for non 32-byte wallet address")
	}
	if _, err := SeedFromWallet("not-base58-0OIl"); err == nil {
		t.Fatalf("expected error for invalid base58")
	}
}

func TestSeedFromUserIDFixedLength(t *testing.T) {
	short := SeedFromUserID("a")
	long := SeedFromUserID("a-very-long-user-identifier-that-exceeds-thirty-two-bytes")
	if len(short) != 32 || len(long) != 32 {
		t.Fatalf("identity seeds must be fixed length, got %d and %d", len(short), len(long))
	}
}
