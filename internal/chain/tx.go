package chain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
)

// Instruction is a single program call inside a transaction.
type Instruction struct {
	Program  Address           `json:"program"`
	Method   string            `json:"method"`
	Accounts []Address         `json:"accounts"`
	Args     map[string]string `json:"args,omitempty"`
}

// Transaction is a set of instructions anchored to a recent blockhash.
// Signatures are collected per signer address; serialization does not
// require the set to be complete, so a partially-signed transaction can be
// handed to another party to finish signing.
type Transaction struct {
	FeePayer     Address            `json:"fee_payer"`
	Blockhash    string             `json:"blockhash"`
	Instructions []Instruction      `json:"instructions"`
	Signatures   map[Address]string `json:"signatures,omitempty"`
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(feePayer Address, blockhash Blockhash, instructions ...Instruction) *Transaction {
	return &Transaction{
		FeePayer:     feePayer,
		Blockhash:    blockhash.Hash,
		Instructions: instructions,
		Signatures:   make(map[Address]string),
	}
}

// Message returns the canonical signing payload: everything except the
// signature set, with deterministic field ordering.
func (t *Transaction) Message() ([]byte, error) {
	msg := struct {
		FeePayer     Address       `json:"fee_payer"`
		Blockhash    string        `json:"blockhash"`
		Instructions []Instruction `json:"instructions"`
	}{t.FeePayer, t.Blockhash, t.Instructions}

	out, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode transaction message: %w", err)
	}
	return out, nil
}

// Sign adds the keypair's signature over the transaction message.
func (t *Transaction) Sign(key Keypair) error {
	msg, err := t.Message()
	if err != nil {
		return err
	}
	if t.Signatures == nil {
		t.Signatures = make(map[Address]string)
	}
	t.Signatures[key.Address()] = base58.Encode(key.Sign(msg))
	return nil
}

// SignedBy reports whether the transaction carries a valid signature from
// addr.
func (t *Transaction) SignedBy(addr Address) bool {
	encoded, ok := t.Signatures[addr]
	if !ok {
		return false
	}
	sig, err := base58.Decode(encoded)
	if err != nil {
		return false
	}
	msg, err := t.Message()
	if err != nil {
		return false
	}
	return Verify(addr, msg, sig)
}

// Signers lists the signature holders in stable order.
func (t *Transaction) Signers() []Address {
	out := make([]Address, 0, len(t.Signatures))
	for addr := range t.Signatures {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Serialize encodes the transaction, including whatever signatures it has,
// as base64 for transport.
func (t *Transaction) Serialize() (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DeserializeTransaction decodes a transaction produced by Serialize.
func DeserializeTransaction(encoded string) (*Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}
