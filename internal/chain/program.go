package chain

import "strconv"

// PlayerProgram binds the deployed player program: its on-chain id and the
// cobx mint it operates against.
type PlayerProgram struct {
	ID   Address
	Mint Address
}

// PlayerAddress derives the player account address for an identity seed.
func (p PlayerProgram) PlayerAddress(seed []byte) Address {
	return DeriveProgramAddress(p.ID, NamespacePlayer, seed)
}

// TokenAddress derives the cobx token account address for an identity seed.
func (p PlayerProgram) TokenAddress(seed []byte) Address {
	return DeriveProgramAddress(p.ID, NamespaceCobxToken, seed)
}

// ConfigAddress derives the singleton program configuration address.
func (p PlayerProgram) ConfigAddress() Address {
	return DeriveProgramAddress(p.ID, NamespaceConfig, ConfigSeed)
}

// InitializeConfigInstruction builds the one-time program configuration
// creation instruction.
func (p PlayerProgram) InitializeConfigInstruction(authority Address) Instruction {
	return Instruction{
		Program:  p.ID,
		Method:   "initialize_config",
		Accounts: []Address{p.ConfigAddress(), p.Mint, authority},
	}
}

// CreatePlayerInstruction builds the atomic player plus token account
// creation instruction. authority is the required server co-signer; owner is
// the identity the player account is provisioned for.
func (p PlayerProgram) CreatePlayerInstruction(player, token, owner, authority Address, name string, class int) Instruction {
	args := map[string]string{
		"class": strconv.Itoa(class),
	}
	if name != "" {
		args["name"] = name
	}
	return Instruction{
		Program:  p.ID,
		Method:   "create_player",
		Accounts: []Address{player, token, p.ConfigAddress(), p.Mint, owner, authority},
		Args:     args,
	}
}

// CreateTokenAccountInstruction builds the token-account-only creation
// instruction used to repair a player account missing its token account.
func (p PlayerProgram) CreateTokenAccountInstruction(player, token, authority Address) Instruction {
	return Instruction{
		Program:  p.ID,
		Method:   "create_token_account",
		Accounts: []Address{player, token, p.ConfigAddress(), p.Mint, authority},
	}
}
