package vault

import (
	"fmt"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

var (
	stateLabel = []byte("state")
	vaultLabel = []byte("vault")
)

// Deriver computes vault addresses for one program identity. The identity is
// injected so tests can run several programs side by side.
type Deriver struct {
	program pda.Address
}

// NewDeriver binds derivations to a program identity.
func NewDeriver(program pda.Address) Deriver {
	return Deriver{program: program}
}

// Program returns the identity every derivation is bound to.
func (d Deriver) Program() pda.Address { return d.program }

// StateAddress finds the control record address for an owner.
func (d Deriver) StateAddress(owner pda.Address) (pda.Address, uint8, error) {
	return pda.FindProgramAddress(d.program, stateLabel, owner[:])
}

// VaultAddress finds the vault address for a control record.
func (d Deriver) VaultAddress(state pda.Address) (pda.Address, uint8, error) {
	return pda.FindProgramAddress(d.program, vaultLabel, state[:])
}

// StateSeeds returns the full seed list, bump included, for a control record.
func (d Deriver) StateSeeds(owner pda.Address, bump uint8) [][]byte {
	return [][]byte{stateLabel, owner.Bytes(), {bump}}
}

// VaultSeeds returns the full seed list, bump included, for a vault.
func (d Deriver) VaultSeeds(state pda.Address, bump uint8) [][]byte {
	return [][]byte{vaultLabel, state.Bytes(), {bump}}
}

// verify recomputes an address from stored seeds and compares it with the
// account that was supplied.
func (d Deriver) verify(what string, supplied pda.Address, seeds [][]byte) error {
	derived, err := pda.CreateProgramAddress(d.program, seeds...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDerivationMismatch, what, err)
	}
	if derived != supplied {
		return fmt.Errorf("%w: %s %s, expected %s", ErrDerivationMismatch, what, supplied, derived)
	}
	return nil
}

// Resolve fills any zero address in accounts with its canonical derivation.
// Supplied addresses are left untouched; the program verifies them.
func (d Deriver) Resolve(accounts Accounts) (Accounts, error) {
	if accounts.Owner.IsZero() {
		return Accounts{}, fmt.Errorf("%w: owner is required", ErrUnauthorized)
	}
	if accounts.VaultState.IsZero() {
		state, _, err := d.StateAddress(accounts.Owner)
		if err != nil {
			return Accounts{}, fmt.Errorf("derive state: %w", err)
		}
		accounts.VaultState = state
	}
	if accounts.Vault.IsZero() {
		vault, _, err := d.VaultAddress(accounts.VaultState)
		if err != nil {
			return Accounts{}, fmt.Errorf("derive vault: %w", err)
		}
		accounts.Vault = vault
	}
	return accounts, nil
}
