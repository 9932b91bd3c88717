package vault

import (
	"crypto/sha256"
	"fmt"
)

const discriminatorSize = 8

// StateSpace is the allocated size of a control record: discriminator plus
// the two bump bytes.
const StateSpace = discriminatorSize + 2

var stateDiscriminator = sha256First8("account:VaultState")

func sha256First8(s string) [discriminatorSize]byte {
	h := sha256.Sum256([]byte(s))
	var disc [discriminatorSize]byte
	copy(disc[:], h[:discriminatorSize])
	return disc
}

// VaultState is the per-owner control record. It holds the bumps needed to
// re-derive both its own address and the vault address; nothing else.
type VaultState struct {
	VaultBump uint8
	StateBump uint8
}

// MarshalBinary encodes the record in its on-ledger layout.
func (s VaultState) MarshalBinary() ([]byte, error) {
	out := make([]byte, StateSpace)
	copy(out, stateDiscriminator[:])
	out[discriminatorSize] = s.VaultBump
	out[discriminatorSize+1] = s.StateBump
	return out, nil
}

// UnmarshalBinary decodes a record, rejecting data written for another type.
func (s *VaultState) UnmarshalBinary(data []byte) error {
	if len(data) < StateSpace {
		return fmt.Errorf("%w: %d bytes", ErrInvalidAccountData, len(data))
	}
	var got [discriminatorSize]byte
	copy(got[:], data[:discriminatorSize])
	if got != stateDiscriminator {
		return fmt.Errorf("%w: discriminator %x", ErrInvalidAccountData, got)
	}
	s.VaultBump = data[discriminatorSize]
	s.StateBump = data[discriminatorSize+1]
	return nil
}
