package pda

import (
	"crypto/sha256"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// AddressSize is the byte length of every account address.
const AddressSize = 32

// Address identifies an account on the ledger. Owners, programs and derived
// accounts all share the same 32-byte space.
type Address [AddressSize]byte

// SystemProgram is the zero address; it owns every plain value-holding account.
var SystemProgram Address

// String renders the address in its checksummed text form.
func (a Address) String() string {
	return types.Address(a).String()
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressSize)
	copy(out, a[:])
	return out
}

// MarshalText implements encoding.TextMarshaler so addresses render as text in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes the checksummed text form produced by String.
func ParseAddress(s string) (Address, error) {
	decoded, err := types.DecodeAddress(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address(decoded), nil
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// AddressFromName derives a stable address from a human readable name. It is
// used for program identities configured by name rather than by address.
func AddressFromName(name string) Address {
	return Address(sha256.Sum256([]byte(name)))
}
