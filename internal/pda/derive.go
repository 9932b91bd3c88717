package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds bounds the number of seeds, bump included, in one derivation.
	MaxSeeds = 16
	// MaxSeedLen bounds the length of a single seed.
	MaxSeedLen = 32
)

var derivationMarker = []byte("ProgramDerivedAddress")

var (
	// ErrNoViableBump is returned when every bump in 255..0 lands on the curve.
	ErrNoViableBump = errors.New("unable to find a viable program address bump")
	// ErrOnCurve is returned when a seed/bump combination yields a point that
	// could have a private key and therefore cannot be program controlled.
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")
	// ErrMaxSeedLength is returned for oversized seeds or too many seeds.
	ErrMaxSeedLength = errors.New("seed limit exceeded")
)

// CreateProgramAddress hashes the seeds together with the program identity. The
// final seed is normally the one-byte bump returned by FindProgramAddress.
func CreateProgramAddress(program Address, seeds ...[]byte) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, fmt.Errorf("%w: %d seeds", ErrMaxSeedLength, len(seeds))
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Address{}, fmt.Errorf("%w: seed of %d bytes", ErrMaxSeedLength, len(seed))
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write(derivationMarker)

	var addr Address
	copy(addr[:], h.Sum(nil))
	if isOnCurve(addr[:]) {
		return Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 downwards and returns the first
// off-curve address together with the bump that produced it.
func FindProgramAddress(program Address, seeds ...[]byte) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(program, withBump...)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// isOnCurve returns true if the 32-byte value decodes to a valid edwards25519
// point, i.e. it could be an ed25519 public key.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
