package pda

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"
)

func TestFindProgramAddressIsStable(t *testing.T) {
	program := AddressFromName("vault-program")
	owner := AddressFromName("alice")

	first, bump, err := FindProgramAddress(program, []byte("state"), owner[:])
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	again, bumpAgain, err := FindProgramAddress(program, []byte("state"), owner[:])
	if err != nil {
		t.Fatalf("find again: %v", err)
	}
	if first != again || bump != bumpAgain {
		t.Fatalf("derivation not deterministic: %s/%d vs %s/%d", first, bump, again, bumpAgain)
	}

	recreated, err := CreateProgramAddress(program, []byte("state"), owner[:], []byte{bump})
	if err != nil {
		t.Fatalf("create with bump: %v", err)
	}
	if recreated != first {
		t.Fatalf("expected %s, got %s", first, recreated)
	}
	if isOnCurve(first[:]) {
		t.Fatalf("derived address must be off curve")
	}
}

func TestFindProgramAddressSeparatesInputs(t *testing.T) {
	programA := AddressFromName("program-a")
	programB := AddressFromName("program-b")
	alice := AddressFromName("alice")
	bob := AddressFromName("bob")

	cases := []struct {
		name    string
		program Address
		label   string
		owner   Address
	}{
		{name: "other owner", program: programA, label: "state", owner: bob},
		{name: "other label", program: programA, label: "vault", owner: alice},
		{name: "other program", program: programB, label: "state", owner: alice},
	}

	base, _, err := FindProgramAddress(programA, []byte("state"), alice[:])
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := FindProgramAddress(tc.program, []byte(tc.label), tc.owner[:])
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if got == base {
				t.Fatalf("collision with base derivation")
			}
		})
	}
}

func TestCreateProgramAddressRejectsWrongBump(t *testing.T) {
	program := AddressFromName("vault-program")
	owner := AddressFromName("alice")
	addr, bump, err := FindProgramAddress(program, []byte("state"), owner[:])
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	other, err := CreateProgramAddress(program, []byte("state"), owner[:], []byte{bump - 1})
	if err == nil && other == addr {
		t.Fatalf("different bump must not reproduce the address")
	}
}

func TestCreateProgramAddressSeedLimits(t *testing.T) {
	program := AddressFromName("vault-program")
	if _, err := CreateProgramAddress(program, make([]byte, MaxSeedLen+1)); !errors.Is(err, ErrMaxSeedLength) {
		t.Fatalf("expected seed length error, got %v", err)
	}
	seeds := make([][]byte, MaxSeeds+1)
	if _, err := CreateProgramAddress(program, seeds...); !errors.Is(err, ErrMaxSeedLength) {
		t.Fatalf("expected seed count error, got %v", err)
	}
}

func TestPublicKeysAreOnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if !isOnCurve(pub) {
		t.Fatalf("ed25519 public key should decode as a curve point")
	}
}

func TestAddressText(t *testing.T) {
	addr := AddressFromName("alice")
	parsed, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != addr {
		t.Fatalf("expected %s, got %s", addr, parsed)
	}

	mangled := strings.ToLower(addr.String())
	if _, err := ParseAddress(mangled); err == nil {
		t.Fatalf("expected lowercase address to be rejected")
	}
}
