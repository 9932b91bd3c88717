package vault

import (
	"errors"
	"fmt"

	"github.com/vaultkeep/vaultkeep/internal/ledger"
)

var (
	// ErrDerivationMismatch indicates a supplied account address that does not
	// match the address recomputed from seeds.
	ErrDerivationMismatch = errors.New("account does not match derivation")

	// ErrNotFound indicates the owner has no vault; Init must run first.
	ErrNotFound = errors.New("vault not found")

	// ErrAlreadyExists indicates Init for an owner that already has a vault.
	ErrAlreadyExists = errors.New("vault already exists")

	// ErrInsufficientFunds covers both an owner that cannot fund a deposit and
	// a withdrawal that would take the vault below its minimum balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnauthorized indicates the caller did not sign for the owner.
	ErrUnauthorized = errors.New("caller is not the vault owner")

	// ErrInvalidAmount indicates a zero amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidAccountData indicates a control record that cannot be decoded
	// or is not owned by this program.
	ErrInvalidAccountData = errors.New("invalid control record")
)

var taxonomy = []error{
	ErrDerivationMismatch, ErrNotFound, ErrAlreadyExists, ErrInsufficientFunds,
	ErrUnauthorized, ErrInvalidAmount, ErrInvalidAccountData,
}

// classify maps ledger failures onto the vault error taxonomy, keeping the
// ledger error in the chain. Errors already in the taxonomy pass through.
func classify(err error) error {
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrAccountAlreadyExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrPayerInsufficientFunds),
		errors.Is(err, ledger.ErrBelowRentMinimum):
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	case errors.Is(err, ledger.ErrMissingSignature):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case errors.Is(err, ledger.ErrInvalidSeeds):
		return fmt.Errorf("%w: %w", ErrDerivationMismatch, err)
	case errors.Is(err, ledger.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}
