package vault

import (
	"errors"
	"fmt"

	"github.com/vaultkeep/vaultkeep/internal/ledger"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// Accounts names the three accounts every vault instruction touches. Zero
// addresses are filled by Deriver.Resolve; supplied ones are verified.
type Accounts struct {
	Owner      pda.Address
	VaultState pda.Address
	Vault      pda.Address
}

// List returns the accounts in the order they are declared to the ledger.
func (a Accounts) List() []pda.Address {
	return []pda.Address{a.Owner, a.VaultState, a.Vault}
}

// Outcome reports what an instruction did inside its transaction.
type Outcome struct {
	Accounts     Accounts
	State        VaultState
	Amount       uint64
	VaultBalance uint64
	Refunded     uint64
}

// Program executes the four vault instructions against a ledger transaction.
// It never logs and never retries; every failure aborts the transaction.
type Program struct {
	derive Deriver
}

// NewProgram builds the vault program for a deployed program identity.
func NewProgram(program pda.Address) *Program {
	return &Program{derive: NewDeriver(program)}
}

// ID returns the program identity.
func (p *Program) ID() pda.Address { return p.derive.Program() }

// Deriver exposes the derivation authority the program uses.
func (p *Program) Deriver() Deriver { return p.derive }

// Init allocates the control record, funds the vault with the minimum balance
// of an empty account and records both bumps.
func (p *Program) Init(tx ledger.Tx, accounts Accounts) (Outcome, error) {
	if !tx.IsSigner(accounts.Owner) {
		return Outcome{}, ErrUnauthorized
	}

	state, stateBump, err := p.derive.StateAddress(accounts.Owner)
	if err != nil {
		return Outcome{}, fmt.Errorf("derive state: %w", err)
	}
	if err := matches("vault state", accounts.VaultState, state); err != nil {
		return Outcome{}, err
	}
	vault, vaultBump, err := p.derive.VaultAddress(state)
	if err != nil {
		return Outcome{}, fmt.Errorf("derive vault: %w", err)
	}
	if err := matches("vault", accounts.Vault, vault); err != nil {
		return Outcome{}, err
	}

	if err := tx.Allocate(state, StateSpace, accounts.Owner, p.derive.StateSeeds(accounts.Owner, stateBump)...); err != nil {
		return Outcome{}, classify(err)
	}

	if _, err := tx.Account(vault); err == nil {
		return Outcome{}, fmt.Errorf("%w: vault %s is already allocated", ErrAlreadyExists, vault)
	} else if !errors.Is(err, ledger.ErrAccountNotFound) {
		return Outcome{}, err
	}
	minimum := tx.Rent().MinimumBalance(0)
	if err := tx.Transfer(accounts.Owner, vault, minimum); err != nil {
		return Outcome{}, classify(err)
	}

	record := VaultState{VaultBump: vaultBump, StateBump: stateBump}
	data, err := record.MarshalBinary()
	if err != nil {
		return Outcome{}, err
	}
	if err := tx.WriteData(state, data); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Accounts:     Accounts{Owner: accounts.Owner, VaultState: state, Vault: vault},
		State:        record,
		Amount:       minimum,
		VaultBalance: minimum,
	}, nil
}

// Deposit moves amount from the owner into the vault. The owner signs, so no
// derivation proof is needed; only the destination is verified.
func (p *Program) Deposit(tx ledger.Tx, accounts Accounts, amount uint64) (Outcome, error) {
	if amount == 0 {
		return Outcome{}, ErrInvalidAmount
	}
	record, err := p.load(tx, accounts)
	if err != nil {
		return Outcome{}, err
	}
	vaultAcc, err := p.vaultAccount(tx, accounts.Vault)
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Transfer(accounts.Owner, accounts.Vault, amount); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return Outcome{}, fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		}
		return Outcome{}, classify(err)
	}

	return Outcome{
		Accounts:     accounts,
		State:        record,
		Amount:       amount,
		VaultBalance: vaultAcc.Lamports + amount,
	}, nil
}

// Withdraw moves amount from the vault back to the owner, signing with the
// vault's derivation proof. The vault must keep at least its minimum balance.
func (p *Program) Withdraw(tx ledger.Tx, accounts Accounts, amount uint64) (Outcome, error) {
	if amount == 0 {
		return Outcome{}, ErrInvalidAmount
	}
	record, err := p.load(tx, accounts)
	if err != nil {
		return Outcome{}, err
	}
	vaultAcc, err := p.vaultAccount(tx, accounts.Vault)
	if err != nil {
		return Outcome{}, err
	}

	minimum := tx.Rent().MinimumBalance(len(vaultAcc.Data))
	if amount > vaultAcc.Lamports || vaultAcc.Lamports-amount < minimum {
		return Outcome{}, fmt.Errorf("%w: vault holds %d, minimum %d, requested %d",
			ErrInsufficientFunds, vaultAcc.Lamports, minimum, amount)
	}

	seeds := p.derive.VaultSeeds(accounts.VaultState, record.VaultBump)
	if err := tx.TransferSigned(accounts.Vault, accounts.Owner, amount, seeds...); err != nil {
		return Outcome{}, classify(err)
	}

	return Outcome{
		Accounts:     accounts,
		State:        record,
		Amount:       amount,
		VaultBalance: vaultAcc.Lamports - amount,
	}, nil
}

// Close drains the vault to the owner, ignoring the minimum balance, and
// removes the control record with its deposit refunded to the owner.
func (p *Program) Close(tx ledger.Tx, accounts Accounts) (Outcome, error) {
	record, err := p.load(tx, accounts)
	if err != nil {
		return Outcome{}, err
	}
	vaultAcc, err := p.vaultAccount(tx, accounts.Vault)
	if err != nil {
		return Outcome{}, err
	}
	stateAcc, err := tx.Account(accounts.VaultState)
	if err != nil {
		return Outcome{}, classify(err)
	}

	seeds := p.derive.VaultSeeds(accounts.VaultState, record.VaultBump)
	if err := tx.TransferSigned(accounts.Vault, accounts.Owner, vaultAcc.Lamports, seeds...); err != nil {
		return Outcome{}, classify(err)
	}
	if err := tx.Deallocate(accounts.VaultState, accounts.Owner); err != nil {
		return Outcome{}, classify(err)
	}

	return Outcome{
		Accounts:     accounts,
		State:        record,
		Amount:       vaultAcc.Lamports,
		VaultBalance: 0,
		Refunded:     stateAcc.Lamports,
	}, nil
}

// load authenticates the owner, reads the control record and checks that both
// supplied addresses re-derive from the stored bumps.
func (p *Program) load(tx ledger.Tx, accounts Accounts) (VaultState, error) {
	if !tx.IsSigner(accounts.Owner) {
		return VaultState{}, ErrUnauthorized
	}
	acc, err := tx.Account(accounts.VaultState)
	if err != nil {
		return VaultState{}, classify(err)
	}
	if acc.Owner != p.derive.Program() {
		return VaultState{}, fmt.Errorf("%w: owned by %s", ErrInvalidAccountData, acc.Owner)
	}
	var record VaultState
	if err := record.UnmarshalBinary(acc.Data); err != nil {
		return VaultState{}, err
	}
	if err := p.derive.verify("vault state", accounts.VaultState, p.derive.StateSeeds(accounts.Owner, record.StateBump)); err != nil {
		return VaultState{}, err
	}
	if err := p.derive.verify("vault", accounts.Vault, p.derive.VaultSeeds(accounts.VaultState, record.VaultBump)); err != nil {
		return VaultState{}, err
	}
	return record, nil
}

func (p *Program) vaultAccount(tx ledger.Tx, vault pda.Address) (ledger.Account, error) {
	acc, err := tx.Account(vault)
	if err != nil {
		return ledger.Account{}, classify(err)
	}
	return acc, nil
}

func matches(what string, supplied, derived pda.Address) error {
	if !supplied.IsZero() && supplied != derived {
		return fmt.Errorf("%w: %s %s, expected %s", ErrDerivationMismatch, what, supplied, derived)
	}
	return nil
}
