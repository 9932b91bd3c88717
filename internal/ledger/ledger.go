package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

var (
	// ErrAccountNotFound indicates no account is allocated at the address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists is returned when allocating over a live account.
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrInsufficientFunds occurs when the source account lacks the lamports
	// needed to cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPayerInsufficientFunds occurs when the payer of an allocation cannot
	// cover the allocation deposit.
	ErrPayerInsufficientFunds = errors.New("payer has insufficient funds for allocation")

	// ErrMissingSignature indicates a debit from an account that did not sign.
	ErrMissingSignature = errors.New("missing required signature")

	// ErrInvalidSeeds indicates a derivation proof that does not reproduce the
	// account address under the executing program.
	ErrInvalidSeeds = errors.New("invalid seeds for program address")

	// ErrAccountNotDeclared indicates access to an account outside the
	// transaction's declared account set.
	ErrAccountNotDeclared = errors.New("account not declared by transaction")

	// ErrIllegalOwner indicates a mutation the account owner does not permit.
	ErrIllegalOwner = errors.New("account owner does not permit this operation")

	// ErrInvalidDataLength indicates a data write that does not match the allocated size.
	ErrInvalidDataLength = errors.New("data length does not match allocation")

	// ErrBelowRentMinimum indicates an account that would be left holding
	// lamports but less than its minimum balance: a debit that strands the
	// source, or a credit too small to open a new account.
	ErrBelowRentMinimum = errors.New("balance below rent minimum")

	// ErrArithmeticOverflow indicates a balance that no longer fits the ledger.
	ErrArithmeticOverflow = errors.New("lamport arithmetic overflow")
)

// Account is the ledger's view of a single allocated address.
type Account struct {
	Address  pda.Address
	Lamports uint64
	Owner    pda.Address
	Data     []byte
}

func (a Account) clone() Account {
	out := a
	if a.Data != nil {
		out.Data = make([]byte, len(a.Data))
		copy(out.Data, a.Data)
	}
	return out
}

// Request declares everything a transaction may touch up front. The ledger
// locks exactly these accounts for the duration of the transaction.
type Request struct {
	Kind     string
	Program  pda.Address
	Signers  []pda.Address
	Accounts []pda.Address
}

// KindAirdrop labels receipts for faucet credits.
const KindAirdrop = "airdrop"

// Receipt describes a committed transaction.
type Receipt struct {
	TransactionID string
	Kind          string
	Reclaimed     []pda.Address
	CommittedAt   time.Time
}

// Tx is the view of the ledger handed to a program while a transaction runs.
// Nothing is visible to other transactions until the callback returns nil.
type Tx interface {
	// Program is the identity of the program executing the transaction.
	Program() pda.Address
	Rent() Rent
	IsSigner(addr pda.Address) bool
	Account(addr pda.Address) (Account, error)
	// Transfer moves lamports out of an account that signed the transaction.
	Transfer(from, to pda.Address, amount uint64) error
	// TransferSigned moves lamports out of an account derived from the
	// executing program; seeds must reproduce from, bump included.
	TransferSigned(from, to pda.Address, amount uint64, seeds ...[]byte) error
	// Allocate creates a program-owned account of space bytes at a derived
	// address, funded by payer with the minimum balance for that size.
	Allocate(addr pda.Address, space int, payer pda.Address, seeds ...[]byte) error
	WriteData(addr pda.Address, data []byte) error
	// Deallocate removes a program-owned account and refunds its lamports.
	Deallocate(addr, refundTo pda.Address) error
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	Execute(ctx context.Context, req Request, fn func(Tx) error) (Receipt, error)
	Account(ctx context.Context, addr pda.Address) (Account, error)
	// Airdrop credits a system account from outside any program and reports
	// the committed receipt with the resulting balance.
	Airdrop(ctx context.Context, to pda.Address, lamports uint64) (Receipt, uint64, error)
	Rent() Rent
}
