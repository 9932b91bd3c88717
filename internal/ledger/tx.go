package ledger

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// maxLamports keeps balances representable in a signed 64-bit column.
const maxLamports = math.MaxInt64

// stagedTx buffers every mutation of a transaction over the declared accounts.
// Backends load the declared accounts, run the program against a stagedTx and
// persist the result of finalize only when the program succeeds.
type stagedTx struct {
	req      Request
	rent     Rent
	declared map[pda.Address]bool
	signers  map[pda.Address]bool
	accounts map[pda.Address]*Account
	touched  map[pda.Address]bool
	debited  map[pda.Address]bool
}

func newStagedTx(req Request, rent Rent, loaded map[pda.Address]*Account) *stagedTx {
	tx := &stagedTx{
		req:      req,
		rent:     rent,
		declared: make(map[pda.Address]bool, len(req.Accounts)),
		signers:  make(map[pda.Address]bool, len(req.Signers)),
		accounts: loaded,
		touched:  make(map[pda.Address]bool),
		debited:  make(map[pda.Address]bool),
	}
	for _, addr := range req.Accounts {
		tx.declared[addr] = true
	}
	for _, addr := range req.Signers {
		tx.signers[addr] = true
	}
	return tx
}

func (tx *stagedTx) Program() pda.Address { return tx.req.Program }

func (tx *stagedTx) Rent() Rent { return tx.rent }

func (tx *stagedTx) IsSigner(addr pda.Address) bool { return tx.signers[addr] }

func (tx *stagedTx) Account(addr pda.Address) (Account, error) {
	acc, err := tx.lookup(addr)
	if err != nil {
		return Account{}, err
	}
	return acc.clone(), nil
}

func (tx *stagedTx) Transfer(from, to pda.Address, amount uint64) error {
	if !tx.signers[from] {
		return fmt.Errorf("%w: %s", ErrMissingSignature, from)
	}
	return tx.move(from, to, amount)
}

func (tx *stagedTx) TransferSigned(from, to pda.Address, amount uint64, seeds ...[]byte) error {
	if err := tx.verifySeeds(from, seeds); err != nil {
		return err
	}
	return tx.move(from, to, amount)
}

func (tx *stagedTx) Allocate(addr pda.Address, space int, payer pda.Address, seeds ...[]byte) error {
	if !tx.declared[addr] {
		return fmt.Errorf("%w: %s", ErrAccountNotDeclared, addr)
	}
	if tx.accounts[addr] != nil {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, addr)
	}
	if err := tx.verifySeeds(addr, seeds); err != nil {
		return err
	}
	if !tx.signers[payer] {
		return fmt.Errorf("%w: payer %s", ErrMissingSignature, payer)
	}
	payerAcc, err := tx.lookup(payer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPayerInsufficientFunds, err)
	}
	deposit := tx.rent.MinimumBalance(space)
	if payerAcc.Lamports < deposit {
		return fmt.Errorf("%w: need %d, have %d", ErrPayerInsufficientFunds, deposit, payerAcc.Lamports)
	}

	payerAcc.Lamports -= deposit
	tx.debited[payer] = true
	tx.accounts[addr] = &Account{
		Address:  addr,
		Lamports: deposit,
		Owner:    tx.req.Program,
		Data:     make([]byte, space),
	}
	tx.touched[payer] = true
	tx.touched[addr] = true
	return nil
}

func (tx *stagedTx) WriteData(addr pda.Address, data []byte) error {
	acc, err := tx.lookup(addr)
	if err != nil {
		return err
	}
	if acc.Owner != tx.req.Program {
		return fmt.Errorf("%w: %s is owned by %s", ErrIllegalOwner, addr, acc.Owner)
	}
	if len(data) != len(acc.Data) {
		return fmt.Errorf("%w: %d != %d", ErrInvalidDataLength, len(data), len(acc.Data))
	}
	copy(acc.Data, data)
	tx.touched[addr] = true
	return nil
}

func (tx *stagedTx) Deallocate(addr, refundTo pda.Address) error {
	acc, err := tx.lookup(addr)
	if err != nil {
		return err
	}
	if acc.Owner != tx.req.Program {
		return fmt.Errorf("%w: %s is owned by %s", ErrIllegalOwner, addr, acc.Owner)
	}
	dest, err := tx.destination(refundTo)
	if err != nil {
		return err
	}
	if dest.Lamports+acc.Lamports > maxLamports {
		return ErrArithmeticOverflow
	}
	dest.Lamports += acc.Lamports
	tx.accounts[addr] = nil
	tx.touched[addr] = true
	tx.touched[refundTo] = true
	return nil
}

func (tx *stagedTx) move(from, to pda.Address, amount uint64) error {
	src, err := tx.lookup(from)
	if err != nil {
		return err
	}
	if src.Owner != pda.SystemProgram || len(src.Data) != 0 {
		return fmt.Errorf("%w: %s carries program data", ErrIllegalOwner, from)
	}
	if src.Lamports < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, from, src.Lamports, amount)
	}
	dest, err := tx.destination(to)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if dest.Lamports+amount > maxLamports {
		return ErrArithmeticOverflow
	}
	src.Lamports -= amount
	dest.Lamports += amount
	tx.debited[from] = true
	tx.touched[from] = true
	tx.touched[to] = true
	return nil
}

// destination returns the account to credit, creating a system account when
// the address is declared but not yet allocated.
func (tx *stagedTx) destination(addr pda.Address) (*Account, error) {
	if !tx.declared[addr] {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotDeclared, addr)
	}
	acc := tx.accounts[addr]
	if acc == nil {
		acc = &Account{Address: addr, Owner: pda.SystemProgram}
		tx.accounts[addr] = acc
	}
	return acc, nil
}

func (tx *stagedTx) lookup(addr pda.Address) (*Account, error) {
	if !tx.declared[addr] {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotDeclared, addr)
	}
	acc := tx.accounts[addr]
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc, nil
}

func (tx *stagedTx) verifySeeds(addr pda.Address, seeds [][]byte) error {
	derived, err := pda.CreateProgramAddress(tx.req.Program, seeds...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
	}
	if !bytes.Equal(derived[:], addr[:]) {
		return fmt.Errorf("%w: seeds derive %s, not %s", ErrInvalidSeeds, derived, addr)
	}
	return nil
}

type change struct {
	addr    pda.Address
	account *Account
}

// finalize applies the host's end-of-transaction rules and returns the writes
// to persist in address order. Emptied system accounts are removed. A debited
// system account may not be left between zero and its minimum balance; that
// fails the whole transaction. Accounts that were only credited and still sit
// below their minimum are reclaimed and their lamports burned.
func (tx *stagedTx) finalize() ([]change, []pda.Address, error) {
	addrs := make([]pda.Address, 0, len(tx.touched))
	for addr := range tx.touched {
		addrs = append(addrs, addr)
	}
	sortAddresses(addrs)

	var reclaimed []pda.Address
	changes := make([]change, 0, len(addrs))
	for _, addr := range addrs {
		acc := tx.accounts[addr]
		if acc != nil && acc.Owner == pda.SystemProgram {
			minimum := tx.rent.MinimumBalance(len(acc.Data))
			switch {
			case acc.Lamports == 0:
				acc = nil
			case acc.Lamports < minimum && tx.debited[addr]:
				return nil, nil, fmt.Errorf("%w: %s would keep %d, minimum %d",
					ErrBelowRentMinimum, addr, acc.Lamports, minimum)
			case acc.Lamports < minimum:
				reclaimed = append(reclaimed, addr)
				acc = nil
			}
		}
		changes = append(changes, change{addr: addr, account: acc})
	}
	return changes, reclaimed, nil
}

func sortAddresses(addrs []pda.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}

func uniqueSorted(addrs []pda.Address) []pda.Address {
	seen := make(map[pda.Address]bool, len(addrs))
	out := make([]pda.Address, 0, len(addrs))
	for _, addr := range addrs {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	sortAddresses(out)
	return out
}
