package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	accounts map[pda.Address]Account
	locks    *lockTable
	rent     Rent
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development.
func NewInMemory(rent Rent) Ledger {
	return &inMemoryLedger{
		accounts: make(map[pda.Address]Account),
		locks:    newLockTable(),
		rent:     rent,
	}
}

func (l *inMemoryLedger) Rent() Rent { return l.rent }

func (l *inMemoryLedger) Account(_ context.Context, addr pda.Address) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc.clone(), nil
}

func (l *inMemoryLedger) Execute(ctx context.Context, req Request, fn func(Tx) error) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	addrs := uniqueSorted(req.Accounts)
	unlock := l.locks.acquire(addrs)
	defer unlock()

	loaded := make(map[pda.Address]*Account, len(addrs))
	l.mu.RLock()
	for _, addr := range addrs {
		if acc, ok := l.accounts[addr]; ok {
			c := acc.clone()
			loaded[addr] = &c
		} else {
			loaded[addr] = nil
		}
	}
	l.mu.RUnlock()

	tx := newStagedTx(req, l.rent, loaded)
	if err := fn(tx); err != nil {
		return Receipt{}, err
	}
	changes, reclaimed, err := tx.finalize()
	if err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	for _, ch := range changes {
		if ch.account == nil {
			delete(l.accounts, ch.addr)
			continue
		}
		l.accounts[ch.addr] = *ch.account
	}
	l.mu.Unlock()

	return Receipt{
		TransactionID: uuid.NewString(),
		Kind:          req.Kind,
		Reclaimed:     reclaimed,
		CommittedAt:   time.Now().UTC(),
	}, nil
}

func (l *inMemoryLedger) Airdrop(_ context.Context, to pda.Address, lamports uint64) (Receipt, uint64, error) {
	unlock := l.locks.acquire([]pda.Address{to})
	defer unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[to]
	if !ok {
		acc = Account{Address: to, Owner: pda.SystemProgram}
	}
	if acc.Lamports+lamports > maxLamports {
		return Receipt{}, 0, ErrArithmeticOverflow
	}
	balance := acc.Lamports + lamports
	if minimum := l.rent.MinimumBalance(len(acc.Data)); balance < minimum {
		return Receipt{}, 0, fmt.Errorf("%w: %d < %d", ErrBelowRentMinimum, balance, minimum)
	}
	acc.Lamports = balance
	l.accounts[to] = acc
	return Receipt{
		TransactionID: uuid.NewString(),
		Kind:          KindAirdrop,
		CommittedAt:   time.Now().UTC(),
	}, balance, nil
}

// lockTable hands out one mutex per address. Transactions acquire their
// declared accounts in address order so overlapping sets cannot deadlock.
type lockTable struct {
	mu    sync.Mutex
	locks map[pda.Address]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[pda.Address]*sync.Mutex)}
}

// acquire expects addrs sorted and free of duplicates.
func (t *lockTable) acquire(addrs []pda.Address) func() {
	held := make([]*sync.Mutex, 0, len(addrs))
	for _, addr := range addrs {
		m := t.get(addr)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (t *lockTable) get(addr pda.Address) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[addr]
	if !ok {
		m = &sync.Mutex{}
		t.locks[addr] = m
	}
	return m
}
