package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// PostgresLedger persists accounts in PostgreSQL. Each Execute runs inside one
// database transaction holding advisory locks on the declared accounts.
type PostgresLedger struct {
	db   *pgxpool.Pool
	rent Rent
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool, rent Rent) *PostgresLedger {
	return &PostgresLedger{db: db, rent: rent}
}

// Rent returns the configured minimum balance parameters.
func (l *PostgresLedger) Rent() Rent { return l.rent }

// Account loads the committed state of a single account.
func (l *PostgresLedger) Account(ctx context.Context, addr pda.Address) (Account, error) {
	acc, err := loadAccount(ctx, l.db, addr)
	if err != nil {
		return Account{}, err
	}
	if acc == nil {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return *acc, nil
}

// Execute runs fn against the declared accounts and commits its writes atomically.
func (l *PostgresLedger) Execute(ctx context.Context, req Request, fn func(Tx) error) (Receipt, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Receipt{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	addrs := uniqueSorted(req.Accounts)
	loaded := make(map[pda.Address]*Account, len(addrs))
	for _, addr := range addrs {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(addr)); err != nil {
			return Receipt{}, fmt.Errorf("lock %s: %w", addr, err)
		}
		acc, err := loadAccount(ctx, tx, addr)
		if err != nil {
			return Receipt{}, err
		}
		loaded[addr] = acc
	}

	staged := newStagedTx(req, l.rent, loaded)
	if err := fn(staged); err != nil {
		return Receipt{}, err
	}
	changes, reclaimed, err := staged.finalize()
	if err != nil {
		return Receipt{}, err
	}

	for _, ch := range changes {
		if ch.account == nil {
			if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE address = $1`, ch.addr[:]); err != nil {
				return Receipt{}, fmt.Errorf("delete %s: %w", ch.addr, err)
			}
			continue
		}
		if err := upsertAccount(ctx, tx, *ch.account); err != nil {
			return Receipt{}, err
		}
	}

	receipt := Receipt{
		TransactionID: uuid.NewString(),
		Kind:          req.Kind,
		Reclaimed:     reclaimed,
		CommittedAt:   time.Now().UTC(),
	}
	if err := recordTransaction(ctx, tx, receipt, req.Program, req.Signers); err != nil {
		return Receipt{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// Airdrop credits lamports to a system account from outside any program.
func (l *PostgresLedger) Airdrop(ctx context.Context, to pda.Address, lamports uint64) (Receipt, uint64, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Receipt{}, 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(to)); err != nil {
		return Receipt{}, 0, fmt.Errorf("lock %s: %w", to, err)
	}
	acc, err := loadAccount(ctx, tx, to)
	if err != nil {
		return Receipt{}, 0, err
	}
	if acc == nil {
		acc = &Account{Address: to, Owner: pda.SystemProgram}
	}
	if acc.Lamports+lamports > maxLamports {
		return Receipt{}, 0, ErrArithmeticOverflow
	}
	acc.Lamports += lamports
	if minimum := l.rent.MinimumBalance(len(acc.Data)); acc.Lamports < minimum {
		return Receipt{}, 0, fmt.Errorf("%w: %d < %d", ErrBelowRentMinimum, acc.Lamports, minimum)
	}
	if err := upsertAccount(ctx, tx, *acc); err != nil {
		return Receipt{}, 0, err
	}
	receipt := Receipt{TransactionID: uuid.NewString(), Kind: KindAirdrop, CommittedAt: time.Now().UTC()}
	if err := recordTransaction(ctx, tx, receipt, pda.SystemProgram, nil); err != nil {
		return Receipt{}, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, 0, err
	}
	return receipt, acc.Lamports, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadAccount(ctx context.Context, q querier, addr pda.Address) (*Account, error) {
	const query = `SELECT lamports, owner, data FROM accounts WHERE address = $1`
	var (
		lamports int64
		owner    []byte
		data     []byte
	)
	if err := q.QueryRow(ctx, query, addr[:]).Scan(&lamports, &owner, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load account %s: %w", addr, err)
	}
	acc, err := accountFromRow(addr, lamports, owner, data)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", addr, err)
	}
	return &acc, nil
}

// accountFromRow decodes the columns of an accounts row.
func accountFromRow(addr pda.Address, lamports int64, owner, data []byte) (Account, error) {
	if lamports < 0 {
		return Account{}, fmt.Errorf("negative lamports %d", lamports)
	}
	ownerAddr, err := pda.AddressFromBytes(owner)
	if err != nil {
		return Account{}, fmt.Errorf("owner: %w", err)
	}
	if len(data) == 0 {
		data = nil
	}
	return Account{Address: addr, Lamports: uint64(lamports), Owner: ownerAddr, Data: data}, nil
}

// accountRow encodes acc for the accounts table. BIGINT holds every balance
// the ledger allows.
func accountRow(acc Account) (lamports int64, owner, data []byte, err error) {
	if acc.Lamports > maxLamports {
		return 0, nil, nil, fmt.Errorf("%w: %d lamports", ErrArithmeticOverflow, acc.Lamports)
	}
	data = acc.Data
	if data == nil {
		data = []byte{}
	}
	return int64(acc.Lamports), acc.Owner[:], data, nil
}

func upsertAccount(ctx context.Context, tx pgx.Tx, acc Account) error {
	lamports, owner, data, err := accountRow(acc)
	if err != nil {
		return fmt.Errorf("write account %s: %w", acc.Address, err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO accounts (address, lamports, owner, data, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (address) DO UPDATE
        SET lamports = EXCLUDED.lamports, owner = EXCLUDED.owner, data = EXCLUDED.data, updated_at = NOW()`,
		acc.Address[:], lamports, owner, data)
	if err != nil {
		return fmt.Errorf("write account %s: %w", acc.Address, err)
	}
	return nil
}

func recordTransaction(ctx context.Context, tx pgx.Tx, receipt Receipt, program pda.Address, signers []pda.Address) error {
	id, err := uuid.Parse(receipt.TransactionID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO transactions (id, kind, program, signers, reclaimed, committed_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		id, receipt.Kind, program[:], addressColumn(signers), addressColumn(receipt.Reclaimed), receipt.CommittedAt)
	return err
}

func addressColumn(addrs []pda.Address) [][]byte {
	out := make([][]byte, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr[:])
	}
	return out
}

// lockKey folds an address into the bigint key space of pg advisory locks.
func lockKey(addr pda.Address) int64 {
	return int64(binary.BigEndian.Uint64(addr[:8]))
}
