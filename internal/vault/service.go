package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultkeep/vaultkeep/internal/ledger"
	"github.com/vaultkeep/vaultkeep/internal/logging"
	"github.com/vaultkeep/vaultkeep/internal/notification"
	"github.com/vaultkeep/vaultkeep/internal/observability"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

const (
	opInit     = notification.KindVaultInit
	opDeposit  = notification.KindVaultDeposit
	opWithdraw = notification.KindVaultWithdraw
	opClose    = notification.KindVaultClose
)

// Service runs vault instructions as ledger transactions and reports on them.
type Service struct {
	ledger   ledger.Ledger
	program  *Program
	notifier notification.Notifier
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService builds a vault service. notifier, metrics and logger may be nil.
func NewService(ledger ledger.Ledger, program *Program, notifier notification.Notifier, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{ledger: ledger, program: program, notifier: notifier, metrics: metrics, logger: logger}
}

// Input carries one instruction request. Caller is the identity that proved
// possession of its key; it is the only signer of the transaction.
type Input struct {
	Caller   pda.Address
	Accounts Accounts
	Amount   uint64
}

// Result describes a committed instruction.
type Result struct {
	TransactionID string
	Accounts      Accounts
	Amount        uint64
	VaultBalance  uint64
	Refunded      uint64
	CommittedAt   time.Time
}

// View is a read-only snapshot of an owner's vault.
type View struct {
	Accounts       Accounts
	State          VaultState
	Balance        uint64
	MinimumBalance uint64
	Withdrawable   uint64
	StateDeposit   uint64
}

// Init creates the owner's control record and vault.
func (s *Service) Init(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, opInit, in, func(tx ledger.Tx, accounts Accounts) (Outcome, error) {
		return s.program.Init(tx, accounts)
	})
}

// Deposit moves in.Amount from the owner into the vault.
func (s *Service) Deposit(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, opDeposit, in, func(tx ledger.Tx, accounts Accounts) (Outcome, error) {
		return s.program.Deposit(tx, accounts, in.Amount)
	})
}

// Withdraw moves in.Amount from the vault back to the owner.
func (s *Service) Withdraw(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, opWithdraw, in, func(tx ledger.Tx, accounts Accounts) (Outcome, error) {
		return s.program.Withdraw(tx, accounts, in.Amount)
	})
}

// Close drains and removes the owner's vault.
func (s *Service) Close(ctx context.Context, in Input) (Result, error) {
	return s.run(ctx, opClose, in, func(tx ledger.Tx, accounts Accounts) (Outcome, error) {
		return s.program.Close(tx, accounts)
	})
}

// Describe returns the owner's vault as currently committed.
func (s *Service) Describe(ctx context.Context, owner pda.Address) (View, error) {
	accounts, err := s.program.Deriver().Resolve(Accounts{Owner: owner})
	if err != nil {
		return View{}, err
	}
	stateAcc, err := s.ledger.Account(ctx, accounts.VaultState)
	if err != nil {
		return View{}, classify(err)
	}
	var record VaultState
	if err := record.UnmarshalBinary(stateAcc.Data); err != nil {
		return View{}, err
	}
	vaultAcc, err := s.ledger.Account(ctx, accounts.Vault)
	if err != nil {
		return View{}, classify(err)
	}

	minimum := s.ledger.Rent().MinimumBalance(len(vaultAcc.Data))
	view := View{
		Accounts:       accounts,
		State:          record,
		Balance:        vaultAcc.Lamports,
		MinimumBalance: minimum,
		StateDeposit:   stateAcc.Lamports,
	}
	if vaultAcc.Lamports > minimum {
		view.Withdrawable = vaultAcc.Lamports - minimum
	}
	return view, nil
}

// Program returns the program the service executes.
func (s *Service) Program() *Program { return s.program }

func (s *Service) run(ctx context.Context, op string, in Input, instr func(ledger.Tx, Accounts) (Outcome, error)) (Result, error) {
	start := time.Now()

	accounts, err := s.program.Deriver().Resolve(in.Accounts)
	if err != nil {
		s.observe(op, start, err)
		return Result{}, err
	}

	var outcome Outcome
	req := ledger.Request{
		Kind:     "vault." + op,
		Program:  s.program.ID(),
		Signers:  []pda.Address{in.Caller},
		Accounts: accounts.List(),
	}
	receipt, err := s.ledger.Execute(ctx, req, func(tx ledger.Tx) error {
		var err error
		outcome, err = instr(tx, accounts)
		return err
	})
	// Commit-time rejections come from the ledger, not the program.
	err = classify(err)
	s.observe(op, start, err)
	if err != nil {
		logging.FromContext(ctx, s.logger).Debug("vault instruction rejected",
			slog.String("operation", op),
			slog.String("owner", accounts.Owner.String()),
			slog.Any("error", err),
		)
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	result := Result{
		TransactionID: receipt.TransactionID,
		Accounts:      outcome.Accounts,
		Amount:        outcome.Amount,
		VaultBalance:  outcome.VaultBalance,
		Refunded:      outcome.Refunded,
		CommittedAt:   receipt.CommittedAt,
	}
	s.record(ctx, op, result, receipt)
	return result, nil
}

func (s *Service) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.Operations.WithLabelValues(op, outcomeLabel(err)).Inc()
}

func (s *Service) record(ctx context.Context, op string, result Result, receipt ledger.Receipt) {
	if s.metrics != nil {
		switch op {
		case opInit, opDeposit:
			s.metrics.LamportsMoved.WithLabelValues("in").Add(float64(result.Amount))
		case opWithdraw, opClose:
			s.metrics.LamportsMoved.WithLabelValues("out").Add(float64(result.Amount))
		}
		s.metrics.Reclaimed.Add(float64(len(receipt.Reclaimed)))
	}
	for _, addr := range receipt.Reclaimed {
		logging.FromContext(ctx, s.logger).Warn("ledger reclaimed account below minimum balance",
			slog.String("operation", op),
			slog.String("account", addr.String()),
			slog.String("transaction_id", receipt.TransactionID),
		)
	}

	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:          op,
		TransactionID: result.TransactionID,
		Owner:         result.Accounts.Owner.String(),
		VaultState:    result.Accounts.VaultState.String(),
		Vault:         result.Accounts.Vault.String(),
		Amount:        result.Amount,
		VaultBalance:  result.VaultBalance,
		At:            result.CommittedAt,
	}
	for _, addr := range receipt.Reclaimed {
		msg.Reclaimed = append(msg.Reclaimed, addr.String())
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		logging.FromContext(ctx, s.logger).Warn("vault event publish failed",
			slog.String("operation", op),
			slog.String("transaction_id", result.TransactionID),
			slog.Any("error", err),
		)
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDerivationMismatch):
		return "derivation_mismatch"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "error"
	}
}
