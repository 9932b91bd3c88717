package funding

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

var (
	// ErrInvalidAmount indicates a zero credit.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrAboveCap indicates a credit larger than the faucet allows.
	ErrAboveCap = errors.New("amount exceeds faucet cap")
	// ErrInvalidRecipient indicates a missing or reserved recipient.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// Service credits owner accounts from outside the ledger so they can pay for
// vault rent and deposits in development environments.
type Service struct {
	ledger   ledger.Ledger
	policy   Policy
	notifier notification.Notifier
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService prepares a faucet. A nil policy approves any positive amount.
func NewService(ledgerBackend ledger.Ledger, policy Policy, notifier notification.Notifier, metrics *observability.Metrics, logger *slog.Logger) (*Service, error) {
	if ledgerBackend == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if policy == nil {
		policy = CapPolicy{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{ledger: ledgerBackend, policy: policy, notifier: notifier, metrics: metrics, logger: logger}, nil
}

// AirdropInput captures the required data for a faucet credit.
type AirdropInput struct {
	To     pda.Address
	Amount uint64
}

// AirdropResult represents the domain outcome of a faucet credit.
type AirdropResult struct {
	TransactionID string
	To            pda.Address
	Amount        uint64
	Balance       uint64
	CompletedAt   time.Time
}

// Airdrop credits input.Amount to input.To after the policy approves it.
func (s *Service) Airdrop(ctx context.Context, input AirdropInput) (AirdropResult, error) {
	if input.To.IsZero() {
		return AirdropResult{}, ErrInvalidRecipient
	}
	decision, err := s.policy.Authorize(ctx, Authorization{To: input.To, Amount: input.Amount})
	if err != nil {
		return AirdropResult{}, err
	}

	receipt, balance, err := s.ledger.Airdrop(ctx, input.To, decision.Amount)
	if err != nil {
		return AirdropResult{}, fmt.Errorf("airdrop: %w", err)
	}

	result := AirdropResult{
		TransactionID: receipt.TransactionID,
		To:            input.To,
		Amount:        decision.Amount,
		Balance:       balance,
		CompletedAt:   receipt.CommittedAt,
	}
	if s.metrics != nil {
		s.metrics.Airdrops.Inc()
	}
	logging.FromContext(ctx, s.logger).Info("faucet credit applied",
		slog.String("to", input.To.String()),
		slog.Uint64("amount", result.Amount),
		slog.Uint64("balance", balance),
	)
	if s.notifier != nil {
		msg := notification.Message{
			Kind:          notification.KindAirdrop,
			TransactionID: result.TransactionID,
			Owner:         input.To.String(),
			Amount:        result.Amount,
			At:            result.CompletedAt,
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			logging.FromContext(ctx, s.logger).Warn("airdrop event publish failed", slog.Any("error", err))
		}
	}
	return result, nil
}
