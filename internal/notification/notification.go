package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindVaultInit is published when a vault is created.
	KindVaultInit = "init"
	// KindVaultDeposit is published when value enters a vault.
	KindVaultDeposit = "deposit"
	// KindVaultWithdraw is published when value leaves a vault.
	KindVaultWithdraw = "withdraw"
	// KindVaultClose is published when a vault is drained and removed.
	KindVaultClose = "close"
	// KindAirdrop is published when the faucet credits an account.
	KindAirdrop = "airdrop"
)

// Message describes a committed vault event.
type Message struct {
	Kind          string    `json:"kind"`
	TransactionID string    `json:"transaction_id"`
	Owner         string    `json:"owner"`
	VaultState    string    `json:"vault_state,omitempty"`
	Vault         string    `json:"vault,omitempty"`
	Amount        uint64    `json:"amount"`
	VaultBalance  uint64    `json:"vault_balance"`
	Reclaimed     []string  `json:"reclaimed,omitempty"`
	At            time.Time `json:"at"`
}

// Notifier delivers event messages to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes events to the structured logger. It is used when no
// message broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("vault event",
		"kind", message.Kind,
		"transaction_id", message.TransactionID,
		"owner", message.Owner,
		"amount", message.Amount,
		"vault_balance", message.VaultBalance,
	)
	return nil
}
