package funding

import (
	"context"
	"fmt"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// Policy decides whether a faucet credit may proceed.
type Policy interface {
	Authorize(ctx context.Context, req Authorization) (Decision, error)
}

// Authorization captures the credit being requested.
type Authorization struct {
	To     pda.Address
	Amount uint64
}

// Decision captures the policy response.
type Decision struct {
	Amount uint64
	Reason string
}

// CapPolicy approves credits up to a fixed number of lamports per request.
type CapPolicy struct {
	Max uint64
}

// Authorize rejects zero amounts and anything above the cap.
func (p CapPolicy) Authorize(_ context.Context, req Authorization) (Decision, error) {
	if req.Amount == 0 {
		return Decision{}, ErrInvalidAmount
	}
	if p.Max > 0 && req.Amount > p.Max {
		return Decision{}, fmt.Errorf("%w: requested %d, cap %d", ErrAboveCap, req.Amount, p.Max)
	}
	return Decision{Amount: req.Amount, Reason: "within cap"}, nil
}
