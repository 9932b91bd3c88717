package vault

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vaultkeep/vaultkeep/internal/auth"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// Handler exposes vault HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a vault HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type instructionRequest struct {
	Owner      string `json:"owner"`
	VaultState string `json:"vault_state"`
	Vault      string `json:"vault"`
	Amount     uint64 `json:"amount"`
}

type instructionResponse struct {
	TransactionID string    `json:"transaction_id"`
	Owner         string    `json:"owner"`
	VaultState    string    `json:"vault_state"`
	Vault         string    `json:"vault"`
	Amount        uint64    `json:"amount"`
	VaultBalance  uint64    `json:"vault_balance"`
	Refunded      uint64    `json:"refunded,omitempty"`
	CommittedAt   time.Time `json:"committed_at"`
}

type viewResponse struct {
	Owner          string `json:"owner"`
	VaultState     string `json:"vault_state"`
	Vault          string `json:"vault"`
	VaultBump      uint8  `json:"vault_bump"`
	StateBump      uint8  `json:"state_bump"`
	Balance        uint64 `json:"balance"`
	MinimumBalance uint64 `json:"minimum_balance"`
	Withdrawable   uint64 `json:"withdrawable"`
	StateDeposit   uint64 `json:"state_deposit"`
}

// Init handles POST /vaults/init.
func (h *Handler) Init(c *fiber.Ctx) error {
	return h.instruction(c, http.StatusCreated, h.service.Init)
}

// Deposit handles POST /vaults/deposit.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.instruction(c, http.StatusOK, h.service.Deposit)
}

// Withdraw handles POST /vaults/withdraw.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.instruction(c, http.StatusOK, h.service.Withdraw)
}

// Close handles POST /vaults/close.
func (h *Handler) Close(c *fiber.Ctx) error {
	return h.instruction(c, http.StatusOK, h.service.Close)
}

// Get returns the committed state of an owner's vault.
func (h *Handler) Get(c *fiber.Ctx) error {
	owner, err := pda.ParseAddress(c.Params("owner"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid owner address")
	}
	view, err := h.service.Describe(c.UserContext(), owner)
	if err != nil {
		return StatusError(err)
	}
	return c.Status(http.StatusOK).JSON(viewResponse{
		Owner:          view.Accounts.Owner.String(),
		VaultState:     view.Accounts.VaultState.String(),
		Vault:          view.Accounts.Vault.String(),
		VaultBump:      view.State.VaultBump,
		StateBump:      view.State.StateBump,
		Balance:        view.Balance,
		MinimumBalance: view.MinimumBalance,
		Withdrawable:   view.Withdrawable,
		StateDeposit:   view.StateDeposit,
	})
}

func (h *Handler) instruction(c *fiber.Ctx, status int, op func(context.Context, Input) (Result, error)) error {
	caller, ok := c.Locals(auth.SignerLocal).(pda.Address)
	if !ok || caller.IsZero() {
		return fiber.NewError(http.StatusUnauthorized, "missing request signature")
	}

	var req instructionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	in := Input{Caller: caller, Amount: req.Amount}
	in.Accounts.Owner = caller
	for _, field := range []struct {
		name string
		raw  string
		dst  *pda.Address
	}{
		{"owner", req.Owner, &in.Accounts.Owner},
		{"vault_state", req.VaultState, &in.Accounts.VaultState},
		{"vault", req.Vault, &in.Accounts.Vault},
	} {
		if field.raw == "" {
			continue
		}
		addr, err := pda.ParseAddress(field.raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid "+field.name+" address")
		}
		*field.dst = addr
	}

	result, err := op(c.UserContext(), in)
	if err != nil {
		return StatusError(err)
	}
	return c.Status(status).JSON(instructionResponse{
		TransactionID: result.TransactionID,
		Owner:         result.Accounts.Owner.String(),
		VaultState:    result.Accounts.VaultState.String(),
		Vault:         result.Accounts.Vault.String(),
		Amount:        result.Amount,
		VaultBalance:  result.VaultBalance,
		Refunded:      result.Refunded,
		CommittedAt:   result.CommittedAt,
	})
}

// StatusError maps a vault failure onto the HTTP error returned to clients.
func StatusError(err error) *fiber.Error {
	switch {
	case errors.Is(err, ErrDerivationMismatch), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidAccountData):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "vault operation failed")
	}
}
