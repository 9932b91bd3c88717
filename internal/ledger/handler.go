package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// Handler exposes read-only account lookups.
type Handler struct {
	ledger Ledger
}

// NewHandler builds an account lookup handler.
func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

type accountResponse struct {
	Address        string `json:"address"`
	Lamports       uint64 `json:"lamports"`
	Owner          string `json:"owner"`
	Data           []byte `json:"data,omitempty"`
	DataLen        int    `json:"data_len"`
	MinimumBalance uint64 `json:"minimum_balance"`
}

// Account returns the committed state of one address.
func (h *Handler) Account(c *fiber.Ctx) error {
	addr, err := pda.ParseAddress(c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid address")
	}
	acc, err := h.ledger.Account(c.UserContext(), addr)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, "account lookup failed")
	}
	return c.Status(http.StatusOK).JSON(accountResponse{
		Address:        acc.Address.String(),
		Lamports:       acc.Lamports,
		Owner:          acc.Owner.String(),
		Data:           acc.Data,
		DataLen:        len(acc.Data),
		MinimumBalance: h.ledger.Rent().MinimumBalance(len(acc.Data)),
	})
}
