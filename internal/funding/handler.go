package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vaultkeep/vaultkeep/internal/ledger"
	"github.com/vaultkeep/vaultkeep/internal/pda"
)

// Handler exposes the faucet over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Airdrop credits the requested account.
func (h *Handler) Airdrop(c *fiber.Ctx) error {
	var req AirdropRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	to, err := pda.ParseAddress(req.To)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid recipient address")
	}

	result, err := h.service.Airdrop(c.UserContext(), AirdropInput{To: to, Amount: req.Amount})
	if err != nil {
		switch {
		case errors.Is(err, ErrAboveCap), errors.Is(err, ledger.ErrBelowRentMinimum), errors.Is(err, ledger.ErrArithmeticOverflow):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidRecipient):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "airdrop failed")
		}
	}

	return c.Status(http.StatusOK).JSON(AirdropResponse{
		TransactionID: result.TransactionID,
		To:            result.To.String(),
		Amount:        result.Amount,
		Balance:       result.Balance,
	})
}
