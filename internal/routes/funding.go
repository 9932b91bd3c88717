package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vaultkeep/vaultkeep/internal/funding"
)

// RegisterFundingRoutes wires the operator faucet behind the guard chain.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, guard ...fiber.Handler) {
	r.Post("/airdrop", append(append([]fiber.Handler{}, guard...), h.Airdrop)...)
}
