package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vaultkeep/vaultkeep/internal/ledger"
	"github.com/vaultkeep/vaultkeep/internal/vault"
)

// RegisterVaultRoutes wires the signed vault instructions and read endpoints.
func RegisterVaultRoutes(r fiber.Router, h *vault.Handler, accounts *ledger.Handler, signed ...fiber.Handler) {
	signedRoute := func(next fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, signed...), next)
	}
	r.Post("/vaults/init", signedRoute(h.Init)...)
	r.Post("/vaults/deposit", signedRoute(h.Deposit)...)
	r.Post("/vaults/withdraw", signedRoute(h.Withdraw)...)
	r.Post("/vaults/close", signedRoute(h.Close)...)

	r.Get("/vaults/:owner", h.Get)
	r.Get("/accounts/:address", accounts.Account)
}
