package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/wallet_engine/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints. limiter guards mutations only.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, limiter fiber.Handler) {
	r.Get("/:id", h.Balance)
	r.Get("/:id/transactions", h.Transactions)
	r.Get("/:id/owner", h.Owner)
	r.Post("/:id/deposit", limiter, h.Deposit)
	r.Post("/:id/withdraw", limiter, h.Withdraw)
}
