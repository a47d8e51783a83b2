package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kasa-pay/kasa_pay/internal/ledger"
)

// RegisterWalletRoutes wires the ledger endpoints. The extra middlewares
// (rate limit, idempotency) gate the mutating routes; reads skip them.
func RegisterWalletRoutes(r fiber.Router, h *ledger.Handler, mws ...fiber.Handler) {
	r.Get("/wallet", h.Me)
	r.Get("/wallet/transactions", h.History)

	r.Post("/wallet/deposit", chain(mws, h.Deposit)...)
	r.Post("/wallet/withdraw", chain(mws, h.Withdraw)...)
	r.Post("/wallet/transfer", chain(mws, h.Transfer)...)
}

func chain(mws []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mws)+1)
	out = append(out, mws...)
	return append(out, h)
}
