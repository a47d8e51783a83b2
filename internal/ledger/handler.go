package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes wallet ledger endpoints. All routes require an
// authenticated user; the caller's wallet is resolved from the user id the
// auth middleware stashed in locals, never from request input.
type Handler struct {
	engine *Engine
	store  Store
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(engine *Engine, store Store) *Handler {
	return &Handler{engine: engine, store: store}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	RecipientEmail string          `json:"recipient_email"`
	Amount         decimal.Decimal `json:"amount"`
}

type walletResponse struct {
	ID        string    `json:"id"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWalletResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		Balance:   w.Balance.StringFixed(2),
		Currency:  w.Currency,
		UpdatedAt: w.UpdatedAt.UTC(),
	}
}

// Me returns the authenticated user's wallet and current balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

// Deposit credits the authenticated user's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	updated, err := h.engine.Deposit(c.UserContext(), w.ID, req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(updated))
}

// Withdraw debits the authenticated user's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	updated, err := h.engine.Withdraw(c.UserContext(), w.ID, req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(updated))
}

// Transfer moves funds from the authenticated user's wallet to the wallet
// owned by the recipient email.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.RecipientEmail == "" {
		return fiber.NewError(http.StatusBadRequest, "recipient_email is required")
	}
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	updated, err := h.engine.Transfer(c.UserContext(), w.ID, req.RecipientEmail, req.Amount)
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(updated))
}

// History lists the authenticated user's ledger entries, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	entries, err := h.engine.History(c.UserContext(), w.ID)
	if err != nil {
		return mapLedgerError(err)
	}
	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		item := fiber.Map{
			"id":          e.ID,
			"kind":        e.Kind,
			"amount":      e.Amount.StringFixed(2),
			"description": e.Description,
			"status":      e.Status,
			"created_at":  e.CreatedAt,
		}
		if e.Direction != "" {
			item["direction"] = e.Direction
		}
		if e.TransferRef != "" {
			item["transfer_ref"] = e.TransferRef
		}
		out = append(out, item)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallet_id": w.ID, "transactions": out})
}

func (h *Handler) callerWallet(c *fiber.Ctx) (Wallet, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return Wallet{}, fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.store.WalletByOwner(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return Wallet{}, fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return Wallet{}, fiber.NewError(http.StatusServiceUnavailable, "wallet lookup failed")
	}
	return w, nil
}

func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, ErrInvalidAmount.Error())
	case errors.Is(err, ErrSelfTransfer):
		return fiber.NewError(http.StatusBadRequest, ErrSelfTransfer.Error())
	case errors.Is(err, ErrInsufficientBalance):
		return fiber.NewError(http.StatusUnprocessableEntity, ErrInsufficientBalance.Error())
	case errors.Is(err, ErrCurrencyMismatch):
		return fiber.NewError(http.StatusUnprocessableEntity, ErrCurrencyMismatch.Error())
	case errors.Is(err, ErrRecipientNotFound):
		return fiber.NewError(http.StatusNotFound, ErrRecipientNotFound.Error())
	case errors.Is(err, ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, ErrWalletNotFound.Error())
	case errors.Is(err, ErrStoreUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "ledger temporarily unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
