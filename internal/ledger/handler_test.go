package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

// testApp wires the handler behind a middleware that plants the caller's
// user id, the way the auth middleware does in production.
func testApp(t *testing.T, store *MemoryStore, dir Directory, userID string) *fiber.App {
	t.Helper()
	h := NewHandler(NewEngine(store, dir, nil), store)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	app.Get("/wallet", h.Me)
	app.Post("/wallet/deposit", h.Deposit)
	app.Post("/wallet/withdraw", h.Withdraw)
	app.Post("/wallet/transfer", h.Transfer)
	app.Get("/wallet/transactions", h.History)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()
	payload := map[string]any{}
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &payload)
	return resp.StatusCode, payload
}

func TestHandlerDepositUpdatesBalance(t *testing.T) {
	store := NewMemoryStore()
	w := newWallet(t, store, "USD")
	app := testApp(t, store, stubDirectory{}, w.OwnerID)

	status, body := postJSON(t, app, "/wallet/deposit", fiber.Map{"amount": "50.00"})
	if status != fiber.StatusOK {
		t.Fatalf("deposit status %d", status)
	}
	if body["balance"] != "50.00" {
		t.Fatalf("expected balance 50.00, got %v", body["balance"])
	}
	if body["currency"] != "USD" {
		t.Fatalf("expected currency USD, got %v", body["currency"])
	}
}

func TestHandlerWithdrawInsufficientBalance(t *testing.T) {
	store := NewMemoryStore()
	w := newWallet(t, store, "USD")
	SeedBalance(store, w.ID, dec("100.00"))
	app := testApp(t, store, stubDirectory{}, w.OwnerID)

	status, _ := postJSON(t, app, "/wallet/withdraw", fiber.Map{"amount": "150.00"})
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}

	// Balance untouched by the rejected withdrawal.
	status, body := postJSON(t, app, "/wallet/withdraw", fiber.Map{"amount": "100.00"})
	if status != fiber.StatusOK {
		t.Fatalf("second withdraw status %d", status)
	}
	if body["balance"] != "0.00" {
		t.Fatalf("expected balance 0.00, got %v", body["balance"])
	}
}

func TestHandlerInvalidAmountRejected(t *testing.T) {
	store := NewMemoryStore()
	w := newWallet(t, store, "USD")
	app := testApp(t, store, stubDirectory{}, w.OwnerID)

	status, _ := postJSON(t, app, "/wallet/deposit", fiber.Map{"amount": "-5.00"})
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestHandlerTransferEndToEnd(t *testing.T) {
	store := NewMemoryStore()
	sender := newWallet(t, store, "USD")
	recipient := newWallet(t, store, "USD")
	SeedBalance(store, sender.ID, dec("100.00"))
	dir := stubDirectory{byEmail: map[string]string{"friend@example.com": recipient.ID}}
	app := testApp(t, store, dir, sender.OwnerID)

	status, body := postJSON(t, app, "/wallet/transfer", fiber.Map{
		"recipient_email": "friend@example.com",
		"amount":          "40.00",
	})
	if status != fiber.StatusOK {
		t.Fatalf("transfer status %d: %v", status, body)
	}
	if body["balance"] != "60.00" {
		t.Fatalf("expected sender balance 60.00, got %v", body["balance"])
	}

	got, _ := store.WalletByID(context.Background(), recipient.ID)
	if !got.Balance.Equal(dec("40.00")) {
		t.Fatalf("recipient balance %s", got.Balance)
	}
}

func TestHandlerTransferUnknownRecipient(t *testing.T) {
	store := NewMemoryStore()
	sender := newWallet(t, store, "USD")
	SeedBalance(store, sender.ID, dec("100.00"))
	app := testApp(t, store, stubDirectory{byEmail: map[string]string{}}, sender.OwnerID)

	status, _ := postJSON(t, app, "/wallet/transfer", fiber.Map{
		"recipient_email": "nobody@example.com",
		"amount":          "40.00",
	})
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestHandlerTransferRequiresRecipient(t *testing.T) {
	store := NewMemoryStore()
	sender := newWallet(t, store, "USD")
	app := testApp(t, store, stubDirectory{}, sender.OwnerID)

	status, _ := postJSON(t, app, "/wallet/transfer", fiber.Map{"amount": "40.00"})
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestHandlerHistoryShape(t *testing.T) {
	store := NewMemoryStore()
	w := newWallet(t, store, "USD")
	app := testApp(t, store, stubDirectory{}, w.OwnerID)

	if status, _ := postJSON(t, app, "/wallet/deposit", fiber.Map{"amount": "30.00"}); status != fiber.StatusOK {
		t.Fatalf("seed deposit status %d", status)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/wallet/transactions", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("history status %d", resp.StatusCode)
	}

	var payload struct {
		WalletID     string `json:"wallet_id"`
		Transactions []struct {
			Kind   string `json:"kind"`
			Amount string `json:"amount"`
			Status string `json:"status"`
		} `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if payload.WalletID != w.ID {
		t.Fatalf("wallet id %q", payload.WalletID)
	}
	if len(payload.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(payload.Transactions))
	}
	tx := payload.Transactions[0]
	if tx.Kind != KindDeposit || tx.Amount != "30.00" || tx.Status != StatusCompleted {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestHandlerRejectsMissingIdentity(t *testing.T) {
	store := NewMemoryStore()
	app := testApp(t, store, stubDirectory{}, "")

	req := httptest.NewRequest(fiber.MethodGet, "/wallet", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
