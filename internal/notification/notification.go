package notification

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

const (
	// KindTransferCompleted announces a committed wallet-to-wallet transfer.
	KindTransferCompleted = "transfer_completed"
)

// Message describes a notification payload.
type Message struct {
	Kind      string
	Recipient string
	Amount    decimal.Decimal
	Currency  string
	Body      string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a sink that writes notifications to the structured logger.
// It backs development mode and tests.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"recipient", message.Recipient,
		"amount", message.Amount.String(),
		"currency", message.Currency,
	)
	return nil
}
