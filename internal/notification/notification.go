package notification

import (
	"context"
	"log/slog"
)

const (
	// KindOTP carries a one-time passcode to the account holder.
	KindOTP = "otp"
	// KindWelcome greets an account after its email is verified.
	KindWelcome = "welcome"
	// KindCompanyLinked confirms an account↔company association.
	KindCompanyLinked = "company_linked"
)

// Message describes an outbound notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems (email, WhatsApp).
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
// The stub API has no mail or messaging provider, so OTP codes surface in its log.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
