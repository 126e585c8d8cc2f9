package email

import (
	"context"
	"log/slog"

	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
)

// MockSMTPNotifier is a secondary adapter that mocks sending customer
// emails. It implements the ports.Notifier interface. Customer contact
// details live in an external CRM, so the mock logs the customer id it
// would resolve an address for.
type MockSMTPNotifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*MockSMTPNotifier)(nil)

// NewMockSMTPNotifier creates a new mock notifier.
func NewMockSMTPNotifier(logger *slog.Logger) ports.Notifier {
	return &MockSMTPNotifier{
		logger: logger.With("component", "email_notifier"),
	}
}

// Notify logs the notification to the console instead of sending an email.
func (n *MockSMTPNotifier) Notify(_ context.Context, ticket *domain.Ticket, subject, message string) {
	n.logger.Info("mock email sent",
		"to_customer", ticket.CustomerID,
		"ticket_code", ticket.Code,
		"subject", subject,
		"body", message,
	)
}
