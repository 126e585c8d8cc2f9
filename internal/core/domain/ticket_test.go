package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestNewTicket(t *testing.T) {
	customerID := uuid.New()

	t.Run("starts open with a fresh SLA window", func(t *testing.T) {
		ticket, err := domain.NewTicket(domain.TicketParams{
			Category:    domain.CategoryCardProblem,
			Priority:    domain.PriorityUrgent,
			Title:       "Card Problem",
			Description: "card swallowed by atm",
			CustomerID:  customerID,
		}, testNow)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusOpen, ticket.Status)
		assert.Equal(t, testNow.Add(15*time.Minute), ticket.SLADueAt)
		assert.Nil(t, ticket.AssignedAgent)
		assert.Nil(t, ticket.ResolvedAt)
	})

	t.Run("requires a customer", func(t *testing.T) {
		_, err := domain.NewTicket(domain.TicketParams{
			Priority: domain.PriorityLow,
		}, testNow)

		require.ErrorIs(t, err, apperrors.ErrCustomerRequired)
	})

	t.Run("rejects unknown priorities", func(t *testing.T) {
		_, err := domain.NewTicket(domain.TicketParams{
			Priority:   domain.TicketPriority("SEVERE"),
			CustomerID: customerID,
		}, testNow)

		require.ErrorIs(t, err, apperrors.ErrInvalidPriority)
	})
}

func TestTicketCode(t *testing.T) {
	assert.Equal(t, "TK000001", domain.TicketCode(1))
	assert.Equal(t, "TK004711", domain.TicketCode(4711))
	assert.Equal(t, "TK1000000", domain.TicketCode(1000000))
}

func TestTicket_TransitionTo(t *testing.T) {
	allStatuses := []domain.TicketStatus{
		domain.StatusOpen, domain.StatusAssigned, domain.StatusInProgress,
		domain.StatusWaitingCustomer, domain.StatusEscalated,
		domain.StatusResolved, domain.StatusClosed,
	}

	allowed := map[domain.TicketStatus][]domain.TicketStatus{
		domain.StatusOpen:            {domain.StatusAssigned, domain.StatusEscalated},
		domain.StatusAssigned:        {domain.StatusInProgress, domain.StatusEscalated},
		domain.StatusInProgress:      {domain.StatusWaitingCustomer, domain.StatusResolved, domain.StatusEscalated},
		domain.StatusWaitingCustomer: {domain.StatusInProgress, domain.StatusEscalated},
		domain.StatusEscalated:       {domain.StatusAssigned, domain.StatusInProgress},
		domain.StatusResolved:        {domain.StatusClosed, domain.StatusInProgress},
		domain.StatusClosed:          {},
	}

	isAllowed := func(from, to domain.TicketStatus) bool {
		for _, next := range allowed[from] {
			if next == to {
				return true
			}
		}
		return false
	}

	t.Run("every disallowed pair leaves the ticket unchanged", func(t *testing.T) {
		for _, from := range allStatuses {
			for _, to := range allStatuses {
				if isAllowed(from, to) {
					continue
				}

				resolvedAt := testNow.Add(-time.Hour)
				ticket := &domain.Ticket{
					Status:     from,
					Priority:   domain.PriorityMedium,
					ResolvedAt: &resolvedAt,
					Resolution: "notes",
				}

				err := ticket.TransitionTo(to, testNow)

				require.ErrorIs(t, err, apperrors.ErrInvalidTransition, "%s -> %s", from, to)
				assert.Equal(t, from, ticket.Status, "%s -> %s", from, to)
				assert.Equal(t, &resolvedAt, ticket.ResolvedAt, "%s -> %s", from, to)
			}
		}
	})

	t.Run("every allowed pair succeeds", func(t *testing.T) {
		for _, from := range allStatuses {
			for _, to := range allowed[from] {
				ticket := &domain.Ticket{Status: from, Priority: domain.PriorityMedium}

				err := ticket.TransitionTo(to, testNow)

				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, ticket.Status)
			}
		}
	})

	t.Run("resolving stamps the timestamp", func(t *testing.T) {
		ticket := &domain.Ticket{Status: domain.StatusInProgress}

		require.NoError(t, ticket.TransitionTo(domain.StatusResolved, testNow))

		require.NotNil(t, ticket.ResolvedAt)
		assert.Equal(t, testNow, *ticket.ResolvedAt)
	})

	t.Run("reopening clears resolution state", func(t *testing.T) {
		resolvedAt := testNow.Add(-time.Hour)
		ticket := &domain.Ticket{
			Status:     domain.StatusResolved,
			ResolvedAt: &resolvedAt,
			Resolution: "rebooted the card",
		}

		require.NoError(t, ticket.TransitionTo(domain.StatusInProgress, testNow))

		assert.Nil(t, ticket.ResolvedAt)
		assert.Empty(t, ticket.Resolution)
	})

	t.Run("unknown status is rejected before the table lookup", func(t *testing.T) {
		ticket := &domain.Ticket{Status: domain.StatusOpen}

		err := ticket.TransitionTo(domain.TicketStatus("ARCHIVED"), testNow)

		require.ErrorIs(t, err, apperrors.ErrInvalidStatus)
		assert.Equal(t, domain.StatusOpen, ticket.Status)
	})
}

func TestTicketPriority_Next(t *testing.T) {
	ladder := map[domain.TicketPriority]domain.TicketPriority{
		domain.PriorityLow:      domain.PriorityMedium,
		domain.PriorityMedium:   domain.PriorityHigh,
		domain.PriorityHigh:     domain.PriorityUrgent,
		domain.PriorityUrgent:   domain.PriorityCritical,
		domain.PriorityCritical: domain.PriorityCritical,
	}

	for from, want := range ladder {
		assert.Equal(t, want, from.Next(), "next of %s", from)
	}
}

func TestTicket_RecordEscalation(t *testing.T) {
	t.Run("bumps priority and refreshes the SLA from now", func(t *testing.T) {
		ticket := &domain.Ticket{
			Status:    domain.StatusAssigned,
			Priority:  domain.PriorityMedium,
			CreatedAt: testNow.Add(-3 * time.Hour),
			SLADueAt:  testNow.Add(time.Hour),
		}

		record := ticket.RecordEscalation("no response", "system", testNow)

		assert.Equal(t, domain.PriorityHigh, ticket.Priority)
		assert.Equal(t, testNow.Add(60*time.Minute), ticket.SLADueAt)
		assert.Equal(t, domain.PriorityMedium, record.PriorityBefore)
		assert.Equal(t, domain.PriorityHigh, record.PriorityAfter)
		require.Len(t, ticket.EscalationHistory, 1)
	})

	t.Run("history is append-only across repeated escalations", func(t *testing.T) {
		ticket := &domain.Ticket{
			Status:   domain.StatusAssigned,
			Priority: domain.PriorityHigh,
			SLADueAt: testNow.Add(time.Hour),
		}

		ticket.RecordEscalation("first", "a", testNow)
		ticket.RecordEscalation("second", "b", testNow.Add(time.Minute))

		require.Len(t, ticket.EscalationHistory, 2)
		assert.Equal(t, "first", ticket.EscalationHistory[0].Reason)
		assert.Equal(t, "second", ticket.EscalationHistory[1].Reason)
		assert.Equal(t, domain.PriorityCritical, ticket.Priority)
	})

	t.Run("young ticket keeps its longer deadline", func(t *testing.T) {
		// A LOW ticket created moments ago still has nearly its full day;
		// bumping to MEDIUM (240m window) must not shrink the time left.
		ticket := &domain.Ticket{
			Status:    domain.StatusOpen,
			Priority:  domain.PriorityLow,
			CreatedAt: testNow.Add(-10 * time.Minute),
			SLADueAt:  testNow.Add(1430 * time.Minute),
		}

		ticket.RecordEscalation("slow queue", "system", testNow)

		assert.Equal(t, domain.PriorityMedium, ticket.Priority)
		assert.Equal(t, testNow.Add(1430*time.Minute), ticket.SLADueAt)
	})

	t.Run("stale ticket is granted the fresh window", func(t *testing.T) {
		ticket := &domain.Ticket{
			Status:   domain.StatusOpen,
			Priority: domain.PriorityLow,
			SLADueAt: testNow.Add(-2 * time.Hour),
		}

		ticket.RecordEscalation("breached", "system", testNow)

		assert.Equal(t, testNow.Add(240*time.Minute), ticket.SLADueAt)
	})

	t.Run("never shortens the window relative to escalation time", func(t *testing.T) {
		priorities := []domain.TicketPriority{
			domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh,
			domain.PriorityUrgent, domain.PriorityCritical,
		}

		for _, priority := range priorities {
			ticket := &domain.Ticket{
				Status:   domain.StatusOpen,
				Priority: priority,
				SLADueAt: testNow,
			}

			ticket.RecordEscalation("check", "system", testNow)

			assert.False(t, ticket.SLADueAt.Before(testNow), "priority %s", priority)
		}
	})
}

func TestTicketStatus_IsTerminal(t *testing.T) {
	assert.True(t, domain.StatusResolved.IsTerminal())
	assert.True(t, domain.StatusClosed.IsTerminal())
	assert.False(t, domain.StatusOpen.IsTerminal())
	assert.False(t, domain.StatusEscalated.IsTerminal())
}
