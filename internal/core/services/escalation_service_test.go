package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/mocks"
	"github.com/lorrc/support-engine/internal/core/ports"
	"github.com/lorrc/support-engine/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type escalationServiceMocks struct {
	repo       *mocks.MockTicketRepository
	matcher    *mocks.MockMatcher
	dispatcher *mocks.MockEventDispatcher
}

func newEscalationService() (*services.EscalationService, escalationServiceMocks) {
	m := escalationServiceMocks{
		repo:       mocks.NewMockTicketRepository(),
		matcher:    mocks.NewMockMatcher(),
		dispatcher: mocks.NewMockEventDispatcher(),
	}
	svc := services.NewEscalationService(m.repo, m.matcher, m.dispatcher, testLogger(), fixedClock())
	return svc, m
}

func TestEscalationService_Escalate(t *testing.T) {
	ctx := context.Background()

	t.Run("without target agent the assignee keeps its load", func(t *testing.T) {
		svc, m := newEscalationService()
		agentX := uuid.New()

		ticket := &domain.Ticket{
			ID:            1,
			Code:          "TK000001",
			Status:        domain.StatusAssigned,
			Priority:      domain.PriorityMedium,
			AssignedAgent: &agentX,
			CreatedAt:     testNow.Add(-30 * time.Minute),
			SLADueAt:      testNow.Add(210 * time.Minute),
		}

		m.repo.On("GetByID", ctx, int64(1)).Return(ticket, nil)
		m.repo.On("Update", ctx, mock.MatchedBy(func(updated *domain.Ticket) bool {
			// The HIGH window (60m) is shorter than the 210m still on the
			// clock, so the deadline must not move.
			return updated.Status == domain.StatusEscalated &&
				updated.Priority == domain.PriorityHigh &&
				updated.SLADueAt.Equal(testNow.Add(210*time.Minute)) &&
				updated.IsAssignedTo(agentX)
		})).Return(ticket, nil)
		m.dispatcher.On("TicketEscalated", ticket).Return()

		updated, err := svc.Escalate(ctx, ports.EscalateParams{
			TicketID: 1,
			Reason:   "customer called twice",
			Actor:    "supervisor-1",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.PriorityHigh, updated.Priority)
		assert.Equal(t, domain.StatusEscalated, updated.Status)
		require.Len(t, updated.EscalationHistory, 1)
		record := updated.EscalationHistory[0]
		assert.Equal(t, domain.PriorityMedium, record.PriorityBefore)
		assert.Equal(t, domain.PriorityHigh, record.PriorityAfter)
		assert.Equal(t, "supervisor-1", record.Actor)

		m.matcher.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
		m.matcher.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
		m.dispatcher.AssertExpectations(t)
	})

	t.Run("with target agent reassigns and swaps the load", func(t *testing.T) {
		svc, m := newEscalationService()
		agentX := uuid.New()
		agentY := uuid.New()

		ticket := &domain.Ticket{
			ID:            2,
			Code:          "TK000002",
			Status:        domain.StatusInProgress,
			Priority:      domain.PriorityHigh,
			AssignedAgent: &agentX,
		}

		m.repo.On("GetByID", ctx, int64(2)).Return(ticket, nil)
		m.matcher.On("Reserve", ctx, agentY).Return(&domain.Agent{ID: agentY, CurrentLoad: 1, Capacity: 3}, nil)
		m.repo.On("Update", ctx, mock.MatchedBy(func(updated *domain.Ticket) bool {
			return updated.Status == domain.StatusAssigned &&
				updated.Priority == domain.PriorityUrgent &&
				updated.IsAssignedTo(agentY)
		})).Return(ticket, nil)
		m.matcher.On("Release", ctx, agentX).Return(nil)
		m.dispatcher.On("TicketEscalated", ticket).Return()
		m.dispatcher.On("TicketAssigned", ticket).Return()

		_, err := svc.Escalate(ctx, ports.EscalateParams{
			TicketID:    2,
			Reason:      "needs a senior agent",
			Actor:       "supervisor-1",
			TargetAgent: &agentY,
		})

		require.NoError(t, err)
		m.matcher.AssertExpectations(t)
		m.dispatcher.AssertExpectations(t)
	})

	t.Run("full target agent aborts the escalation untouched", func(t *testing.T) {
		svc, m := newEscalationService()
		agentY := uuid.New()

		ticket := &domain.Ticket{
			ID:       3,
			Status:   domain.StatusOpen,
			Priority: domain.PriorityMedium,
			SLADueAt: testNow.Add(4 * time.Hour),
		}

		m.repo.On("GetByID", ctx, int64(3)).Return(ticket, nil)
		m.matcher.On("Reserve", ctx, agentY).Return(nil, apperrors.ErrCapacityExceeded)

		_, err := svc.Escalate(ctx, ports.EscalateParams{
			TicketID:    3,
			Reason:      "route to specialist",
			TargetAgent: &agentY,
		})

		require.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
		assert.Equal(t, domain.PriorityMedium, ticket.Priority)
		assert.Empty(t, ticket.EscalationHistory)
		m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		m.dispatcher.AssertNotCalled(t, "TicketEscalated", mock.Anything)
	})

	t.Run("critical priority is an idempotent ceiling", func(t *testing.T) {
		svc, m := newEscalationService()

		ticket := &domain.Ticket{
			ID:       4,
			Code:     "TK000004",
			Status:   domain.StatusEscalated,
			Priority: domain.PriorityCritical,
			SLADueAt: testNow.Add(-time.Minute),
		}

		m.repo.On("GetByID", ctx, int64(4)).Return(ticket, nil)
		m.repo.On("Update", ctx, mock.AnythingOfType("*domain.Ticket")).Return(ticket, nil)
		m.dispatcher.On("TicketEscalated", ticket).Return()

		updated, err := svc.Escalate(ctx, ports.EscalateParams{
			TicketID: 4,
			Reason:   "still waiting",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.PriorityCritical, updated.Priority)
		// SLA window is refreshed even at the ceiling.
		assert.Equal(t, testNow.Add(5*time.Minute), updated.SLADueAt)
		require.Len(t, updated.EscalationHistory, 1)
		assert.Equal(t, domain.PriorityCritical, updated.EscalationHistory[0].PriorityBefore)
		assert.Equal(t, domain.PriorityCritical, updated.EscalationHistory[0].PriorityAfter)
	})

	t.Run("missing reason is rejected", func(t *testing.T) {
		svc, m := newEscalationService()

		_, err := svc.Escalate(ctx, ports.EscalateParams{TicketID: 5})

		require.ErrorIs(t, err, apperrors.ErrReasonRequired)
		m.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("terminal ticket cannot be escalated", func(t *testing.T) {
		svc, m := newEscalationService()

		m.repo.On("GetByID", ctx, int64(6)).Return(&domain.Ticket{
			ID:     6,
			Status: domain.StatusClosed,
		}, nil)

		_, err := svc.Escalate(ctx, ports.EscalateParams{TicketID: 6, Reason: "reopen please"})

		require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		m.dispatcher.AssertNotCalled(t, "TicketEscalated", mock.Anything)
	})
}
