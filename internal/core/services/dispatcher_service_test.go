package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/mocks"
	"github.com/lorrc/support-engine/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func eventOfType(eventType domain.EventType) interface{} {
	return mock.MatchedBy(func(event domain.Event) bool {
		return event.Type == eventType && event.Timestamp.Equal(testNow)
	})
}

func TestDispatcherService_FanOut(t *testing.T) {
	agentID := uuid.New()

	t.Run("ticket created goes to admins and supervisors", func(t *testing.T) {
		gateway := mocks.NewMockNotificationGateway()
		dispatcher := services.NewDispatcherService(gateway, testLogger(), fixedClock())

		gateway.On("SendToRole", domain.RoleAdmin, eventOfType(domain.EventTicketCreated)).Return()
		gateway.On("SendToRole", domain.RoleSupervisor, eventOfType(domain.EventTicketCreated)).Return()

		dispatcher.TicketCreated(&domain.Ticket{ID: 1, Code: "TK000001"})

		gateway.AssertExpectations(t)
		gateway.AssertNotCalled(t, "SendToRole", domain.RoleAgent, mock.Anything)
		gateway.AssertNotCalled(t, "Broadcast", mock.Anything)
	})

	t.Run("ticket assigned also reaches the assignee directly", func(t *testing.T) {
		gateway := mocks.NewMockNotificationGateway()
		dispatcher := services.NewDispatcherService(gateway, testLogger(), fixedClock())

		gateway.On("SendToUser", agentID, eventOfType(domain.EventTicketAssigned)).Return()
		gateway.On("SendToRole", domain.RoleAdmin, eventOfType(domain.EventTicketAssigned)).Return()
		gateway.On("SendToRole", domain.RoleSupervisor, eventOfType(domain.EventTicketAssigned)).Return()

		dispatcher.TicketAssigned(&domain.Ticket{ID: 2, Code: "TK000002", AssignedAgent: &agentID})

		gateway.AssertExpectations(t)
	})

	t.Run("status change on an unassigned ticket skips the user send", func(t *testing.T) {
		gateway := mocks.NewMockNotificationGateway()
		dispatcher := services.NewDispatcherService(gateway, testLogger(), fixedClock())

		gateway.On("SendToRole", domain.RoleAdmin, eventOfType(domain.EventTicketStatusChanged)).Return()
		gateway.On("SendToRole", domain.RoleSupervisor, eventOfType(domain.EventTicketStatusChanged)).Return()

		dispatcher.TicketStatusChanged(&domain.Ticket{ID: 3, Code: "TK000003"})

		gateway.AssertExpectations(t)
		gateway.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything)
	})

	t.Run("escalation reaches every operator role", func(t *testing.T) {
		gateway := mocks.NewMockNotificationGateway()
		dispatcher := services.NewDispatcherService(gateway, testLogger(), fixedClock())

		gateway.On("SendToRole", domain.RoleAdmin, eventOfType(domain.EventTicketEscalated)).Return()
		gateway.On("SendToRole", domain.RoleSupervisor, eventOfType(domain.EventTicketEscalated)).Return()
		gateway.On("SendToRole", domain.RoleAgent, eventOfType(domain.EventTicketEscalated)).Return()

		dispatcher.TicketEscalated(&domain.Ticket{ID: 4, Code: "TK000004", Priority: domain.PriorityCritical})

		gateway.AssertExpectations(t)
	})

	t.Run("new message is broadcast", func(t *testing.T) {
		gateway := mocks.NewMockNotificationGateway()
		dispatcher := services.NewDispatcherService(gateway, testLogger(), fixedClock())

		gateway.On("Broadcast", eventOfType(domain.EventNewMessage)).Return()

		dispatcher.NewMessage(domain.MessageSnapshot{TicketID: 5, Body: "any update?"})

		gateway.AssertExpectations(t)
	})

	t.Run("snapshot carries the wire shape of the ticket", func(t *testing.T) {
		gateway := mocks.NewMockNotificationGateway()
		dispatcher := services.NewDispatcherService(gateway, testLogger(), fixedClock())

		var captured domain.Event
		gateway.On("SendToRole", domain.RoleAdmin, mock.AnythingOfType("domain.Event")).
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(domain.Event)
			}).Return()
		gateway.On("SendToRole", domain.RoleSupervisor, mock.AnythingOfType("domain.Event")).Return()

		dispatcher.TicketCreated(&domain.Ticket{
			ID:       6,
			Code:     "TK000006",
			Status:   domain.StatusOpen,
			Priority: domain.PriorityCritical,
			Category: domain.CategoryFraudReport,
		})

		snapshot, ok := captured.Data.(domain.TicketSnapshot)
		assert.True(t, ok)
		assert.Equal(t, "TK000006", snapshot.Code)
		assert.Equal(t, string(domain.PriorityCritical), snapshot.Priority)
	})
}
