package services

import (
	"log/slog"

	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
)

// DispatcherService maps committed ticket mutations to notification events
// and fans them out through the gateway. Callers invoke it only after the
// triggering mutation has been persisted, so a notification never describes
// a state that failed to commit.
type DispatcherService struct {
	gateway ports.NotificationGateway
	logger  *slog.Logger
	clock   ports.Clock
}

var _ ports.EventDispatcher = (*DispatcherService)(nil)

// NewDispatcherService creates a new dispatcher.
func NewDispatcherService(gateway ports.NotificationGateway, logger *slog.Logger, clock ports.Clock) *DispatcherService {
	return &DispatcherService{
		gateway: gateway,
		logger:  logger,
		clock:   clock,
	}
}

// TicketCreated notifies supervisors and admins of a newly opened ticket.
func (s *DispatcherService) TicketCreated(ticket *domain.Ticket) {
	event := domain.NewEvent(domain.EventTicketCreated, domain.NewTicketSnapshot(ticket), s.clock())
	s.gateway.SendToRole(domain.RoleAdmin, event)
	s.gateway.SendToRole(domain.RoleSupervisor, event)
	s.logger.Debug("dispatched ticket_created", slog.String("ticket_code", ticket.Code))
}

// TicketAssigned notifies the assigned agent directly plus supervisors and
// admins.
func (s *DispatcherService) TicketAssigned(ticket *domain.Ticket) {
	event := domain.NewEvent(domain.EventTicketAssigned, domain.NewTicketSnapshot(ticket), s.clock())
	if ticket.AssignedAgent != nil {
		s.gateway.SendToUser(*ticket.AssignedAgent, event)
	}
	s.gateway.SendToRole(domain.RoleAdmin, event)
	s.gateway.SendToRole(domain.RoleSupervisor, event)
	s.logger.Debug("dispatched ticket_assigned", slog.String("ticket_code", ticket.Code))
}

// TicketStatusChanged notifies the assigned agent, if any, plus supervisors
// and admins.
func (s *DispatcherService) TicketStatusChanged(ticket *domain.Ticket) {
	event := domain.NewEvent(domain.EventTicketStatusChanged, domain.NewTicketSnapshot(ticket), s.clock())
	if ticket.AssignedAgent != nil {
		s.gateway.SendToUser(*ticket.AssignedAgent, event)
	}
	s.gateway.SendToRole(domain.RoleAdmin, event)
	s.gateway.SendToRole(domain.RoleSupervisor, event)
	s.logger.Debug("dispatched ticket_status_changed",
		slog.String("ticket_code", ticket.Code),
		slog.String("status", string(ticket.Status)))
}

// TicketEscalated notifies every operator role so escalations are never
// missed.
func (s *DispatcherService) TicketEscalated(ticket *domain.Ticket) {
	event := domain.NewEvent(domain.EventTicketEscalated, domain.NewTicketSnapshot(ticket), s.clock())
	s.gateway.SendToRole(domain.RoleAdmin, event)
	s.gateway.SendToRole(domain.RoleSupervisor, event)
	s.gateway.SendToRole(domain.RoleAgent, event)
	s.logger.Debug("dispatched ticket_escalated",
		slog.String("ticket_code", ticket.Code),
		slog.String("priority", string(ticket.Priority)))
}

// NewMessage broadcasts a new customer message to every connected client.
func (s *DispatcherService) NewMessage(message domain.MessageSnapshot) {
	event := domain.NewEvent(domain.EventNewMessage, message, s.clock())
	s.gateway.Broadcast(event)
}
