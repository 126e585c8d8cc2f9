package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
)

// CreateTicketParams defines the input for creating a ticket from an
// escalated conversation. Category and Priority are optional: when absent
// they are derived from the description by the signal extractor.
type CreateTicketParams struct {
	Description string
	Category    string
	Priority    domain.TicketPriority
	CustomerID  uuid.UUID
	HighUrgency bool
}

// AssignTicketParams defines the input for an explicit assignment.
type AssignTicketParams struct {
	TicketID int64
	AgentID  uuid.UUID
}

// UpdateStatusParams defines the input for changing a ticket's status.
type UpdateStatusParams struct {
	TicketID        int64
	Status          domain.TicketStatus
	ResolutionNotes string
}

// ChangePriorityParams defines the input for an explicit priority change.
type ChangePriorityParams struct {
	TicketID int64
	Priority domain.TicketPriority
}

// EscalateParams defines the input for an escalation. TargetAgent is
// optional: without it the ticket stays ESCALATED until explicitly assigned.
type EscalateParams struct {
	TicketID    int64
	Reason      string
	Actor       string
	TargetAgent *uuid.UUID
}

// ListTicketsParams defines the input for queue views.
type ListTicketsParams struct {
	Status     *string
	Priority   *string
	AgentID    *uuid.UUID
	Unassigned bool
	Limit      int
	Offset     int
}

// TicketWithSLA bundles a ticket with its current SLA standing for reads.
type TicketWithSLA struct {
	Ticket *domain.Ticket
	SLA    domain.SLAReport
}

// TicketService defines the inbound trigger operations of the engine.
// Assignment may legitimately find no eligible agent: the ticket stays OPEN
// and unassigned, which is a normal outcome, not an error.
type TicketService interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64) (*TicketWithSLA, error)
	AssignTicket(ctx context.Context, params AssignTicketParams) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*domain.Ticket, error)
	ChangePriority(ctx context.Context, params ChangePriorityParams) (*domain.Ticket, error)
	ListTickets(ctx context.Context, params ListTicketsParams) ([]*domain.Ticket, error)
	ListOverdue(ctx context.Context) ([]*TicketWithSLA, error)
}

// EscalationService raises ticket priority, refreshes the SLA window and
// optionally forces reassignment.
type EscalationService interface {
	Escalate(ctx context.Context, params EscalateParams) (*domain.Ticket, error)
}

// PostMessageParams defines the input for posting to a ticket thread.
type PostMessageParams struct {
	TicketID int64
	AuthorID uuid.UUID
	Body     string
}

// MessageService manages ticket conversation threads. Every posted message
// is broadcast to all connected consoles as a new_message event.
type MessageService interface {
	PostMessage(ctx context.Context, params PostMessageParams) (*domain.Message, error)
	ListMessages(ctx context.Context, ticketID int64) ([]*domain.Message, error)
}

// Matcher selects and reserves agent capacity. Implementations must
// guarantee that concurrent reservations never oversubscribe an agent.
type Matcher interface {
	// AssignBest scores every eligible agent against the ticket and reserves
	// one unit of the winner's capacity. A nil agent with a nil error means
	// no agent qualified.
	AssignBest(ctx context.Context, ticket *domain.Ticket) (*domain.Agent, error)
	// Reserve takes one unit of a specific agent's capacity.
	Reserve(ctx context.Context, agentID uuid.UUID) (*domain.Agent, error)
	// Release returns one unit of a specific agent's capacity.
	Release(ctx context.Context, agentID uuid.UUID) error
}

// NotificationGateway is the fan-out port to connected operator consoles.
// Delivery is best-effort: failures are absorbed by the gateway's own
// registry and never surfaced to the caller of the triggering mutation.
type NotificationGateway interface {
	SendToUser(userID uuid.UUID, event domain.Event)
	SendToRole(role domain.Role, event domain.Event)
	Broadcast(event domain.Event)
}

// EventDispatcher translates committed mutations into notification fan-out.
type EventDispatcher interface {
	TicketCreated(ticket *domain.Ticket)
	TicketAssigned(ticket *domain.Ticket)
	TicketStatusChanged(ticket *domain.Ticket)
	TicketEscalated(ticket *domain.Ticket)
	NewMessage(message domain.MessageSnapshot)
}

// Notifier is the port for out-of-band notifications to customers
// (email-style, mocked in development).
type Notifier interface {
	Notify(ctx context.Context, ticket *domain.Ticket, subject, message string)
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
