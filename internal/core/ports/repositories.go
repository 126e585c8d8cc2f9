package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
)

// ListTicketsRepoParams defines the filters for ticket queue queries.
type ListTicketsRepoParams struct {
	Status     *string
	Priority   *string
	AgentID    *uuid.UUID
	Unassigned bool
	Limit      int32
	Offset     int32
}

// TicketRepository is the persistence port for tickets. The engine holds
// tickets only for the duration of a single operation and writes every
// mutation back through this interface.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	List(ctx context.Context, params ListTicketsRepoParams) ([]*domain.Ticket, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*domain.Ticket, error)
}

// AgentRepository is the persistence port for the agent directory.
type AgentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error)
	List(ctx context.Context) ([]*domain.Agent, error)
	Update(ctx context.Context, agent *domain.Agent) (*domain.Agent, error)
}

// MessageRepository is the persistence port for ticket conversation threads.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
	ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Message, error)
}
