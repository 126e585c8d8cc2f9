package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/ports"
)

const (
	maxDescriptionLength = 5000
	defaultListLimit     = 50
	maxListLimit         = 100
)

// TicketService implements the inbound trigger operations: create, assign,
// status change, priority change and the queue views. Mutations are
// persisted before any notification is dispatched.
type TicketService struct {
	ticketRepo ports.TicketRepository
	matcher    ports.Matcher
	dispatcher ports.EventDispatcher
	notifier   ports.Notifier
	logger     *slog.Logger
	clock      ports.Clock
}

var _ ports.TicketService = (*TicketService)(nil)

// NewTicketService creates a new ticket service.
func NewTicketService(
	ticketRepo ports.TicketRepository,
	matcher ports.Matcher,
	dispatcher ports.EventDispatcher,
	notifier ports.Notifier,
	logger *slog.Logger,
	clock ports.Clock,
) *TicketService {
	return &TicketService{
		ticketRepo: ticketRepo,
		matcher:    matcher,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		clock:      clock,
	}
}

// CreateTicket opens a ticket from an escalated conversation. Category and
// priority are classified from the description unless the caller supplies
// them, the SLA window starts immediately, and auto-assignment is attempted.
// Finding no eligible agent leaves the ticket OPEN and unassigned.
func (s *TicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	if params.Description == "" {
		return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "description is required")
	}
	if len(params.Description) > maxDescriptionLength {
		return nil, apperrors.ErrDescriptionTooLong
	}

	now := s.clock()

	signal := domain.Classify(params.Description, domain.SignalContext{HighUrgency: params.HighUrgency})
	category := params.Category
	if category == "" {
		category = signal.Category
	}
	priority := params.Priority
	if priority == "" {
		priority = signal.Priority
	}

	ticket, err := domain.NewTicket(domain.TicketParams{
		Category:    category,
		Priority:    priority,
		Title:       domain.TitleFor(category, params.Description),
		Description: params.Description,
		Tags:        domain.AutoTags(params.Description, category),
		CustomerID:  params.CustomerID,
	}, now)
	if err != nil {
		return nil, err
	}

	created, err := s.ticketRepo.Create(ctx, ticket)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create ticket", slog.String("error", err.Error()))
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.InfoContext(ctx, "ticket created",
		slog.String("ticket_code", created.Code),
		slog.String("category", created.Category),
		slog.String("priority", string(created.Priority)),
		slog.Float64("confidence", signal.Confidence))

	s.dispatcher.TicketCreated(created)

	assigned, err := s.autoAssign(ctx, created)
	if err != nil {
		// The ticket exists and was announced; a failed auto-assignment
		// leaves it in the unassigned queue rather than failing the create.
		s.logger.WarnContext(ctx, "auto-assignment failed, ticket left unassigned",
			slog.String("ticket_code", created.Code),
			slog.String("error", err.Error()))
		return created, nil
	}

	return assigned, nil
}

// autoAssign runs the matcher and, when an agent qualifies, commits the
// assignment. Returns the ticket unchanged when no agent qualifies.
func (s *TicketService) autoAssign(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	agent, err := s.matcher.AssignBest(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		s.logger.InfoContext(ctx, "no eligible agent, ticket unassigned",
			slog.String("ticket_code", ticket.Code))
		return ticket, nil
	}

	now := s.clock()
	ticket.Assign(agent.ID, now)
	if err := ticket.TransitionTo(domain.StatusAssigned, now); err != nil {
		s.releaseQuietly(ctx, agent.ID, ticket.Code)
		return nil, err
	}

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		s.releaseQuietly(ctx, agent.ID, ticket.Code)
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.InfoContext(ctx, "ticket auto-assigned",
		slog.String("ticket_code", updated.Code),
		slog.String("agent_id", agent.ID.String()))

	s.dispatcher.TicketAssigned(updated)
	return updated, nil
}

// GetTicket returns a ticket together with its current SLA standing.
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*ports.TicketWithSLA, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return nil, apperrors.NewNotFoundError(err, "ticket not found")
		}
		return nil, apperrors.NewInternalError(err)
	}

	return &ports.TicketWithSLA{
		Ticket: ticket,
		SLA:    ticket.SLAStatus(s.clock()),
	}, nil
}

// AssignTicket explicitly assigns a ticket to a specific agent, reserving
// one unit of the agent's capacity. Only unassigned tickets (OPEN or
// ESCALATED) accept an explicit assignment.
func (s *TicketService) AssignTicket(ctx context.Context, params ports.AssignTicketParams) (*domain.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return nil, apperrors.NewNotFoundError(err, "ticket not found")
		}
		return nil, apperrors.NewInternalError(err)
	}

	if !ticket.CanTransitionTo(domain.StatusAssigned) {
		return nil, apperrors.ErrInvalidTransition
	}

	agent, err := s.matcher.Reserve(ctx, params.AgentID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	ticket.Assign(agent.ID, now)
	if err := ticket.TransitionTo(domain.StatusAssigned, now); err != nil {
		s.releaseQuietly(ctx, agent.ID, ticket.Code)
		return nil, err
	}

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		s.releaseQuietly(ctx, agent.ID, ticket.Code)
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.InfoContext(ctx, "ticket assigned",
		slog.String("ticket_code", updated.Code),
		slog.String("agent_id", agent.ID.String()))

	s.dispatcher.TicketAssigned(updated)
	return updated, nil
}

// UpdateStatus moves a ticket along the state machine. Entering a terminal
// state releases the assigned agent's capacity; reopening a resolved ticket
// reserves it again and fails if the agent has no headroom left.
func (s *TicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return nil, apperrors.NewNotFoundError(err, "ticket not found")
		}
		return nil, apperrors.NewInternalError(err)
	}

	// ASSIGNED is only reachable through the assignment paths, which
	// reserve agent capacity. A bare status change must not fabricate an
	// assignment without an agent.
	if params.Status == domain.StatusAssigned && ticket.AssignedAgent == nil {
		return nil, apperrors.NewConflictError(apperrors.ErrInvalidTransition,
			"cannot mark a ticket assigned without an agent")
	}

	wasTerminal := ticket.Status.IsTerminal()
	reopening := ticket.Status == domain.StatusResolved && params.Status == domain.StatusInProgress

	if reopening && ticket.AssignedAgent != nil {
		if _, err := s.matcher.Reserve(ctx, *ticket.AssignedAgent); err != nil {
			return nil, err
		}
	}

	now := s.clock()
	if err := ticket.TransitionTo(params.Status, now); err != nil {
		if reopening && ticket.AssignedAgent != nil {
			s.releaseQuietly(ctx, *ticket.AssignedAgent, ticket.Code)
		}
		return nil, err
	}
	if params.Status == domain.StatusResolved {
		ticket.Resolution = params.ResolutionNotes
	}

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		if reopening && ticket.AssignedAgent != nil {
			s.releaseQuietly(ctx, *ticket.AssignedAgent, ticket.Code)
		}
		return nil, apperrors.NewInternalError(err)
	}

	if !wasTerminal && updated.Status.IsTerminal() && updated.AssignedAgent != nil {
		s.releaseQuietly(ctx, *updated.AssignedAgent, updated.Code)
	}

	s.logger.InfoContext(ctx, "ticket status changed",
		slog.String("ticket_code", updated.Code),
		slog.String("status", string(updated.Status)))

	s.dispatcher.TicketStatusChanged(updated)

	if updated.Status == domain.StatusResolved {
		s.notifier.Notify(ctx, updated,
			fmt.Sprintf("Ticket %s resolved", updated.Code),
			updated.Resolution)
	}

	return updated, nil
}

// ChangePriority sets an explicit priority and grants a fresh SLA window at
// the new level. Unlike escalation it may lower priority, records no
// history entry and emits no notification.
func (s *TicketService) ChangePriority(ctx context.Context, params ports.ChangePriorityParams) (*domain.Ticket, error) {
	if !params.Priority.IsValid() {
		return nil, apperrors.ErrInvalidPriority
	}

	ticket, err := s.ticketRepo.GetByID(ctx, params.TicketID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return nil, apperrors.NewNotFoundError(err, "ticket not found")
		}
		return nil, apperrors.NewInternalError(err)
	}

	if ticket.Status.IsTerminal() {
		return nil, apperrors.ErrInvalidTransition
	}
	if ticket.Priority == params.Priority {
		return ticket, nil
	}

	ticket.Priority = params.Priority
	ticket.SLADueAt = domain.SLADueAt(params.Priority, s.clock())

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.InfoContext(ctx, "ticket priority changed",
		slog.String("ticket_code", updated.Code),
		slog.String("priority", string(updated.Priority)))

	return updated, nil
}

// ListTickets returns a filtered queue view. The Unassigned filter surfaces
// tickets the matcher could not place.
func (s *TicketService) ListTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	// Fetch one row past the page so the adapter can tell whether more
	// pages exist without a count query.
	tickets, err := s.ticketRepo.List(ctx, ports.ListTicketsRepoParams{
		Status:     params.Status,
		Priority:   params.Priority,
		AgentID:    params.AgentID,
		Unassigned: params.Unassigned,
		Limit:      int32(limit + 1),
		Offset:     int32(offset),
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// ListOverdue returns every non-terminal ticket whose SLA deadline has
// passed, each paired with how far past the deadline it is.
func (s *TicketService) ListOverdue(ctx context.Context) ([]*ports.TicketWithSLA, error) {
	now := s.clock()
	tickets, err := s.ticketRepo.ListOverdue(ctx, now)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	overdue := make([]*ports.TicketWithSLA, 0, len(tickets))
	for _, ticket := range tickets {
		overdue = append(overdue, &ports.TicketWithSLA{
			Ticket: ticket,
			SLA:    ticket.SLAStatus(now),
		})
	}
	return overdue, nil
}

// releaseQuietly returns a reserved capacity unit, logging rather than
// propagating any failure so it never masks the primary error.
func (s *TicketService) releaseQuietly(ctx context.Context, agentID uuid.UUID, ticketCode string) {
	if err := s.matcher.Release(ctx, agentID); err != nil {
		s.logger.ErrorContext(ctx, "failed to release agent capacity",
			slog.String("agent_id", agentID.String()),
			slog.String("ticket_code", ticketCode),
			slog.String("error", err.Error()))
	}
}
