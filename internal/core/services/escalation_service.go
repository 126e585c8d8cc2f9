package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/ports"
)

// EscalationService raises a ticket's priority one step, grants a fresh SLA
// window at the new level and appends an immutable history record. With a
// target agent it also forces reassignment; without one the ticket sits in
// ESCALATED until an operator assigns it.
type EscalationService struct {
	ticketRepo ports.TicketRepository
	matcher    ports.Matcher
	dispatcher ports.EventDispatcher
	logger     *slog.Logger
	clock      ports.Clock
}

var _ ports.EscalationService = (*EscalationService)(nil)

// NewEscalationService creates a new escalation service.
func NewEscalationService(
	ticketRepo ports.TicketRepository,
	matcher ports.Matcher,
	dispatcher ports.EventDispatcher,
	logger *slog.Logger,
	clock ports.Clock,
) *EscalationService {
	return &EscalationService{
		ticketRepo: ticketRepo,
		matcher:    matcher,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      clock,
	}
}

// Escalate applies the escalation to the ticket. Escalating an already
// CRITICAL ticket keeps the priority at CRITICAL but still refreshes the
// SLA window and records the attempt. When reassignment to the target agent
// fails, the whole escalation fails and the ticket is left untouched.
func (s *EscalationService) Escalate(ctx context.Context, params ports.EscalateParams) (*domain.Ticket, error) {
	if params.Reason == "" {
		return nil, apperrors.ErrReasonRequired
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

	now := s.clock()
	previousAgent := ticket.AssignedAgent

	reassigning := params.TargetAgent != nil && !ticket.IsAssignedTo(*params.TargetAgent)
	if reassigning {
		// Reserve the target before touching the ticket so a full or
		// offline agent aborts the escalation cleanly.
		if _, err := s.matcher.Reserve(ctx, *params.TargetAgent); err != nil {
			return nil, err
		}
	}

	record := ticket.RecordEscalation(params.Reason, params.Actor, now)

	if ticket.Status != domain.StatusEscalated {
		if err := ticket.TransitionTo(domain.StatusEscalated, now); err != nil {
			if reassigning {
				s.releaseQuietly(ctx, *params.TargetAgent, ticket.Code)
			}
			return nil, err
		}
	}

	if params.TargetAgent != nil {
		ticket.Assign(*params.TargetAgent, now)
		if err := ticket.TransitionTo(domain.StatusAssigned, now); err != nil {
			if reassigning {
				s.releaseQuietly(ctx, *params.TargetAgent, ticket.Code)
			}
			return nil, err
		}
	}

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		if reassigning {
			s.releaseQuietly(ctx, *params.TargetAgent, ticket.Code)
		}
		return nil, apperrors.NewInternalError(err)
	}

	// The previous agent keeps its load unless the ticket actually moved to
	// a different agent.
	if reassigning && previousAgent != nil {
		s.releaseQuietly(ctx, *previousAgent, updated.Code)
	}

	s.logger.InfoContext(ctx, "ticket escalated",
		slog.String("ticket_code", updated.Code),
		slog.String("priority_before", string(record.PriorityBefore)),
		slog.String("priority_after", string(record.PriorityAfter)),
		slog.String("reason", params.Reason))

	s.dispatcher.TicketEscalated(updated)
	if reassigning {
		s.dispatcher.TicketAssigned(updated)
	}

	return updated, nil
}

func (s *EscalationService) releaseQuietly(ctx context.Context, agentID uuid.UUID, ticketCode string) {
	if err := s.matcher.Release(ctx, agentID); err != nil {
		s.logger.ErrorContext(ctx, "failed to release agent capacity",
			slog.String("agent_id", agentID.String()),
			slog.String("ticket_code", ticketCode),
			slog.String("error", err.Error()))
	}
}
