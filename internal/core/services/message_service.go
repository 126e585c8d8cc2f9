package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lorrc/support-engine/internal/core/domain"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/ports"
)

// MessageService implements the conversation thread on top of tickets.
type MessageService struct {
	messageRepo ports.MessageRepository
	ticketRepo  ports.TicketRepository
	dispatcher  ports.EventDispatcher
	logger      *slog.Logger
	clock       ports.Clock
}

var _ ports.MessageService = (*MessageService)(nil)

// NewMessageService creates a new service for ticket messages.
func NewMessageService(
	messageRepo ports.MessageRepository,
	ticketRepo ports.TicketRepository,
	dispatcher ports.EventDispatcher,
	logger *slog.Logger,
	clock ports.Clock,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		ticketRepo:  ticketRepo,
		dispatcher:  dispatcher,
		logger:      logger,
		clock:       clock,
	}
}

// PostMessage appends a message to a ticket's thread and broadcasts it to
// every connected console. Closed tickets no longer accept messages.
func (s *MessageService) PostMessage(ctx context.Context, params ports.PostMessageParams) (*domain.Message, error) {
	ticket, err := s.getTicket(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}

	if ticket.Status == domain.StatusClosed {
		return nil, apperrors.NewConflictError(apperrors.ErrInvalidTransition, "ticket thread is closed")
	}

	message, err := domain.NewMessage(domain.MessageParams{
		TicketID: ticket.ID,
		AuthorID: params.AuthorID,
		Body:     params.Body,
	}, s.clock())
	if err != nil {
		return nil, err
	}

	created, err := s.messageRepo.Create(ctx, message)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.dispatcher.NewMessage(domain.NewMessageSnapshot(created))

	s.logger.Info("message posted",
		"ticket_code", ticket.Code,
		"author_id", params.AuthorID,
	)

	return created, nil
}

// ListMessages returns a ticket's thread, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, ticketID int64) ([]*domain.Message, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByTicketID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return messages, nil
}

func (s *MessageService) getTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			return nil, apperrors.NewNotFoundError(err, "ticket not found")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}
