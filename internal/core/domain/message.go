package domain

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
)

// MaxMessageBodyLength bounds a single thread entry.
const MaxMessageBodyLength = 2000

// Message is one entry in a ticket's conversation thread.
type Message struct {
	ID        int64
	TicketID  int64
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

// MessageParams holds validated input for posting a message.
type MessageParams struct {
	TicketID int64
	AuthorID uuid.UUID
	Body     string
}

// NewMessage creates a message bound to a ticket thread.
func NewMessage(params MessageParams, now time.Time) (*Message, error) {
	if params.Body == "" {
		return nil, apperrors.ErrMessageRequired
	}
	if len(params.Body) > MaxMessageBodyLength {
		return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "message body exceeds maximum length")
	}

	return &Message{
		TicketID:  params.TicketID,
		AuthorID:  params.AuthorID,
		Body:      params.Body,
		CreatedAt: now,
	}, nil
}

// NewMessageSnapshot builds the wire payload for new_message events.
func NewMessageSnapshot(message *Message) MessageSnapshot {
	return MessageSnapshot{
		TicketID: message.TicketID,
		AuthorID: message.AuthorID,
		Body:     message.Body,
		SentAt:   message.CreatedAt.UTC().Format(time.RFC3339),
	}
}
