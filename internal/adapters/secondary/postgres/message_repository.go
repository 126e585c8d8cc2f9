package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
	"github.com/lorrc/support-engine/internal/core/utils"
)

// MessageRepository handles database operations for ticket threads.
type MessageRepository struct {
	pool *pgxpool.Pool
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository creates a new message repository.
func NewMessageRepository(pool *pgxpool.Pool) ports.MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var (
		message  domain.Message
		authorID pgtype.UUID
	)

	err := row.Scan(
		&message.ID,
		&message.TicketID,
		&authorID,
		&message.Body,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.AuthorID = uuid.UUID(authorID.Bytes)
	return &message, nil
}

// Create persists a new message.
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	const query = `
INSERT INTO messages (ticket_id, author_id, body, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, ticket_id, author_id, body, created_at`

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		message.TicketID,
		utils.ToUUID(message.AuthorID),
		message.Body,
		message.CreatedAt,
	)

	return scanMessage(row)
}

// ListByTicketID retrieves a ticket's thread, oldest first.
func (r *MessageRepository) ListByTicketID(ctx context.Context, ticketID int64) ([]*domain.Message, error) {
	const query = `
SELECT id, ticket_id, author_id, body, created_at
FROM messages
WHERE ticket_id = $1
ORDER BY created_at ASC, id ASC`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
