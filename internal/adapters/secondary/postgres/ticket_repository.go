package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
	"github.com/lorrc/support-engine/internal/core/utils"
)

// ticketColumns is the canonical column list scanned by scanTicket.
const ticketColumns = `id, code, status, priority, category, customer_id, assigned_agent,
	title, description, tags, created_at, assigned_at, resolved_at, sla_due_at,
	escalation_history, resolution`

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// Ensure TicketRepository implements the ports.TicketRepository interface.
var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) ports.TicketRepository {
	return &TicketRepository{pool: pool}
}

// rowScanner matches both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTicket maps one database row to a core domain ticket.
func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket        domain.Ticket
		customerID    pgtype.UUID
		assignedAgent pgtype.UUID
		assignedAt    pgtype.Timestamptz
		resolvedAt    pgtype.Timestamptz
		history       []byte
	)

	err := row.Scan(
		&ticket.ID,
		&ticket.Code,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&customerID,
		&assignedAgent,
		&ticket.Title,
		&ticket.Description,
		&ticket.Tags,
		&ticket.CreatedAt,
		&assignedAt,
		&resolvedAt,
		&ticket.SLADueAt,
		&history,
		&ticket.Resolution,
	)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		ticket.CustomerID = uuid.UUID(customerID.Bytes)
	}
	ticket.AssignedAgent = utils.FromNullUUID(assignedAgent)
	ticket.AssignedAt = utils.FromNullTime(assignedAt)
	ticket.ResolvedAt = utils.FromNullTime(resolvedAt)

	if len(history) > 0 {
		if err := json.Unmarshal(history, &ticket.EscalationHistory); err != nil {
			return nil, fmt.Errorf("failed to decode escalation history: %w", err)
		}
	}

	return &ticket, nil
}

// marshalHistory encodes the escalation history for the jsonb column.
// An empty history is stored as an empty array, never as SQL NULL.
func marshalHistory(history []domain.EscalationRecord) ([]byte, error) {
	if len(history) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(history)
}

// Create persists a new ticket and stamps its public code from the
// generated row id. Both happen in one statement so a ticket is never
// visible without a code.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `
WITH created AS (
    INSERT INTO tickets (status, priority, category, customer_id, title, description,
                         tags, created_at, sla_due_at, escalation_history, resolution)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    RETURNING id
)
UPDATE tickets t
SET code = 'TK' || lpad(created.id::text, 6, '0')
FROM created
WHERE t.id = created.id
RETURNING ` + qualifyColumns("t")

	history, err := marshalHistory(ticket.EscalationHistory)
	if err != nil {
		return nil, err
	}

	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.Category,
		utils.ToUUID(ticket.CustomerID),
		ticket.Title,
		ticket.Description,
		tags,
		ticket.CreatedAt,
		ticket.SLADueAt,
		history,
		ticket.Resolution,
	)

	return scanTicket(row)
}

// GetByID retrieves a single ticket by its numeric id.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// Update persists every mutable field of an existing ticket.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	const query = `
UPDATE tickets
SET status = $2,
    priority = $3,
    category = $4,
    assigned_agent = $5,
    tags = $6,
    assigned_at = $7,
    resolved_at = $8,
    sla_due_at = $9,
    escalation_history = $10,
    resolution = $11
WHERE id = $1
RETURNING ` + ticketColumns

	history, err := marshalHistory(ticket.EscalationHistory)
	if err != nil {
		return nil, err
	}

	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.Category,
		utils.ToNullUUID(ticket.AssignedAgent),
		tags,
		utils.ToNullTime(ticket.AssignedAt),
		utils.ToNullTime(ticket.ResolvedAt),
		ticket.SLADueAt,
		history,
		ticket.Resolution,
	)

	updated, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return updated, nil
}

// List retrieves tickets matching the queue filters, newest first.
func (r *TicketRepository) List(ctx context.Context, params ports.ListTicketsRepoParams) ([]*domain.Ticket, error) {
	query := `
SELECT ` + ticketColumns + `
FROM tickets
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR priority = $2)
  AND ($3::uuid IS NULL OR assigned_agent = $3)
  AND (NOT $4::boolean OR assigned_agent IS NULL)
ORDER BY created_at DESC, id DESC
LIMIT $5 OFFSET $6`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query,
		params.Status,
		params.Priority,
		utils.ToNullUUID(params.AgentID),
		params.Unassigned,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTickets(rows)
}

// ListOverdue retrieves open-lifecycle tickets whose SLA deadline has
// passed, most overdue first.
func (r *TicketRepository) ListOverdue(ctx context.Context, now time.Time) ([]*domain.Ticket, error) {
	query := `
SELECT ` + ticketColumns + `
FROM tickets
WHERE sla_due_at < $1
  AND status NOT IN ('RESOLVED', 'CLOSED')
ORDER BY sla_due_at ASC, id ASC`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTickets(rows)
}

func collectTickets(rows pgx.Rows) ([]*domain.Ticket, error) {
	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

// qualifyColumns prefixes every ticket column with a table alias, for
// statements where the column list would otherwise be ambiguous.
func qualifyColumns(alias string) string {
	return alias + `.id, ` + alias + `.code, ` + alias + `.status, ` + alias + `.priority, ` +
		alias + `.category, ` + alias + `.customer_id, ` + alias + `.assigned_agent, ` +
		alias + `.title, ` + alias + `.description, ` + alias + `.tags, ` +
		alias + `.created_at, ` + alias + `.assigned_at, ` + alias + `.resolved_at, ` +
		alias + `.sla_due_at, ` + alias + `.escalation_history, ` + alias + `.resolution`
}
