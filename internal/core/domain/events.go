package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the kind of operator behind a console connection.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAgent      Role = "AGENT"
)

// IsValid reports whether the role is a known operator role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleAgent:
		return true
	}
	return false
}

// EventType defines the type of real-time event.
type EventType string

const (
	EventConnected           EventType = "connected"
	EventPong                EventType = "pong"
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventNewMessage          EventType = "new_message"
)

// Event is the payload sent over WebSocket. Events are value objects:
// created once, delivered best-effort, never queued or retried.
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitzero"`
}

// NewEvent builds an event stamped with the given time.
func NewEvent(eventType EventType, data interface{}, now time.Time) Event {
	return Event{Type: eventType, Data: data, Timestamp: now}
}

// TicketSnapshot matches the wire shape for tickets inside event payloads.
type TicketSnapshot struct {
	ID                int64              `json:"id"`
	Code              string             `json:"code"`
	Status            string             `json:"status"`
	Priority          string             `json:"priority"`
	Category          string             `json:"category"`
	Title             string             `json:"title"`
	CustomerID        string             `json:"customerId"`
	AssignedAgent     *string            `json:"assignedAgent"`
	CreatedAt         string             `json:"createdAt"`
	AssignedAt        *string            `json:"assignedAt,omitempty"`
	ResolvedAt        *string            `json:"resolvedAt,omitempty"`
	SLADueAt          string             `json:"slaDueAt"`
	Tags              []string           `json:"tags,omitempty"`
	EscalationHistory []EscalationRecord `json:"escalationHistory,omitempty"`
}

// NewTicketSnapshot builds a wire snapshot from a domain ticket.
func NewTicketSnapshot(ticket *Ticket) TicketSnapshot {
	snapshot := TicketSnapshot{
		ID:                ticket.ID,
		Code:              ticket.Code,
		Status:            string(ticket.Status),
		Priority:          string(ticket.Priority),
		Category:          ticket.Category,
		Title:             ticket.Title,
		CustomerID:        ticket.CustomerID.String(),
		CreatedAt:         ticket.CreatedAt.UTC().Format(time.RFC3339),
		SLADueAt:          ticket.SLADueAt.UTC().Format(time.RFC3339),
		Tags:              ticket.Tags,
		EscalationHistory: ticket.EscalationHistory,
	}

	if ticket.AssignedAgent != nil {
		value := ticket.AssignedAgent.String()
		snapshot.AssignedAgent = &value
	}
	if ticket.AssignedAt != nil {
		value := ticket.AssignedAt.UTC().Format(time.RFC3339)
		snapshot.AssignedAt = &value
	}
	if ticket.ResolvedAt != nil {
		value := ticket.ResolvedAt.UTC().Format(time.RFC3339)
		snapshot.ResolvedAt = &value
	}

	return snapshot
}

// MessageSnapshot is the payload for new_message events.
type MessageSnapshot struct {
	TicketID int64     `json:"ticketId"`
	AuthorID uuid.UUID `json:"authorId"`
	Body     string    `json:"body"`
	SentAt   string    `json:"sentAt"`
}
