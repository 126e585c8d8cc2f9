package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
)

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen            TicketStatus = "OPEN"
	StatusAssigned        TicketStatus = "ASSIGNED"
	StatusInProgress      TicketStatus = "IN_PROGRESS"
	StatusWaitingCustomer TicketStatus = "WAITING_CUSTOMER"
	StatusEscalated       TicketStatus = "ESCALATED"
	StatusResolved        TicketStatus = "RESOLVED"
	StatusClosed          TicketStatus = "CLOSED"
)

// IsValid reports whether the status is a known lifecycle state.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusWaitingCustomer,
		StatusEscalated, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether the status releases the assigned agent.
// RESOLVED and CLOSED tickets no longer count against an agent's load.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "LOW"
	PriorityMedium   TicketPriority = "MEDIUM"
	PriorityHigh     TicketPriority = "HIGH"
	PriorityUrgent   TicketPriority = "URGENT"
	PriorityCritical TicketPriority = "CRITICAL"
)

// IsValid reports whether the priority is a known level.
func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// Rank orders priorities from LOW (1) to CRITICAL (5). Unknown priorities rank 0.
func (p TicketPriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	case PriorityCritical:
		return 5
	}
	return 0
}

// Next returns the priority one step up the ladder. CRITICAL is the ceiling.
func (p TicketPriority) Next() TicketPriority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	case PriorityHigh:
		return PriorityUrgent
	case PriorityUrgent, PriorityCritical:
		return PriorityCritical
	}
	return p
}

// EscalationRecord is one entry in a ticket's escalation history.
// Records are immutable once appended.
type EscalationRecord struct {
	EscalatedAt    time.Time      `json:"escalatedAt"`
	Reason         string         `json:"reason"`
	Actor          string         `json:"actor"`
	PriorityBefore TicketPriority `json:"priorityBefore"`
	PriorityAfter  TicketPriority `json:"priorityAfter"`
}

// Ticket is the core domain entity: one unit of escalated customer work.
type Ticket struct {
	ID                int64
	Code              string
	Status            TicketStatus
	Priority          TicketPriority
	Category          string
	CustomerID        uuid.UUID
	AssignedAgent     *uuid.UUID
	Title             string
	Description       string
	Tags              []string
	CreatedAt         time.Time
	AssignedAt        *time.Time
	ResolvedAt        *time.Time
	SLADueAt          time.Time
	EscalationHistory []EscalationRecord
	Resolution        string
}

// TicketParams holds validated input for creating a ticket.
type TicketParams struct {
	Category    string
	Priority    TicketPriority
	Title       string
	Description string
	Tags        []string
	CustomerID  uuid.UUID
}

// NewTicket creates a ticket in the OPEN state with a fresh SLA window.
func NewTicket(params TicketParams, now time.Time) (*Ticket, error) {
	if !params.Priority.IsValid() {
		return nil, apperrors.ErrInvalidPriority
	}
	if params.CustomerID == uuid.Nil {
		return nil, apperrors.ErrCustomerRequired
	}

	return &Ticket{
		Status:      StatusOpen,
		Priority:    params.Priority,
		Category:    params.Category,
		CustomerID:  params.CustomerID,
		Title:       params.Title,
		Description: params.Description,
		Tags:        params.Tags,
		CreatedAt:   now,
		SLADueAt:    SLADueAt(params.Priority, now),
	}, nil
}

// TicketCode derives the human-readable code from the numeric id.
func TicketCode(id int64) string {
	return fmt.Sprintf("TK%06d", id)
}

// validTransitions defines the allowed state-machine edges.
// ESCALATED is reachable from every non-terminal state and returns to
// ASSIGNED or IN_PROGRESS once an agent takes ownership. CLOSED has no
// outgoing edges; RESOLVED can close or reopen.
var validTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:            {StatusAssigned, StatusEscalated},
	StatusAssigned:        {StatusInProgress, StatusEscalated},
	StatusInProgress:      {StatusWaitingCustomer, StatusResolved, StatusEscalated},
	StatusWaitingCustomer: {StatusInProgress, StatusEscalated},
	StatusEscalated:       {StatusAssigned, StatusInProgress},
	StatusResolved:        {StatusClosed, StatusInProgress},
	StatusClosed:          {},
}

// CanTransitionTo reports whether the edge from the current status is allowed.
func (t *Ticket) CanTransitionTo(next TicketStatus) bool {
	for _, s := range validTransitions[t.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the ticket to the next status, enforcing the state
// machine. On an invalid edge the ticket is left completely unchanged and
// ErrInvalidTransition is returned. Entering RESOLVED stamps ResolvedAt;
// reopening clears it.
func (t *Ticket) TransitionTo(next TicketStatus, now time.Time) error {
	if !next.IsValid() {
		return apperrors.ErrInvalidStatus
	}
	if !t.CanTransitionTo(next) {
		return apperrors.ErrInvalidTransition
	}

	switch next {
	case StatusResolved:
		resolvedAt := now
		t.ResolvedAt = &resolvedAt
	case StatusInProgress:
		if t.Status == StatusResolved {
			t.ResolvedAt = nil
			t.Resolution = ""
		}
	}

	t.Status = next
	return nil
}

// Assign sets the agent reference and stamps AssignedAt. The caller owns the
// capacity reservation and the status transition.
func (t *Ticket) Assign(agentID uuid.UUID, now time.Time) {
	agent := agentID
	t.AssignedAgent = &agent
	assignedAt := now
	t.AssignedAt = &assignedAt
}

// IsAssignedTo reports whether the ticket is currently assigned to the agent.
func (t *Ticket) IsAssignedTo(agentID uuid.UUID) bool {
	return t.AssignedAgent != nil && *t.AssignedAgent == agentID
}

// RecordEscalation bumps priority one step, grants a fresh SLA window at the
// new priority and appends an immutable history entry. Escalating a CRITICAL
// ticket is a no-op on priority but still refreshes the SLA and history.
// The deadline never moves earlier: a young low-priority ticket keeps its
// remaining time when the new priority's window would be shorter.
func (t *Ticket) RecordEscalation(reason, actor string, now time.Time) EscalationRecord {
	record := EscalationRecord{
		EscalatedAt:    now,
		Reason:         reason,
		Actor:          actor,
		PriorityBefore: t.Priority,
		PriorityAfter:  t.Priority.Next(),
	}

	t.Priority = record.PriorityAfter
	if due := SLADueAt(t.Priority, now); due.After(t.SLADueAt) {
		t.SLADueAt = due
	}
	t.EscalationHistory = append(t.EscalationHistory, record)
	return record
}
