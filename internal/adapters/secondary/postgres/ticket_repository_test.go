package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTicket(t *testing.T, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket, err := domain.NewTicket(domain.TicketParams{
		Category:    "fraud_report",
		Priority:    priority,
		Title:       "Reporte de fraude",
		Description: "mi tarjeta fue robada",
		Tags:        []string{"fraude", "urgente"},
		CustomerID:  uuid.New(),
	}, time.Now().UTC())
	require.NoError(t, err)
	return ticket
}

func seedAgent(t *testing.T, agent *domain.Agent) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
INSERT INTO agents (id, name, email, specialties, availability, current_load, capacity, rating)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		agent.ID, agent.Name, agent.Email, agent.Specialties,
		string(agent.Availability), agent.CurrentLoad, agent.Capacity, agent.Rating,
	)
	require.NoError(t, err)
}

func TestTicketRepository_CreateStampsCode(t *testing.T) {
	truncateTables(t)
	repo := NewTicketRepository(testPool)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestTicket(t, domain.PriorityCritical))
	require.NoError(t, err)

	assert.Positive(t, created.ID)
	assert.Equal(t, domain.TicketCode(created.ID), created.Code)
	assert.Equal(t, domain.StatusOpen, created.Status)
	assert.Equal(t, []string{"fraude", "urgente"}, created.Tags)
	assert.Empty(t, created.EscalationHistory)

	second, err := repo.Create(ctx, newTestTicket(t, domain.PriorityLow))
	require.NoError(t, err)
	assert.Equal(t, created.ID+1, second.ID)
	assert.Equal(t, domain.TicketCode(second.ID), second.Code)
}

func TestTicketRepository_GetByID_NotFound(t *testing.T) {
	truncateTables(t)
	repo := NewTicketRepository(testPool)

	_, err := repo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestTicketRepository_UpdateRoundTrip(t *testing.T) {
	truncateTables(t)
	repo := NewTicketRepository(testPool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	agent := &domain.Agent{
		ID:           uuid.New(),
		Name:         "Ana Flores",
		Email:        "ana@example.com",
		Specialties:  []string{"fraud_report"},
		Availability: domain.AgentAvailable,
		Capacity:     5,
		Rating:       4.5,
	}
	seedAgent(t, agent)

	created, err := repo.Create(ctx, newTestTicket(t, domain.PriorityCritical))
	require.NoError(t, err)

	created.Assign(agent.ID, now)
	require.NoError(t, created.TransitionTo(domain.StatusAssigned, now))
	created.RecordEscalation("sin respuesta", "supervisor", now)

	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssigned, updated.Status)
	require.NotNil(t, updated.AssignedAgent)
	assert.Equal(t, agent.ID, *updated.AssignedAgent)
	require.NotNil(t, updated.AssignedAt)
	assert.WithinDuration(t, now, *updated.AssignedAt, time.Second)

	require.Len(t, updated.EscalationHistory, 1)
	assert.Equal(t, "sin respuesta", updated.EscalationHistory[0].Reason)
	assert.Equal(t, "supervisor", updated.EscalationHistory[0].Actor)

	// Round trip again to confirm the history survives a fresh read.
	fetched, err := repo.GetByID(ctx, updated.ID)
	require.NoError(t, err)
	require.Len(t, fetched.EscalationHistory, 1)
	assert.Equal(t, domain.PriorityCritical, fetched.EscalationHistory[0].PriorityBefore)
}

func TestTicketRepository_ListFilters(t *testing.T) {
	truncateTables(t)
	repo := NewTicketRepository(testPool)
	ctx := context.Background()
	now := time.Now().UTC()

	agent := &domain.Agent{
		ID:           uuid.New(),
		Name:         "Luis Vega",
		Email:        "luis@example.com",
		Availability: domain.AgentAvailable,
		Capacity:     5,
	}
	seedAgent(t, agent)

	open, err := repo.Create(ctx, newTestTicket(t, domain.PriorityLow))
	require.NoError(t, err)

	assigned, err := repo.Create(ctx, newTestTicket(t, domain.PriorityCritical))
	require.NoError(t, err)
	assigned.Assign(agent.ID, now)
	require.NoError(t, assigned.TransitionTo(domain.StatusAssigned, now))
	_, err = repo.Update(ctx, assigned)
	require.NoError(t, err)

	status := "OPEN"
	byStatus, err := repo.List(ctx, ports.ListTicketsRepoParams{Status: &status, Limit: 50})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, open.ID, byStatus[0].ID)

	byAgent, err := repo.List(ctx, ports.ListTicketsRepoParams{AgentID: &agent.ID, Limit: 50})
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	assert.Equal(t, assigned.ID, byAgent[0].ID)

	unassigned, err := repo.List(ctx, ports.ListTicketsRepoParams{Unassigned: true, Limit: 50})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, open.ID, unassigned[0].ID)

	all, err := repo.List(ctx, ports.ListTicketsRepoParams{Limit: 50})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, assigned.ID, all[0].ID)
}

func TestTicketRepository_ListOverdue(t *testing.T) {
	truncateTables(t)
	repo := NewTicketRepository(testPool)
	ctx := context.Background()

	overdue, err := repo.Create(ctx, newTestTicket(t, domain.PriorityCritical))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestTicket(t, domain.PriorityLow))
	require.NoError(t, err)

	// A resolved ticket past its deadline must not show up.
	resolved, err := repo.Create(ctx, newTestTicket(t, domain.PriorityCritical))
	require.NoError(t, err)
	resolved.Status = domain.StatusResolved
	_, err = repo.Update(ctx, resolved)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(10 * time.Minute)
	list, err := repo.ListOverdue(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, overdue.ID, list[0].ID)
}

func TestTicketRepository_WithTransactionRollback(t *testing.T) {
	truncateTables(t)
	repo := NewTicketRepository(testPool)
	tm := NewTransactionManager(testPool)
	ctx := context.Background()

	err := tm.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := repo.Create(txCtx, newTestTicket(t, domain.PriorityMedium)); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	all, err := repo.List(ctx, ports.ListTicketsRepoParams{Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, all)
}
