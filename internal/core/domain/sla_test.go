package domain_test

import (
	"testing"
	"time"

	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestSLADueAt(t *testing.T) {
	tests := []struct {
		priority domain.TicketPriority
		minutes  int
	}{
		{domain.PriorityCritical, 5},
		{domain.PriorityUrgent, 15},
		{domain.PriorityHigh, 60},
		{domain.PriorityMedium, 240},
		{domain.PriorityLow, 1440},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			due := domain.SLADueAt(tt.priority, testNow)
			assert.Equal(t, testNow.Add(time.Duration(tt.minutes)*time.Minute), due)
		})
	}

	t.Run("unknown priority falls back to the medium window", func(t *testing.T) {
		due := domain.SLADueAt(domain.TicketPriority("SEVERE"), testNow)
		assert.Equal(t, testNow.Add(240*time.Minute), due)
	})

	t.Run("due time is never before now", func(t *testing.T) {
		for _, tt := range tests {
			assert.False(t, domain.SLADueAt(tt.priority, testNow).Before(testNow))
		}
	})
}

func TestTicket_SLAStatus(t *testing.T) {
	t.Run("on time reports remaining minutes", func(t *testing.T) {
		ticket := &domain.Ticket{SLADueAt: testNow.Add(45 * time.Minute)}

		report := ticket.SLAStatus(testNow)

		assert.Equal(t, domain.SLAOnTime, report.State)
		assert.Equal(t, 45, report.RemainingMinutes)
		assert.Zero(t, report.BreachMinutes)
	})

	t.Run("past due reports breach minutes", func(t *testing.T) {
		ticket := &domain.Ticket{SLADueAt: testNow.Add(-10 * time.Minute)}

		report := ticket.SLAStatus(testNow)

		assert.Equal(t, domain.SLABreached, report.State)
		assert.Equal(t, 10, report.BreachMinutes)
		assert.Zero(t, report.RemainingMinutes)
	})

	t.Run("exactly at the deadline is still on time", func(t *testing.T) {
		ticket := &domain.Ticket{SLADueAt: testNow}

		report := ticket.SLAStatus(testNow)

		assert.Equal(t, domain.SLAOnTime, report.State)
	})
}

func TestAgent_Eligible(t *testing.T) {
	t.Run("available with headroom", func(t *testing.T) {
		agent := &domain.Agent{Availability: domain.AgentAvailable, CurrentLoad: 2, Capacity: 3}
		assert.True(t, agent.Eligible())
	})

	t.Run("busy agents stay eligible", func(t *testing.T) {
		agent := &domain.Agent{Availability: domain.AgentBusy, CurrentLoad: 0, Capacity: 1}
		assert.True(t, agent.Eligible())
	})

	t.Run("offline agents are excluded", func(t *testing.T) {
		agent := &domain.Agent{Availability: domain.AgentOffline, CurrentLoad: 0, Capacity: 5}
		assert.False(t, agent.Eligible())
	})

	t.Run("full agents are excluded", func(t *testing.T) {
		agent := &domain.Agent{Availability: domain.AgentAvailable, CurrentLoad: 3, Capacity: 3}
		assert.False(t, agent.Eligible())
	})
}
