package domain

import "time"

// slaMinutes maps each priority to the minutes allowed until breach.
var slaMinutes = map[TicketPriority]int{
	PriorityCritical: 5,
	PriorityUrgent:   15,
	PriorityHigh:     60,
	PriorityMedium:   240,
	PriorityLow:      1440,
}

// SLADueAt computes the response deadline for a priority from the current
// time. It is re-invoked on every priority change, so escalations always
// grant a fresh window at the new priority.
func SLADueAt(priority TicketPriority, now time.Time) time.Time {
	minutes, ok := slaMinutes[priority]
	if !ok {
		minutes = slaMinutes[PriorityMedium]
	}
	return now.Add(time.Duration(minutes) * time.Minute)
}

// SLAState classifies a ticket's deadline relative to now.
type SLAState string

const (
	SLAOnTime   SLAState = "on_time"
	SLABreached SLAState = "breached"
)

// SLAReport describes how a ticket stands against its deadline.
type SLAReport struct {
	State            SLAState `json:"state"`
	RemainingMinutes int      `json:"remainingMinutes,omitempty"`
	BreachMinutes    int      `json:"breachMinutes,omitempty"`
}

// SLAStatus reports the ticket's standing against its due time.
func (t *Ticket) SLAStatus(now time.Time) SLAReport {
	if now.After(t.SLADueAt) {
		return SLAReport{
			State:         SLABreached,
			BreachMinutes: int(now.Sub(t.SLADueAt).Minutes()),
		}
	}
	return SLAReport{
		State:            SLAOnTime,
		RemainingMinutes: int(t.SLADueAt.Sub(now).Minutes()),
	}
}
