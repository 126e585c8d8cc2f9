package domain

import "github.com/google/uuid"

// AgentAvailability represents whether an agent can take work right now.
type AgentAvailability string

const (
	AgentAvailable AgentAvailability = "AVAILABLE"
	AgentBusy      AgentAvailability = "BUSY"
	AgentOffline   AgentAvailability = "OFFLINE"
)

// IsValid reports whether the availability is a known value.
func (a AgentAvailability) IsValid() bool {
	switch a {
	case AgentAvailable, AgentBusy, AgentOffline:
		return true
	}
	return false
}

// Agent is a human operator who can be assigned tickets, bounded by
// capacity and specialties. CurrentLoad must always equal the count of
// non-terminal tickets assigned to the agent.
type Agent struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Specialties  []string
	Availability AgentAvailability
	CurrentLoad  int
	Capacity     int
	Rating       float64
}

// HasSpecialty reports whether the agent covers the ticket category.
func (a *Agent) HasSpecialty(category string) bool {
	for _, s := range a.Specialties {
		if s == category {
			return true
		}
	}
	return false
}

// HasCapacity reports whether the agent can take one more ticket.
func (a *Agent) HasCapacity() bool {
	return a.CurrentLoad < a.Capacity
}

// Eligible reports whether the agent may be considered by the matcher:
// not offline and with remaining capacity.
func (a *Agent) Eligible() bool {
	return a.Availability != AgentOffline && a.HasCapacity()
}
