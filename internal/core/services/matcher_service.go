package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lorrc/support-engine/internal/core/domain"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/ports"
)

// MatcherService scores agents against tickets and reserves capacity.
//
// Every load mutation runs under a single mutex so that two concurrent
// assignment attempts can never both believe they reserved the same unit of
// an agent's capacity. The engine runs as one logical instance, so one lock
// scoped to the service is sufficient.
type MatcherService struct {
	agentRepo ports.AgentRepository
	mu        sync.Mutex
}

var _ ports.Matcher = (*MatcherService)(nil)

// NewMatcherService creates a new matcher.
func NewMatcherService(agentRepo ports.AgentRepository) *MatcherService {
	return &MatcherService{agentRepo: agentRepo}
}

// Score computes the match score for a single agent against a ticket.
// Eligibility (not offline, has capacity) is checked by the caller.
func Score(agent *domain.Agent, ticket *domain.Ticket) float64 {
	score := 0.0

	if agent.HasSpecialty(ticket.Category) {
		score += 50
	}

	switch agent.Availability {
	case domain.AgentAvailable:
		score += 30
	case domain.AgentBusy:
		score += 10
	}

	score += 5 * float64(agent.Capacity-agent.CurrentLoad)
	score += 10 * agent.Rating

	switch ticket.Priority {
	case domain.PriorityCritical:
		score += 20
	case domain.PriorityUrgent:
		score += 10
	}

	return score
}

// AssignBest selects the best eligible agent for the ticket and reserves one
// unit of its capacity. Returns (nil, nil) when no agent qualifies: the
// ticket stays unassigned, which is a normal outcome for the caller to
// surface, not an error.
func (s *MatcherService) AssignBest(ctx context.Context, ticket *domain.Ticket) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.agentRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	var best *domain.Agent
	var bestScore float64
	for _, agent := range agents {
		if !agent.Eligible() {
			continue
		}

		score := Score(agent, ticket)
		if best == nil || score > bestScore || (score == bestScore && betterTie(agent, best)) {
			best = agent
			bestScore = score
		}
	}

	if best == nil {
		return nil, nil
	}

	best.CurrentLoad++
	return s.agentRepo.Update(ctx, best)
}

// betterTie breaks score ties: lowest current load first, then agent id for
// determinism.
func betterTie(candidate, incumbent *domain.Agent) bool {
	if candidate.CurrentLoad != incumbent.CurrentLoad {
		return candidate.CurrentLoad < incumbent.CurrentLoad
	}
	return candidate.ID.String() < incumbent.ID.String()
}

// Reserve takes one unit of a specific agent's capacity, for explicit
// assignments and escalation-forced reassignments. Reassignment never
// bypasses the capacity invariant.
func (s *MatcherService) Reserve(ctx context.Context, agentID uuid.UUID) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.Availability == domain.AgentOffline {
		return nil, apperrors.ErrAgentOffline
	}
	if !agent.HasCapacity() {
		return nil, apperrors.ErrCapacityExceeded
	}

	agent.CurrentLoad++
	return s.agentRepo.Update(ctx, agent)
}

// Release returns one unit of a specific agent's capacity. The load never
// drops below zero.
func (s *MatcherService) Release(ctx context.Context, agentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return err
	}

	if agent.CurrentLoad > 0 {
		agent.CurrentLoad--
	}
	_, err = s.agentRepo.Update(ctx, agent)
	return err
}
