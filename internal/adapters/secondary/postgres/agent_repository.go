package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/lorrc/support-engine/internal/core/errors"
	"github.com/lorrc/support-engine/internal/core/domain"
	"github.com/lorrc/support-engine/internal/core/ports"
	"github.com/lorrc/support-engine/internal/core/utils"
)

const agentColumns = `id, name, email, specialties, availability, current_load, capacity, rating`

// AgentRepository is the secondary adapter for the agent directory.
type AgentRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AgentRepository = (*AgentRepository)(nil)

// NewAgentRepository creates a new agent repository.
func NewAgentRepository(pool *pgxpool.Pool) ports.AgentRepository {
	return &AgentRepository{pool: pool}
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var (
		agent domain.Agent
		id    pgtype.UUID
	)

	err := row.Scan(
		&id,
		&agent.Name,
		&agent.Email,
		&agent.Specialties,
		&agent.Availability,
		&agent.CurrentLoad,
		&agent.Capacity,
		&agent.Rating,
	)
	if err != nil {
		return nil, err
	}

	agent.ID = uuid.UUID(id.Bytes)
	return &agent, nil
}

// GetByID retrieves a single agent by id.
func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	agent, err := scanAgent(GetDBTX(ctx, r.pool).QueryRow(ctx, query, utils.ToUUID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, err
	}
	return agent, nil
}

// List retrieves the full agent directory.
func (r *AgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY name ASC, id ASC`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]*domain.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agents, nil
}

// Update persists changes to an agent's availability, load and profile.
func (r *AgentRepository) Update(ctx context.Context, agent *domain.Agent) (*domain.Agent, error) {
	const query = `
UPDATE agents
SET name = $2,
    email = $3,
    specialties = $4,
    availability = $5,
    current_load = $6,
    capacity = $7,
    rating = $8
WHERE id = $1
RETURNING ` + agentColumns

	specialties := agent.Specialties
	if specialties == nil {
		specialties = []string{}
	}

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		utils.ToUUID(agent.ID),
		agent.Name,
		agent.Email,
		specialties,
		string(agent.Availability),
		agent.CurrentLoad,
		agent.Capacity,
		agent.Rating,
	)

	updated, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAgentNotFound
		}
		return nil, err
	}
	return updated, nil
}
