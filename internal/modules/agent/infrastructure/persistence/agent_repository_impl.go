package persistence

import (
	"context"

	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/domain/repository"

	"gorm.io/gorm"
)

type agentRepositoryImpl struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) repository.AgentRepository {
	return &agentRepositoryImpl{db: db}
}

func (r *agentRepositoryImpl) CreateAgent(ctx context.Context, agent *entity.AgentConfig) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

func (r *agentRepositoryImpl) GetByAgentID(ctx context.Context, agentID string) (*entity.AgentConfig, error) {
	var a entity.AgentConfig
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).Take(&a).Error
	if err == nil {
		return &a, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return nil, err
}

func (r *agentRepositoryImpl) UpdateAgent(ctx context.Context, agent *entity.AgentConfig) error {
	return r.db.WithContext(ctx).
		Model(&entity.AgentConfig{}).
		Where("agent_id = ?", agent.AgentId).
		Updates(agent).Error
}

func (r *agentRepositoryImpl) ListAgents(ctx context.Context) ([]*entity.AgentConfig, error) {
	var out []*entity.AgentConfig
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
