package repository

import (
	"context"

	"LinkMind/internal/modules/agent/domain/entity"
)

// AgentRepository 智能体配置仓储
type AgentRepository interface {
	CreateAgent(ctx context.Context, agent *entity.AgentConfig) error
	// GetByAgentID 不存在时返回 (nil, nil)
	GetByAgentID(ctx context.Context, agentID string) (*entity.AgentConfig, error)
	UpdateAgent(ctx context.Context, agent *entity.AgentConfig) error
	ListAgents(ctx context.Context) ([]*entity.AgentConfig, error)
}

// ModelRepository 模型凭证仓储
type ModelRepository interface {
	// GetByName 不存在时返回 (nil, nil)
	GetByName(ctx context.Context, modelName string) (*entity.ModelCredential, error)
	CreateModel(ctx context.Context, m *entity.ModelCredential) error
	ListModels(ctx context.Context) ([]*entity.ModelCredential, error)
}

// ConversationRepository 对话历史仓储（追加写）
type ConversationRepository interface {
	SaveTurn(ctx context.Context, record *entity.ConversationRecord) error
	// ListRecentTurns 返回最近 limit 条记录，按时间从新到旧
	ListRecentTurns(ctx context.Context, userID, agentID string, limit int) ([]*entity.ConversationRecord, error)
}
