package persistence

import (
	"context"

	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/domain/repository"

	"gorm.io/gorm"
)

type conversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &conversationRepositoryImpl{db: db}
}

func (r *conversationRepositoryImpl) SaveTurn(ctx context.Context, record *entity.ConversationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListRecentTurns 按时间从新到旧取最近 limit 条
func (r *conversationRepositoryImpl) ListRecentTurns(ctx context.Context, userID, agentID string, limit int) ([]*entity.ConversationRecord, error) {
	var out []*entity.ConversationRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND agent_id = ?", userID, agentID).
		Order("timestamp desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
