package repository

import (
	"context"

	"LinkMind/internal/modules/agent/domain/entity"
)

// CollectionRepository 知识库集合仓储
type CollectionRepository interface {
	// SaveCollection 在单个事务内整体替换同名集合（新索引完整落库前旧索引持续可读）
	SaveCollection(ctx context.Context, collection *entity.KnowledgeCollection) error
	// GetByName 按名称查询集合，不存在时返回 (nil, nil)
	GetByName(ctx context.Context, name string) (*entity.KnowledgeCollection, error)
	// GetIndexBlobs 按名称读取索引 blob 对，不存在时返回 (nil, nil, nil)
	GetIndexBlobs(ctx context.Context, name string) (indexData, storeData []byte, err error)
	ListCollections(ctx context.Context) ([]*entity.KnowledgeCollection, error)
	DeleteByName(ctx context.Context, name string) error
}
