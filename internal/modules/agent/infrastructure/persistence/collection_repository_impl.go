package persistence

import (
	"context"

	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/domain/repository"

	"gorm.io/gorm"
)

type collectionRepositoryImpl struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) repository.CollectionRepository {
	return &collectionRepositoryImpl{db: db}
}

// SaveCollection 在单个事务内整体替换同名集合
// 删除与写入在同一事务提交，失败回滚后旧索引保持可读
func (r *collectionRepositoryImpl) SaveCollection(ctx context.Context, collection *entity.KnowledgeCollection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", collection.Name).Delete(&entity.KnowledgeCollection{}).Error; err != nil {
			return err
		}
		return tx.Create(collection).Error
	})
}

func (r *collectionRepositoryImpl) GetByName(ctx context.Context, name string) (*entity.KnowledgeCollection, error) {
	var c entity.KnowledgeCollection
	err := r.db.WithContext(ctx).
		Omit("index_data", "store_data").
		Where("name = ?", name).Take(&c).Error
	if err == nil {
		return &c, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return nil, err
}

func (r *collectionRepositoryImpl) GetIndexBlobs(ctx context.Context, name string) ([]byte, []byte, error) {
	var c entity.KnowledgeCollection
	err := r.db.WithContext(ctx).
		Select("index_data", "store_data").
		Where("name = ?", name).Take(&c).Error
	if err == nil {
		return c.IndexData, c.StoreData, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil, nil
	}
	return nil, nil, err
}

func (r *collectionRepositoryImpl) ListCollections(ctx context.Context) ([]*entity.KnowledgeCollection, error) {
	var out []*entity.KnowledgeCollection
	err := r.db.WithContext(ctx).
		Omit("index_data", "store_data").
		Order("updated_at desc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *collectionRepositoryImpl) DeleteByName(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&entity.KnowledgeCollection{}).Error
}
