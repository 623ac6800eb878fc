package persistence

import (
	"context"

	"LinkMind/internal/modules/agent/domain/entity"
	"LinkMind/internal/modules/agent/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type modelRepositoryImpl struct {
	db *gorm.DB
}

func NewModelRepository(db *gorm.DB) repository.ModelRepository {
	return &modelRepositoryImpl{db: db}
}

func (r *modelRepositoryImpl) GetByName(ctx context.Context, modelName string) (*entity.ModelCredential, error) {
	var m entity.ModelCredential
	err := r.db.WithContext(ctx).Where("model_name = ?", modelName).Take(&m).Error
	if err == nil {
		return &m, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return nil, err
}

// CreateModel 同名凭证覆盖更新
func (r *modelRepositoryImpl) CreateModel(ctx context.Context, m *entity.ModelCredential) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "model_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"model_key", "updated_at"}),
	}).Create(m).Error
}

func (r *modelRepositoryImpl) ListModels(ctx context.Context) ([]*entity.ModelCredential, error) {
	var out []*entity.ModelCredential
	err := r.db.WithContext(ctx).Order("model_name").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
