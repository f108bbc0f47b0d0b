package repository

import (
	"context"

	"pointledger/internal/model"

	"gorm.io/gorm"
)

type EmotionRepository struct {
	db *gorm.DB
}

func NewEmotionRepository(db *gorm.DB) *EmotionRepository {
	return &EmotionRepository{db: db}
}

func (r *EmotionRepository) Create(ctx context.Context, tx *gorm.DB, emotion *model.Emotion) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(emotion).Error
}

// RemoveUserEmotions 删除用户的全部表情
func (r *EmotionRepository) RemoveUserEmotions(ctx context.Context, tx *gorm.DB, userID string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Emotion{}).Error
}

func (r *EmotionRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Emotion, error) {
	var emotions []*model.Emotion
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sort ASC").
		Find(&emotions).Error
	return emotions, err
}
