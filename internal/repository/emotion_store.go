package repository

import (
	"context"

	"pointledger/internal/emotion"
	"pointledger/internal/model"

	"gorm.io/gorm"
)

// EmotionStore 基于 MySQL 的常用表情存储
type EmotionStore struct {
	db          *gorm.DB
	emotionRepo *EmotionRepository
}

func NewEmotionStore(db *gorm.DB) *EmotionStore {
	return &EmotionStore{
		db:          db,
		emotionRepo: NewEmotionRepository(db),
	}
}

func (s *EmotionStore) WithinTx(ctx context.Context, fn func(tx emotion.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&emotionTx{tx: tx, repo: s.emotionRepo})
	})
}

func (s *EmotionStore) ListByUser(ctx context.Context, userID string) ([]*model.Emotion, error) {
	return s.emotionRepo.ListByUserID(ctx, userID)
}

type emotionTx struct {
	tx   *gorm.DB
	repo *EmotionRepository
}

func (t *emotionTx) RemoveUserEmotions(ctx context.Context, userID string) error {
	return t.repo.RemoveUserEmotions(ctx, t.tx, userID)
}

func (t *emotionTx) Add(ctx context.Context, e *model.Emotion) error {
	return t.repo.Create(ctx, t.tx, e)
}
