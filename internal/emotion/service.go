// Package emotion 管理用户的常用表情列表。
package emotion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pointledger/internal/model"

	"go.uber.org/zap"
)

// Delimiter 表情列表的分隔符
const Delimiter = ","

var ErrUpdateFailed = errors.New("更新常用表情失败")

// Tx 一次替换事务内可用的操作
type Tx interface {
	RemoveUserEmotions(ctx context.Context, userID string) error
	Add(ctx context.Context, emotion *model.Emotion) error
}

// Store 表情存储，WithinTx 的语义与账本存储相同：fn 返回 nil 提交，否则回滚
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	ListByUser(ctx context.Context, userID string) ([]*model.Emotion, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Parse 拆分表情列表
//
// 按分隔符拆分，跳过空白项和本次已经出现过的项（区分大小写），保留首次出现的顺序。
// 非空白的项原样保留，不做 trim
func Parse(raw string) []string {
	tokens := strings.Split(raw, Delimiter)
	seen := make(map[string]struct{}, len(tokens))
	list := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if strings.TrimSpace(token) == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		list = append(list, token)
	}
	return list
}

// Replace 用新列表整体替换用户的常用表情
//
// 先清空再逐条插入，在同一个事务内完成；失败时整体回滚，旧列表保持不变
func (s *Service) Replace(ctx context.Context, userID, rawList string) error {
	contents := Parse(rawList)

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.RemoveUserEmotions(ctx, userID); err != nil {
			return err
		}
		for sort, content := range contents {
			emotion := &model.Emotion{
				UserID:  userID,
				Content: content,
				Sort:    sort,
				Type:    model.EmotionTypeEmoji,
			}
			if err := tx.Add(ctx, emotion); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("设置用户常用表情失败", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("%w [id=%s]: %w", ErrUpdateFailed, userID, err)
	}
	return nil
}

// Emojis 按顺序返回用户的常用表情，用分隔符连接
func (s *Service) Emojis(ctx context.Context, userID string) (string, error) {
	emotions, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	contents := make([]string, 0, len(emotions))
	for _, e := range emotions {
		contents = append(contents, e.Content)
	}
	return strings.Join(contents, Delimiter), nil
}
