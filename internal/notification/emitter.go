// Package notification 转账成功后的通知投递。
//
// 账本本身从不发通知，由调用方在转账提交后调用 Emitter
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"pointledger/internal/model"
	"pointledger/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Emitter 通知投递
type Emitter interface {
	EmitPointTransfer(ctx context.Context, n model.PointTransferNotification) error
}

type outboxWriter interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// OutboxEmitter 写入 outbox 表，由 OutboxSender 异步投递到 Kafka
type OutboxEmitter struct {
	outbox outboxWriter
	topic  string
}

func NewOutboxEmitter(outbox outboxWriter, topic string) *OutboxEmitter {
	return &OutboxEmitter{outbox: outbox, topic: topic}
}

func (e *OutboxEmitter) EmitPointTransfer(ctx context.Context, n model.PointTransferNotification) error {
	n.Type = model.NotificationTypePointTransfer
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("序列化通知失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: idgen.GenerateMessageKey(),
		Topic:      e.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := e.outbox.Create(ctx, nil, msg); err != nil {
		return fmt.Errorf("写入通知消息失败: %w", err)
	}
	return nil
}

// LogEmitter 只记录日志，memory 存储模式下使用
type LogEmitter struct {
	logger *zap.Logger
}

func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) EmitPointTransfer(ctx context.Context, n model.PointTransferNotification) error {
	e.logger.Info("积分转账通知",
		zap.String("user_id", n.UserID),
		zap.String("data_id", n.DataID))
	return nil
}
