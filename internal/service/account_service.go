package service

import (
	"context"
	"errors"
	"fmt"

	"pointledger/internal/config"
	"pointledger/internal/emotion"
	"pointledger/internal/ledger"
	"pointledger/internal/model"

	"go.uber.org/zap"
)

// AccountService 开户和用户设置
type AccountService struct {
	engine   *ledger.Engine
	points   *PointService
	emotions *emotion.Service
	cfg      config.PointConfig
	logger   *zap.Logger
}

func NewAccountService(engine *ledger.Engine, points *PointService, emotions *emotion.Service, cfg config.PointConfig, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		engine:   engine,
		points:   points,
		emotions: emotions,
		cfg:      cfg,
		logger:   logger.Named("account_service"),
	}
}

// OpenRequest 开户参数，InviterID 和 Invitecode 可以为空
type OpenRequest struct {
	UserID     string
	InviterID  string
	Invitecode string
}

// Open 创建账户并发放初始积分，有邀请人时再发放邀请奖励
func (s *AccountService) Open(ctx context.Context, req OpenRequest) error {
	if req.InviterID != "" && req.InviterID == req.UserID {
		return ErrSelfTransfer
	}
	if model.IsSystemAccount(req.InviterID) {
		return ErrSystemAccount
	}
	if err := s.engine.OpenAccount(ctx, req.UserID); err != nil {
		return err
	}

	if s.cfg.Init > 0 {
		_, err := s.engine.Transfer(ctx, ledger.TransferRequest{
			From:   model.SystemAccountID,
			To:     req.UserID,
			Type:   model.TransferTypeInit,
			Amount: s.cfg.Init,
			DataID: req.UserID,
		})
		if err != nil {
			return fmt.Errorf("发放初始积分失败: %w", err)
		}
	}

	if req.InviterID == "" {
		return nil
	}
	// 邀请人不存在时账户照常开通，不发邀请奖励
	if _, err := s.engine.Balance(ctx, req.InviterID); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			s.logger.Warn("邀请人不存在，跳过邀请奖励",
				zap.String("user_id", req.UserID),
				zap.String("inviter_id", req.InviterID))
			return nil
		}
		return err
	}
	return s.points.RewardInviteRegister(ctx, req.UserID, req.InviterID, req.Invitecode)
}

// UpdateEmotions 整体替换用户的常用表情
func (s *AccountService) UpdateEmotions(ctx context.Context, userID, emotionList string) error {
	return s.emotions.Replace(ctx, userID, emotionList)
}

func (s *AccountService) Emotions(ctx context.Context, userID string) (string, error) {
	return s.emotions.Emojis(ctx, userID)
}
