package service

import (
	"context"
	"errors"
	"fmt"

	"pointledger/internal/config"
	"pointledger/internal/infrastructure/lock"
	"pointledger/internal/invitecode"
	"pointledger/internal/ledger"
	"pointledger/internal/model"
	"pointledger/internal/notification"

	"go.uber.org/zap"
)

var (
	ErrTransferTooSmall = errors.New("转账积分低于最小值")
	ErrSelfTransfer     = errors.New("不能给自己转账")
	ErrSystemBusy       = errors.New("系统繁忙，请稍后重试")
	ErrSystemAccount    = errors.New("不能使用系统账户")
)

// PurchaseResult 扣分购买的结果
//
// DataID 为本次购买得到的邀请码或导出ID，余额不足时为空
type PurchaseResult struct {
	ledger.Result
	DataID string
}

// PointService 积分相关的业务流程，所有余额变动都经过 ledger.Engine
type PointService struct {
	engine  *ledger.Engine
	locker  lock.Locker
	emitter notification.Emitter
	codes   invitecode.Generator
	cfg     config.PointConfig
	logger  *zap.Logger
}

func NewPointService(
	engine *ledger.Engine,
	locker lock.Locker,
	emitter notification.Emitter,
	codes invitecode.Generator,
	cfg config.PointConfig,
	logger *zap.Logger,
) *PointService {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if codes == nil {
		codes = invitecode.UUIDGenerator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PointService{
		engine:  engine,
		locker:  locker,
		emitter: emitter,
		codes:   codes,
		cfg:     cfg,
		logger:  logger.Named("point_service"),
	}
}

// TransferPoints 用户之间转账，成功后给收款方发通知
func (s *PointService) TransferPoints(ctx context.Context, fromID, toID string, amount int64) (ledger.Result, error) {
	if amount < s.cfg.TransferMin {
		return ledger.Result{}, fmt.Errorf("%w: 最少 %d", ErrTransferTooSmall, s.cfg.TransferMin)
	}
	if fromID == toID {
		return ledger.Result{}, ErrSelfTransfer
	}
	if model.IsSystemAccount(fromID) || model.IsSystemAccount(toID) {
		return ledger.Result{}, ErrSystemAccount
	}

	unlock, err := s.locker.LockUser(ctx, fromID)
	if err != nil {
		return ledger.Result{}, fmt.Errorf("%w: %w", ErrSystemBusy, err)
	}
	defer unlock()

	result, err := s.engine.Transfer(ctx, ledger.TransferRequest{
		From:   fromID,
		To:     toID,
		Type:   model.TransferTypeAccount2Account,
		Amount: amount,
		DataID: toID,
	})
	if err != nil {
		return result, err
	}
	if !result.Committed() {
		return result, nil
	}

	// 转账已提交，通知失败只记录日志
	err = s.emitter.EmitPointTransfer(ctx, model.PointTransferNotification{
		UserID: toID,
		DataID: result.TransferID,
	})
	if err != nil {
		s.logger.Error("发送转账通知失败",
			zap.String("transfer_id", result.TransferID),
			zap.String("to", toID),
			zap.Error(err))
	}
	return result, nil
}

// BuyInvitecode 用积分购买邀请码，余额不足时生成的邀请码直接丢弃
func (s *PointService) BuyInvitecode(ctx context.Context, userID string) (PurchaseResult, error) {
	code := s.codes.Generate(userID)
	return s.charge(ctx, userID, model.TransferTypeBuyInvitecode, s.cfg.BuyInvitecode, code)
}

// ChargeDataExport 扣除导出帖子的费用
func (s *PointService) ChargeDataExport(ctx context.Context, userID string) (PurchaseResult, error) {
	return s.charge(ctx, userID, model.TransferTypeDataExport, s.cfg.DataExport, invitecode.NewExportID())
}

func (s *PointService) charge(ctx context.Context, userID string, typ model.TransferType, price int64, dataID string) (PurchaseResult, error) {
	if model.IsSystemAccount(userID) {
		return PurchaseResult{}, ErrSystemAccount
	}
	unlock, err := s.locker.LockUser(ctx, userID)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("%w: %w", ErrSystemBusy, err)
	}
	defer unlock()

	result, err := s.engine.Transfer(ctx, ledger.TransferRequest{
		From:   userID,
		To:     model.SystemAccountID,
		Type:   typ,
		Amount: price,
		DataID: dataID,
	})
	if err != nil || !result.Committed() {
		return PurchaseResult{Result: result}, err
	}

	s.logger.Info("积分消费成功",
		zap.String("user_id", userID),
		zap.String("type", string(typ)),
		zap.Int64("amount", price),
		zap.String("transfer_id", result.TransferID))
	return PurchaseResult{Result: result, DataID: dataID}, nil
}

// RewardInviteRegister 邀请注册奖励：新用户和邀请人各从系统账户获得积分
//
// 两笔转账各自独立提交，第二笔失败时第一笔不会回滚
func (s *PointService) RewardInviteRegister(ctx context.Context, newUserID, inviterID, code string) error {
	if newUserID == inviterID {
		return ErrSelfTransfer
	}
	if model.IsSystemAccount(newUserID) || model.IsSystemAccount(inviterID) {
		return ErrSystemAccount
	}

	_, err := s.engine.Transfer(ctx, ledger.TransferRequest{
		From:   model.SystemAccountID,
		To:     newUserID,
		Type:   model.TransferTypeInviteRegister,
		Amount: s.cfg.InviteRegister,
		DataID: inviterID,
	})
	if err != nil {
		return fmt.Errorf("发放注册奖励失败: %w", err)
	}

	_, err = s.engine.Transfer(ctx, ledger.TransferRequest{
		From:   model.SystemAccountID,
		To:     inviterID,
		Type:   model.TransferTypeInvitecodeUsed,
		Amount: s.cfg.InvitecodeUsed,
		DataID: code,
	})
	if err != nil {
		return fmt.Errorf("发放邀请奖励失败: %w", err)
	}
	return nil
}

func (s *PointService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.engine.Balance(ctx, userID)
}

func (s *PointService) Transfers(ctx context.Context, userID string, page, pageSize int) ([]*model.Transfer, int64, error) {
	return s.engine.Transfers(ctx, userID, page, pageSize)
}
