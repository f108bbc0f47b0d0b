package model

import (
	"errors"
	"time"
)

// ============================================================================
// 转账类型常量
// ============================================================================

// TransferType 转账类型，封闭枚举
type TransferType string

const (
	TransferTypeInit            TransferType = "init"            // 初始积分
	TransferTypeAccount2Account TransferType = "account2account" // 用户间转账
	TransferTypeBuyInvitecode   TransferType = "buy_invitecode"  // 购买邀请码
	TransferTypeDataExport      TransferType = "data_export"     // 数据导出
	TransferTypeInviteRegister  TransferType = "invite_register" // 邀请注册奖励（被邀请人）
	TransferTypeInvitecodeUsed  TransferType = "invitecode_used" // 邀请码被使用（邀请人）
	TransferTypeArticleReward   TransferType = "article_reward"  // 文章打赏
)

var transferTypes = map[TransferType]struct{}{
	TransferTypeInit:            {},
	TransferTypeAccount2Account: {},
	TransferTypeBuyInvitecode:   {},
	TransferTypeDataExport:      {},
	TransferTypeInviteRegister:  {},
	TransferTypeInvitecodeUsed:  {},
	TransferTypeArticleReward:   {},
}

// Valid 是否为已知的转账类型
func (t TransferType) Valid() bool {
	_, ok := transferTypes[t]
	return ok
}

var (
	ErrTransferAmount  = errors.New("转账金额必须大于0")
	ErrTransferType    = errors.New("未知的转账类型")
	ErrTransferAccount = errors.New("转账账户不能为空")
)

// ============================================================================
// 积分转账记录实体
// ============================================================================

// Transfer 积分转账表
//
// 只追加，不修改，不删除。每一次余额变动都对应一条记录，
// 任一账户的余额等于所有涉及该账户的转账增减之和
type Transfer struct {
	ID        string       `gorm:"type:varchar(64);primaryKey" json:"id"`
	FromID    string       `gorm:"type:varchar(64);index;not null" json:"from_id"`
	ToID      string       `gorm:"type:varchar(64);index;not null" json:"to_id"`
	Type      TransferType `gorm:"type:varchar(32);not null" json:"type"`
	Amount    int64        `gorm:"not null" json:"amount"`
	DataID    string       `gorm:"type:varchar(128)" json:"data_id"` // 业务数据，例如邀请码、通知对象ID
	CreatedAt time.Time    `gorm:"index;not null" json:"created_at"` // 由调用方传入
}

func (Transfer) TableName() string {
	return "point_transfer"
}

// NewTransfer 创建转账记录，校验金额、类型和账户
func NewTransfer(id, fromID, toID string, transferType TransferType, amount int64, dataID string, createdAt time.Time) (*Transfer, error) {
	if amount <= 0 {
		return nil, ErrTransferAmount
	}
	if !transferType.Valid() {
		return nil, ErrTransferType
	}
	if id == "" || fromID == "" || toID == "" {
		return nil, ErrTransferAccount
	}
	return &Transfer{
		ID:        id,
		FromID:    fromID,
		ToID:      toID,
		Type:      transferType,
		Amount:    amount,
		DataID:    dataID,
		CreatedAt: createdAt,
	}, nil
}

// Delta 本次转账对指定账户的余额影响
func (t *Transfer) Delta(accountID string) int64 {
	var delta int64
	if t.FromID == accountID {
		delta -= t.Amount
	}
	if t.ToID == accountID {
		delta += t.Amount
	}
	return delta
}
