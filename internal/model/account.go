package model

import (
	"time"
)

// SystemAccountID 系统账户ID
//
// 系统账户是奖励和手续费的对手方，余额允许为负，表示平台净发放的积分
const SystemAccountID = "sys"

// Account 用户积分账户表
// 余额只能由账本引擎在转账事务内修改
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"` // 用户ID，系统账户为 sys
	Balance   int64     `gorm:"not null;default:0" json:"balance"`                    // 当前积分余额
	Version   int       `gorm:"not null;default:0" json:"version"`                    // 每次余额变动 +1
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// IsSystemAccount 是否系统账户，系统账户余额可以为负
func IsSystemAccount(userID string) bool {
	return userID == SystemAccountID
}
