// Package ledger 积分账本：账户余额与只追加的转账记录。
//
// 余额只能通过 Engine.Transfer 修改，Engine 是 Tx.SetBalance 的唯一调用方。
package ledger

import (
	"context"
	"errors"

	"pointledger/internal/model"
)

var (
	ErrInvalidTransfer = errors.New("转账参数不合法")
	ErrAccountNotFound = errors.New("账户不存在")
	ErrAccountExists   = errors.New("账户已存在")
	// ErrConflict 存储层的可重试冲突，例如死锁或锁等待超时
	ErrConflict = errors.New("账本事务冲突")
	// ErrLedgerWrite 账本写入失败，事务已经整体回滚
	ErrLedgerWrite = errors.New("账本写入失败")
)

// Tx 一次账本事务内可用的操作
//
// Balance 是加锁读，锁一直持有到事务结束；同一事务内的读能看到自己的写
type Tx interface {
	Balance(ctx context.Context, accountID string) (int64, error)
	SetBalance(ctx context.Context, accountID string, balance int64) error
	AppendTransfer(ctx context.Context, transfer *model.Transfer) error
}

// Store 账本存储
//
// WithinTx 开启事务并执行 fn：fn 返回 nil 则提交，否则回滚并原样返回 fn 的错误。
// 任何退出路径（包括 panic）都会释放事务，调用方不需要手动 commit/rollback。
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Balance(ctx context.Context, accountID string) (int64, error)
	Transfers(ctx context.Context, accountID string, page, pageSize int) ([]*model.Transfer, int64, error)
	CreateAccount(ctx context.Context, accountID string) error
}
