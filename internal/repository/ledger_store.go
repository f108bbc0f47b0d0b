package repository

import (
	"context"

	"pointledger/internal/ledger"
	"pointledger/internal/model"

	"gorm.io/gorm"
)

// LedgerStore 基于 MySQL 的账本存储
//
// 事务内的余额读取使用 SELECT ... FOR UPDATE，
// 同一账户上的两笔扣款会在行锁上排队，后到的一笔读到的是提交后的余额
type LedgerStore struct {
	db           *gorm.DB
	accountRepo  *AccountRepository
	transferRepo *TransferRepository
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{
		db:           db,
		accountRepo:  NewAccountRepository(db),
		transferRepo: NewTransferRepository(db),
	}
}

func (s *LedgerStore) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{tx: tx, store: s})
	})
	return classifyTxError(err)
}

func (s *LedgerStore) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.accountRepo.GetByUserID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (s *LedgerStore) Transfers(ctx context.Context, accountID string, page, pageSize int) ([]*model.Transfer, int64, error) {
	if _, err := s.accountRepo.GetByUserID(ctx, accountID); err != nil {
		return nil, 0, err
	}
	return s.transferRepo.ListByAccountID(ctx, accountID, page, pageSize)
}

func (s *LedgerStore) CreateAccount(ctx context.Context, accountID string) error {
	return s.accountRepo.Create(ctx, &model.Account{UserID: accountID})
}

type ledgerTx struct {
	tx    *gorm.DB
	store *LedgerStore
}

func (t *ledgerTx) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := t.store.accountRepo.GetByUserIDForUpdate(ctx, t.tx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (t *ledgerTx) SetBalance(ctx context.Context, accountID string, balance int64) error {
	return t.store.accountRepo.UpdateBalance(ctx, t.tx, accountID, balance)
}

func (t *ledgerTx) AppendTransfer(ctx context.Context, transfer *model.Transfer) error {
	return t.store.transferRepo.Create(ctx, t.tx, transfer)
}
