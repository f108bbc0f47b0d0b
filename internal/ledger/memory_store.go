package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pointledger/internal/model"
)

// MemoryStore 进程内账本存储
//
// 事务串行执行：WithinTx 在整个事务期间持有写锁，写操作先缓存在事务内，
// 提交时一次性生效，回滚直接丢弃
type MemoryStore struct {
	mu          sync.RWMutex
	balances    map[string]int64
	transfers   []*model.Transfer
	transferIDs map[string]struct{}
}

// NewMemoryStore 创建存储，系统账户总是存在
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:    map[string]int64{model.SystemAccountID: 0},
		transferIDs: make(map[string]struct{}),
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s, balances: make(map[string]int64)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, balance := range tx.balances {
		s.balances[id] = balance
	}
	for _, t := range tx.appended {
		s.transfers = append(s.transfers, t)
		s.transferIDs[t.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Balance(ctx context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance, ok := s.balances[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (s *MemoryStore) Transfers(ctx context.Context, accountID string, page, pageSize int) ([]*model.Transfer, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.balances[accountID]; !ok {
		return nil, 0, ErrAccountNotFound
	}

	var matched []*model.Transfer
	// 倒序收集，时间相同的记录后写入的排在前面
	for i := len(s.transfers) - 1; i >= 0; i-- {
		t := s.transfers[i]
		if t.FromID == accountID || t.ToID == accountID {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if page < 1 || pageSize < 1 || page-1 > len(matched)/pageSize {
		return []*model.Transfer{}, total, nil
	}
	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []*model.Transfer{}, total, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	list := make([]*model.Transfer, 0, end-offset)
	for _, t := range matched[offset:end] {
		copied := *t
		list = append(list, &copied)
	}
	return list, total, nil
}

func (s *MemoryStore) CreateAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[accountID]; ok {
		return ErrAccountExists
	}
	s.balances[accountID] = 0
	return nil
}

// TotalBalance 所有账户余额之和，用于校验积分守恒
func (s *MemoryStore) TotalBalance() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, balance := range s.balances {
		total += balance
	}
	return total
}

// Reconcile 用转账记录重算每个账户的余额，与当前余额不一致时返回错误
func (s *MemoryStore) Reconcile() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for accountID, balance := range s.balances {
		var replayed int64
		for _, t := range s.transfers {
			replayed += t.Delta(accountID)
		}
		if replayed != balance {
			return fmt.Errorf("账户 %s 余额 %d 与转账记录 %d 不一致", accountID, balance, replayed)
		}
	}
	return nil
}

// TransferCount 已提交的转账记录数
func (s *MemoryStore) TransferCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transfers)
}

type memoryTx struct {
	store    *MemoryStore
	balances map[string]int64
	appended []*model.Transfer
}

func (tx *memoryTx) Balance(ctx context.Context, accountID string) (int64, error) {
	if balance, ok := tx.balances[accountID]; ok {
		return balance, nil
	}
	balance, ok := tx.store.balances[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (tx *memoryTx) SetBalance(ctx context.Context, accountID string, balance int64) error {
	if _, ok := tx.store.balances[accountID]; !ok {
		return ErrAccountNotFound
	}
	tx.balances[accountID] = balance
	return nil
}

func (tx *memoryTx) AppendTransfer(ctx context.Context, transfer *model.Transfer) error {
	if _, ok := tx.store.transferIDs[transfer.ID]; ok {
		return fmt.Errorf("转账ID重复: %s", transfer.ID)
	}
	for _, t := range tx.appended {
		if t.ID == transfer.ID {
			return fmt.Errorf("转账ID重复: %s", transfer.ID)
		}
	}
	copied := *transfer
	tx.appended = append(tx.appended, &copied)
	return nil
}
