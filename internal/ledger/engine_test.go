package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pointledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transferSeq int64

func newTestEngine(t *testing.T, store Store, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithIDGenerator(func() string {
			return fmt.Sprintf("t-%d", atomic.AddInt64(&transferSeq, 1))
		}),
		WithRetry(3, 0),
	}, opts...)
	return NewEngine(store, opts...)
}

// fund 开户并从系统账户发放初始积分
func fund(t *testing.T, e *Engine, accountID string, amount int64) {
	t.Helper()
	require.NoError(t, e.OpenAccount(context.Background(), accountID))
	if amount == 0 {
		return
	}
	res, err := e.Transfer(context.Background(), TransferRequest{
		From:   model.SystemAccountID,
		To:     accountID,
		Type:   model.TransferTypeInit,
		Amount: amount,
	})
	require.NoError(t, err)
	require.True(t, res.Committed())
}

func balanceOf(t *testing.T, e *Engine, accountID string) int64 {
	t.Helper()
	b, err := e.Balance(context.Background(), accountID)
	require.NoError(t, err)
	return b
}

func TestTransferMovesPoints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := newTestEngine(t, store)
	fund(t, e, "alice", 100)
	fund(t, e, "bob", 0)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	res, err := e.Transfer(ctx, TransferRequest{
		From:   "alice",
		To:     "bob",
		Type:   model.TransferTypeAccount2Account,
		Amount: 30,
		DataID: "bob",
		Time:   at,
	})
	require.NoError(t, err)
	require.True(t, res.Committed())
	assert.NotEmpty(t, res.TransferID)

	assert.Equal(t, int64(70), balanceOf(t, e, "alice"))
	assert.Equal(t, int64(30), balanceOf(t, e, "bob"))

	list, total, err := e.Transfers(ctx, "bob", 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, res.TransferID, list[0].ID)
	assert.Equal(t, "alice", list[0].FromID)
	assert.Equal(t, model.TransferTypeAccount2Account, list[0].Type)
	assert.Equal(t, int64(30), list[0].Amount)
	assert.Equal(t, "bob", list[0].DataID)
	assert.True(t, at.Equal(list[0].CreatedAt))
}

func TestTransferInsufficientFundsLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := newTestEngine(t, store)
	fund(t, e, "alice", 5)
	fund(t, e, "bob", 0)
	before := store.TransferCount()

	res, err := e.Transfer(ctx, TransferRequest{
		From:   "alice",
		To:     "bob",
		Type:   model.TransferTypeAccount2Account,
		Amount: 6,
	})
	require.NoError(t, err)
	assert.True(t, res.InsufficientFunds())
	assert.False(t, res.Committed())
	assert.Empty(t, res.TransferID)

	assert.Equal(t, int64(5), balanceOf(t, e, "alice"))
	assert.Equal(t, int64(0), balanceOf(t, e, "bob"))
	assert.Equal(t, before, store.TransferCount())
}

func TestTransferSystemAccountMayGoNegative(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	fund(t, e, "alice", 88)

	assert.Equal(t, int64(-88), balanceOf(t, e, model.SystemAccountID))
	assert.Equal(t, int64(88), balanceOf(t, e, "alice"))
}

func TestTransferSelfIsLegal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := newTestEngine(t, store)
	fund(t, e, "alice", 10)

	res, err := e.Transfer(ctx, TransferRequest{
		From:   "alice",
		To:     "alice",
		Type:   model.TransferTypeAccount2Account,
		Amount: 10,
	})
	require.NoError(t, err)
	assert.True(t, res.Committed())
	assert.Equal(t, int64(10), balanceOf(t, e, "alice"))
	assert.Equal(t, 2, store.TransferCount())
}

func TestTransferRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())
	fund(t, e, "alice", 10)

	cases := map[string]TransferRequest{
		"zero amount":     {From: "alice", To: model.SystemAccountID, Type: model.TransferTypeDataExport, Amount: 0},
		"negative amount": {From: "alice", To: model.SystemAccountID, Type: model.TransferTypeDataExport, Amount: -5},
		"unknown type":    {From: "alice", To: model.SystemAccountID, Type: "lottery", Amount: 1},
		"missing from":    {To: model.SystemAccountID, Type: model.TransferTypeDataExport, Amount: 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := e.Transfer(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidTransfer)
			assert.False(t, errors.Is(err, ErrLedgerWrite))
			assert.False(t, res.Committed())
		})
	}
	assert.Equal(t, int64(10), balanceOf(t, e, "alice"))
}

func TestTransferUnknownAccount(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	fund(t, e, "alice", 10)

	_, err := e.Transfer(context.Background(), TransferRequest{
		From:   "alice",
		To:     "ghost",
		Type:   model.TransferTypeAccount2Account,
		Amount: 1,
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.False(t, errors.Is(err, ErrLedgerWrite))
	assert.Equal(t, int64(10), balanceOf(t, e, "alice"))
}

// faultyStore 在事务内注入存储失败
type faultyStore struct {
	Store
	appendErr   error
	conflicts   int32 // WithinTx 前 n 次直接返回 ErrConflict
	txAttempts  int32
	debitedSeen int32
}

func (s *faultyStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	atomic.AddInt32(&s.txAttempts, 1)
	if atomic.AddInt32(&s.conflicts, -1) >= 0 {
		return fmt.Errorf("deadlock found: %w", ErrConflict)
	}
	return s.Store.WithinTx(ctx, func(tx Tx) error {
		return fn(&faultyTx{Tx: tx, store: s})
	})
}

type faultyTx struct {
	Tx
	store *faultyStore
}

func (tx *faultyTx) SetBalance(ctx context.Context, accountID string, balance int64) error {
	atomic.AddInt32(&tx.store.debitedSeen, 1)
	return tx.Tx.SetBalance(ctx, accountID, balance)
}

func (tx *faultyTx) AppendTransfer(ctx context.Context, transfer *model.Transfer) error {
	if tx.store.appendErr != nil {
		return tx.store.appendErr
	}
	return tx.Tx.AppendTransfer(ctx, transfer)
}

func TestTransferRollsBackWhenAppendFails(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	seed := newTestEngine(t, mem)
	fund(t, seed, "alice", 50)
	fund(t, seed, "bob", 0)
	countBefore := mem.TransferCount()

	storageErr := errors.New("disk full")
	faulty := &faultyStore{Store: mem, appendErr: storageErr}
	e := newTestEngine(t, faulty)

	res, err := e.Transfer(ctx, TransferRequest{
		From:   "alice",
		To:     "bob",
		Type:   model.TransferTypeAccount2Account,
		Amount: 20,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLedgerWrite)
	assert.ErrorIs(t, err, storageErr)
	assert.False(t, res.Committed())
	assert.False(t, res.InsufficientFunds())

	// 扣款已经在事务内发生过，但没有对外可见
	assert.Equal(t, int32(2), atomic.LoadInt32(&faulty.debitedSeen))
	assert.Equal(t, int64(50), balanceOf(t, seed, "alice"))
	assert.Equal(t, int64(0), balanceOf(t, seed, "bob"))
	assert.Equal(t, countBefore, mem.TransferCount())
	assert.NoError(t, mem.Reconcile())
}

func TestTransferRetriesConflicts(t *testing.T) {
	mem := NewMemoryStore()
	seed := newTestEngine(t, mem)
	fund(t, seed, "alice", 50)

	faulty := &faultyStore{Store: mem, conflicts: 2}
	e := newTestEngine(t, faulty, WithRetry(3, time.Millisecond))

	res, err := e.Transfer(context.Background(), TransferRequest{
		From:   "alice",
		To:     model.SystemAccountID,
		Type:   model.TransferTypeDataExport,
		Amount: 20,
	})
	require.NoError(t, err)
	assert.True(t, res.Committed())
	assert.Equal(t, int32(3), atomic.LoadInt32(&faulty.txAttempts))
	assert.Equal(t, int64(30), balanceOf(t, seed, "alice"))
}

func TestTransferConflictRetryBudgetExhausted(t *testing.T) {
	mem := NewMemoryStore()
	seed := newTestEngine(t, mem)
	fund(t, seed, "alice", 50)

	faulty := &faultyStore{Store: mem, conflicts: 10}
	e := newTestEngine(t, faulty, WithRetry(2, 0))

	_, err := e.Transfer(context.Background(), TransferRequest{
		From:   "alice",
		To:     model.SystemAccountID,
		Type:   model.TransferTypeDataExport,
		Amount: 20,
	})
	assert.ErrorIs(t, err, ErrLedgerWrite)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int32(3), atomic.LoadInt32(&faulty.txAttempts))
	assert.Equal(t, int64(50), balanceOf(t, seed, "alice"))
}

func TestTransferCanceledContext(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	fund(t, e, "alice", 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Transfer(ctx, TransferRequest{
		From:   "alice",
		To:     model.SystemAccountID,
		Type:   model.TransferTypeDataExport,
		Amount: 20,
	})
	assert.ErrorIs(t, err, ErrLedgerWrite)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(50), balanceOf(t, e, "alice"))
}

func TestConcurrentSpendOnlyOneSucceeds(t *testing.T) {
	for round := 0; round < 50; round++ {
		store := NewMemoryStore()
		e := newTestEngine(t, store)
		fund(t, e, "alice", 10)
		fund(t, e, "bob", 0)
		fund(t, e, "carol", 0)

		var (
			wg           sync.WaitGroup
			committed    int32
			insufficient int32
			start        = make(chan struct{})
		)
		for _, to := range []string{"bob", "carol"} {
			wg.Add(1)
			go func(to string) {
				defer wg.Done()
				<-start
				res, err := e.Transfer(context.Background(), TransferRequest{
					From:   "alice",
					To:     to,
					Type:   model.TransferTypeAccount2Account,
					Amount: 10,
				})
				assert.NoError(t, err)
				if res.Committed() {
					atomic.AddInt32(&committed, 1)
				}
				if res.InsufficientFunds() {
					atomic.AddInt32(&insufficient, 1)
				}
			}(to)
		}
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), committed)
		require.Equal(t, int32(1), insufficient)
		require.Equal(t, int64(0), balanceOf(t, e, "alice"))
		require.Equal(t, int64(10), balanceOf(t, e, "bob")+balanceOf(t, e, "carol"))
	}
}

func TestConcurrentTransfersConserveUserPoints(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(t, store)
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, u := range users {
		fund(t, e, u, 100)
	}
	issued := -balanceOf(t, e, model.SystemAccountID)
	totalBefore := store.TotalBalance()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				from := users[(w+i)%len(users)]
				to := users[(w+i*3+1)%len(users)]
				_, err := e.Transfer(context.Background(), TransferRequest{
					From:   from,
					To:     to,
					Type:   model.TransferTypeAccount2Account,
					Amount: int64(1 + (i*7+w)%40),
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	var sum int64
	for _, u := range users {
		b := balanceOf(t, e, u)
		assert.GreaterOrEqual(t, b, int64(0), u)
		sum += b
	}
	assert.Equal(t, issued, sum)
	assert.Equal(t, totalBefore, store.TotalBalance())
	assert.Equal(t, -issued, balanceOf(t, e, model.SystemAccountID))
	assert.NoError(t, store.Reconcile())
}

func TestBalanceRereadIsStable(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	fund(t, e, "alice", 42)

	first := balanceOf(t, e, "alice")
	second := balanceOf(t, e, "alice")
	assert.Equal(t, first, second)

	_, err := e.Balance(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestOpenAccount(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())

	require.NoError(t, e.OpenAccount(ctx, "alice"))
	assert.ErrorIs(t, e.OpenAccount(ctx, "alice"), ErrAccountExists)
	assert.ErrorIs(t, e.OpenAccount(ctx, model.SystemAccountID), ErrInvalidTransfer)
	assert.ErrorIs(t, e.OpenAccount(ctx, ""), ErrInvalidTransfer)
	assert.Equal(t, int64(0), balanceOf(t, e, "alice"))
}

func TestTransfersPaging(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, NewMemoryStore())
	fund(t, e, "alice", 0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := e.Transfer(ctx, TransferRequest{
			From:   model.SystemAccountID,
			To:     "alice",
			Type:   model.TransferTypeArticleReward,
			Amount: int64(i + 1),
			Time:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page1, total, err := e.Transfers(ctx, "alice", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(5), page1[0].Amount)
	assert.Equal(t, int64(4), page1[1].Amount)

	page3, _, err := e.Transfers(ctx, "alice", 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, int64(1), page3[0].Amount)

	empty, _, err := e.Transfers(ctx, "alice", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// pagingStore 记录引擎传给存储层的分页参数
type pagingStore struct {
	*MemoryStore
	page, pageSize int
}

func (s *pagingStore) Transfers(ctx context.Context, accountID string, page, pageSize int) ([]*model.Transfer, int64, error) {
	s.page, s.pageSize = page, pageSize
	return s.MemoryStore.Transfers(ctx, accountID, page, pageSize)
}

func TestTransfersPagingBounds(t *testing.T) {
	ctx := context.Background()
	store := &pagingStore{MemoryStore: NewMemoryStore()}
	e := newTestEngine(t, store)
	fund(t, e, "alice", 0)

	for i := 0; i < MaxPageSize+5; i++ {
		_, err := e.Transfer(ctx, TransferRequest{
			From:   model.SystemAccountID,
			To:     "alice",
			Type:   model.TransferTypeArticleReward,
			Amount: 1,
		})
		require.NoError(t, err)
	}

	list, total, err := e.Transfers(ctx, "alice", 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxPageSize+5), total)
	assert.Len(t, list, MaxPageSize)
	assert.Equal(t, MaxPageSize, store.pageSize)

	// 偏移量溢出的页码返回空页
	huge, total, err := e.Transfers(ctx, "alice", math.MaxInt/4+2, 4)
	require.NoError(t, err)
	assert.Empty(t, huge)
	assert.Equal(t, int64(MaxPageSize+5), total)
	assert.LessOrEqual(t, int64(store.page-1)*int64(store.pageSize), int64(math.MaxInt32))

	huge, _, err = e.Transfers(ctx, "alice", math.MaxInt, MaxPageSize)
	require.NoError(t, err)
	assert.Empty(t, huge)
}

func TestMemoryStoreTransfersHugePage(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(t, store)
	fund(t, e, "alice", 10)

	list, total, err := store.Transfers(context.Background(), "alice", math.MaxInt/4+2, 4)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, int64(1), total)
}
