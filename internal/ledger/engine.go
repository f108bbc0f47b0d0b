package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"pointledger/internal/infrastructure/metrics"
	"pointledger/internal/model"
	"pointledger/pkg/idgen"

	"go.uber.org/zap"
)

// Outcome 转账结果
type Outcome int

const (
	OutcomeCommitted         Outcome = iota + 1 // 已提交
	OutcomeInsufficientFunds                    // 余额不足，没有任何变更
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeInsufficientFunds:
		return "insufficient_funds"
	default:
		return "unknown"
	}
}

// Result 转账的业务结果
//
// 只有 Outcome 为 OutcomeCommitted 时 TransferID 才非空；
// 余额不足属于预期内的结果，不通过 error 返回
type Result struct {
	Outcome    Outcome
	TransferID string
}

func (r Result) Committed() bool {
	return r.Outcome == OutcomeCommitted
}

func (r Result) InsufficientFunds() bool {
	return r.Outcome == OutcomeInsufficientFunds
}

// TransferRequest 一次积分转移
type TransferRequest struct {
	From   string
	To     string
	Type   model.TransferType
	Amount int64
	DataID string
	Time   time.Time // 为空时取当前时间
}

var errInsufficientFunds = errors.New("余额不足")

// Engine 转账引擎，无状态，可以被多个请求并发调用
//
// 引擎不做身份校验，也不对重复调用去重：结果未知时调用方不能直接重试
type Engine struct {
	store         Store
	maxRetries    int
	retryInterval time.Duration
	newID         func() string
	logger        *zap.Logger
}

type Option func(*Engine)

// WithRetry 设置冲突重试次数和间隔
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(e *Engine) {
		e.maxRetries = maxRetries
		e.retryInterval = interval
	}
}

// WithIDGenerator 替换转账ID生成函数
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		maxRetries:    3,
		retryInterval: 20 * time.Millisecond,
		newID:         idgen.GenerateTransferID,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer 执行一次转账
//
// 余额检查、扣款、入账、写转账记录在同一个事务内完成。
// 返回值三种情况：
//   - Result.Committed()：已提交，TransferID 为新转账ID
//   - Result.InsufficientFunds()：余额不足，error 为 nil，没有任何变更
//   - error：ErrInvalidTransfer / ErrAccountNotFound 为参数问题，ErrLedgerWrite 为存储失败，均已回滚
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (Result, error) {
	start := time.Now()

	if req.Time.IsZero() {
		req.Time = time.Now()
	}
	if req.From == "" || req.To == "" {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidTransfer, model.ErrTransferAccount)
	}
	record, err := model.NewTransfer(e.newID(), req.From, req.To, req.Type, req.Amount, req.DataID, req.Time)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}

	result, err := e.transferWithRetry(ctx, record)
	metrics.ObserveTransfer(string(req.Type), outcomeLabel(result, err), time.Since(start))
	return result, err
}

func (e *Engine) transferWithRetry(ctx context.Context, record *model.Transfer) (Result, error) {
	for attempt := 0; ; attempt++ {
		result, err := e.transferOnce(ctx, record)
		if err == nil {
			return result, nil
		}

		switch {
		case errors.Is(err, ErrAccountNotFound):
			return Result{}, err
		case errors.Is(err, ErrConflict) && attempt < e.maxRetries:
			metrics.LedgerConflictRetries.Inc()
			e.logger.Warn("账本事务冲突，准备重试",
				zap.String("transfer_id", record.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if waitErr := sleepCtx(ctx, e.retryInterval); waitErr != nil {
				return Result{}, fmt.Errorf("%w: %w", ErrLedgerWrite, waitErr)
			}
			continue
		}

		e.logger.Error("转账写入失败",
			zap.String("transfer_id", record.ID),
			zap.String("from", record.FromID),
			zap.String("to", record.ToID),
			zap.String("type", string(record.Type)),
			zap.Int64("amount", record.Amount),
			zap.Error(err))
		if errors.Is(err, ErrLedgerWrite) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
}

func (e *Engine) transferOnce(ctx context.Context, record *model.Transfer) (Result, error) {
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		// 按账户ID顺序加锁，避免两笔反向转账互相等待
		first, second := record.FromID, record.ToID
		if second < first {
			first, second = second, first
		}

		balances := make(map[string]int64, 2)
		for _, id := range []string{first, second} {
			if _, ok := balances[id]; ok {
				continue
			}
			balance, err := tx.Balance(ctx, id)
			if err != nil {
				return err
			}
			balances[id] = balance
		}

		if !model.IsSystemAccount(record.FromID) && balances[record.FromID] < record.Amount {
			return errInsufficientFunds
		}

		balances[record.FromID] -= record.Amount
		balances[record.ToID] += record.Amount

		if err := tx.SetBalance(ctx, record.FromID, balances[record.FromID]); err != nil {
			return err
		}
		if record.ToID != record.FromID {
			if err := tx.SetBalance(ctx, record.ToID, balances[record.ToID]); err != nil {
				return err
			}
		}
		return tx.AppendTransfer(ctx, record)
	})

	if errors.Is(err, errInsufficientFunds) {
		return Result{Outcome: OutcomeInsufficientFunds}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeCommitted, TransferID: record.ID}, nil
}

// Balance 查询账户余额，不加锁
func (e *Engine) Balance(ctx context.Context, accountID string) (int64, error) {
	return e.store.Balance(ctx, accountID)
}

// Transfers 分页查询账户相关的转账记录，按时间倒序
func (e *Engine) Transfers(ctx context.Context, accountID string, page, pageSize int) ([]*model.Transfer, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	// 偏移量限制在 int32 内，超出的页码一定没有数据
	if page > maxPage(pageSize) {
		page = maxPage(pageSize)
	}
	return e.store.Transfers(ctx, accountID, page, pageSize)
}

// OpenAccount 创建余额为0的账户，初始积分需要另外通过转账发放
func (e *Engine) OpenAccount(ctx context.Context, accountID string) error {
	if accountID == "" || model.IsSystemAccount(accountID) {
		return fmt.Errorf("%w: 账户ID不合法", ErrInvalidTransfer)
	}
	return e.store.CreateAccount(ctx, accountID)
}

// MaxPageSize 转账记录分页的最大条数
const MaxPageSize = 100

func maxPage(pageSize int) int {
	return math.MaxInt32/pageSize + 1
}

func outcomeLabel(result Result, err error) string {
	switch {
	case err == nil:
		return result.Outcome.String()
	case errors.Is(err, ErrInvalidTransfer), errors.Is(err, ErrAccountNotFound):
		return "invalid"
	default:
		return "failed"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
