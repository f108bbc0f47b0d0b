package repository

import (
	"errors"
	"fmt"

	"pointledger/internal/ledger"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlErrDuplicateEntry   = 1062
	mysqlErrLockWaitTimeout  = 1205
	mysqlErrDeadlockDetected = 1213
)

func mysqlErrorNumber(err error) (uint16, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

func isDuplicateKey(err error) bool {
	n, ok := mysqlErrorNumber(err)
	return ok && n == mysqlErrDuplicateEntry
}

// classifyTxError 把死锁、锁等待超时标记为可重试的 ledger.ErrConflict
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	if n, ok := mysqlErrorNumber(err); ok && (n == mysqlErrDeadlockDetected || n == mysqlErrLockWaitTimeout) {
		return fmt.Errorf("%w: %w", ledger.ErrConflict, err)
	}
	return err
}
