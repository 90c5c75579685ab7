package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// WithdrawalRequest 对应 withdrawal_request 表
// source: credit=余额提现 commission=推荐佣金提现（commission_id 指向佣金记录）
// status: 1=pending 2=approved 3=rejected；进入终态后不可再处理
type WithdrawalRequest struct {
	ID           int64           `db:"id"`
	RequestID    string          `db:"request_id"`
	AccountID    int64           `db:"account_id"`
	Amount       decimal.Decimal `db:"amount"`
	Source       string          `db:"source"`
	CommissionID int64           `db:"commission_id"`
	Status       int8            `db:"status"`
	ProcessedBy  int64           `db:"processed_by"`
	Reason       string          `db:"reason"`
	CreatedAt    int64           `db:"created_at"`
	ProcessedAt  int64           `db:"processed_at"`
}

// Insert 新增提现请求（request_id 唯一）
func (r *WithdrawalRequest) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	r.CreatedAt = time.Now().UnixMilli()

	sqlStr := "INSERT INTO withdrawal_request (request_id, account_id, amount, source, commission_id, status, processed_by, reason, created_at, processed_at) VALUES (?, ?, ?, ?, ?, ?, 0, '', ?, 0)"
	args := []interface{}{r.RequestID, r.AccountID, r.Amount, r.Source, r.CommissionID, r.Status, r.CreatedAt}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetWithdrawalForUpdate 在事务中按请求ID加锁查询
func GetWithdrawalForUpdate(ctx context.Context, exec sqlx.ExtContext, requestID string) (*WithdrawalRequest, error) {
	var r WithdrawalRequest
	sqlStr := "SELECT * FROM withdrawal_request WHERE request_id = ? LIMIT 1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, requestID); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkWithdrawalProcessed 单次处理保证：仅当仍为 pending 时写入终态
// 返回受影响行数，0 表示请求已被处理过（不会二次扣款）
func MarkWithdrawalProcessed(ctx context.Context, exec sqlx.ExtContext, requestID string, status int8, by int64, reason string) (int64, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE withdrawal_request SET status = ?, processed_by = ?, reason = ?, processed_at = ? WHERE request_id = ? AND status = 1"
	res, err := exec.ExecContext(ctx, sqlStr, status, by, reason, now, requestID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
