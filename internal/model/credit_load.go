package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// CreditLoadRequest 对应 credit_load_request 表
// status: 1=pending 2=confirmed 3=rejected；进入终态后不可再处理
type CreditLoadRequest struct {
	ID          int64           `db:"id"`
	RequestID   string          `db:"request_id"`
	AccountID   int64           `db:"account_id"`
	Amount      decimal.Decimal `db:"amount"`
	Status      int8            `db:"status"`
	ProcessedBy int64           `db:"processed_by"`
	Reason      string          `db:"reason"`
	Note        string          `db:"note"`
	CreatedAt   int64           `db:"created_at"`
	ProcessedAt int64           `db:"processed_at"`
}

// Insert 新增充值请求（request_id 唯一）
func (r *CreditLoadRequest) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	r.CreatedAt = time.Now().UnixMilli()

	sqlStr := "INSERT INTO credit_load_request (request_id, account_id, amount, status, processed_by, reason, note, created_at, processed_at) VALUES (?, ?, ?, ?, 0, '', ?, ?, 0)"
	args := []interface{}{r.RequestID, r.AccountID, r.Amount, r.Status, r.Note, r.CreatedAt}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetCreditLoadForUpdate 在事务中按请求ID加锁查询
func GetCreditLoadForUpdate(ctx context.Context, exec sqlx.ExtContext, requestID string) (*CreditLoadRequest, error) {
	var r CreditLoadRequest
	sqlStr := "SELECT * FROM credit_load_request WHERE request_id = ? LIMIT 1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, requestID); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkCreditLoadProcessed 单次处理保证：仅当仍为 pending 时写入终态
// 返回受影响行数，0 表示请求已被处理过
func MarkCreditLoadProcessed(ctx context.Context, exec sqlx.ExtContext, requestID string, status int8, by int64, reason string) (int64, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE credit_load_request SET status = ?, processed_by = ?, reason = ?, processed_at = ? WHERE request_id = ? AND status = 1"
	res, err := exec.ExecContext(ctx, sqlStr, status, by, reason, now, requestID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
