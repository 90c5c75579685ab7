package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// ReferralCommission 对应 referral_commission 表
// account_id 为推荐人，from_account_id 为被推荐的店铺 admin
// status: 1=pending 2=withdrawn 3=converted_to_credit（互斥终态，单次处理）
type ReferralCommission struct {
	ID            int64           `db:"id"`
	AccountID     int64           `db:"account_id"`
	FromAccountID int64           `db:"from_account_id"`
	SessionID     string          `db:"session_id"`
	Amount        decimal.Decimal `db:"amount"`
	Status        int8            `db:"status"`
	CreatedAt     int64           `db:"created_at"`
	ProcessedAt   int64           `db:"processed_at"`
}

// Insert 新增一条待处理佣金（结算批次内调用）
func (c *ReferralCommission) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	c.CreatedAt = time.Now().UnixMilli()

	sqlStr := "INSERT INTO referral_commission (account_id, from_account_id, session_id, amount, status, created_at, processed_at) VALUES (?, ?, ?, ?, ?, ?, 0)"
	args := []interface{}{c.AccountID, c.FromAccountID, c.SessionID, c.Amount, c.Status, c.CreatedAt}

	res, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if id, e := res.LastInsertId(); e == nil {
		c.ID = id
	}
	return nil
}

// GetCommissionForUpdate 在事务中按ID加锁查询
func GetCommissionForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*ReferralCommission, error) {
	var c ReferralCommission
	sqlStr := "SELECT * FROM referral_commission WHERE id = ? LIMIT 1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &c, sqlStr, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkCommissionProcessed 单次处理保证：仅当仍为 pending 时写入终态
func MarkCommissionProcessed(ctx context.Context, exec sqlx.ExtContext, id int64, status int8) (int64, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE referral_commission SET status = ?, processed_at = ? WHERE id = ? AND status = 1"
	res, err := exec.ExecContext(ctx, sqlStr, status, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
