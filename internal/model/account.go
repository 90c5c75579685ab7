package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// Account 对应 account 表（四级角色体系）
// role: super_admin / admin / employee / collector
// shop_id: admin/employee/collector 所属店铺（super_admin 为 0）
// referrer_id: 推荐人账号ID（无推荐人为 0）
// 各项比率为 [0,100] 的百分比：
//   - profit_margin_pct: 店铺从入场费中留存的比例（admin 账号上配置）
//   - super_commission_pct: 超管从店铺留存中抽取的比例
//   - referral_rate_pct: 推荐人从店铺利润中抽取的比例
//
// 不变量：balance 恒等于该账号全部 wallet_ledger 记录的 amount 之和
type Account struct {
	ID                 int64           `db:"id"`
	Username           string          `db:"username"`
	Role               string          `db:"role"`
	ShopID             int64           `db:"shop_id"`
	Balance            decimal.Decimal `db:"balance"`
	ReferrerID         int64           `db:"referrer_id"`
	ProfitMarginPct    decimal.Decimal `db:"profit_margin_pct"`
	SuperCommissionPct decimal.Decimal `db:"super_commission_pct"`
	ReferralRatePct    decimal.Decimal `db:"referral_rate_pct"`
	Status             int8            `db:"status"`
	CreatedAt          int64           `db:"created_at"`
	UpdatedAt          int64           `db:"updated_at"`
}

// Insert 新增账号
func (a *Account) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	a.CreatedAt = now
	a.UpdatedAt = now

	sqlStr := "INSERT INTO account (username, role, shop_id, balance, referrer_id, profit_margin_pct, super_commission_pct, referral_rate_pct, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{a.Username, a.Role, a.ShopID, a.Balance, a.ReferrerID, a.ProfitMarginPct, a.SuperCommissionPct, a.ReferralRatePct, a.Status, a.CreatedAt, a.UpdatedAt}

	res, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if id, e := res.LastInsertId(); e == nil {
		a.ID = id
	}
	return nil
}

// GetAccountByID 按ID查询
func GetAccountByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*Account, error) {
	var a Account
	sqlStr := "SELECT * FROM account WHERE id = ? LIMIT 1"
	if err := sqlx.GetContext(ctx, exec, &a, sqlStr, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountForUpdate 在事务中按ID加锁查询
// 多账号加锁时调用方必须按ID升序依次加锁，避免对向转账互相死锁
func GetAccountForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*Account, error) {
	var a Account
	sqlStr := "SELECT * FROM account WHERE id = ? LIMIT 1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &a, sqlStr, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAccountBalance 更新余额
func UpdateAccountBalance(ctx context.Context, exec sqlx.ExtContext, id int64, balance decimal.Decimal) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE account SET balance = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, balance, now, id)
	return err
}

// GetSuperAdmin 查询超管账号（系统内唯一）
func GetSuperAdmin(ctx context.Context, exec sqlx.ExtContext) (*Account, error) {
	var a Account
	sqlStr := "SELECT * FROM account WHERE role = 'super_admin' ORDER BY id ASC LIMIT 1"
	if err := sqlx.GetContext(ctx, exec, &a, sqlStr); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetShopAdmin 查询店铺的 admin 账号
func GetShopAdmin(ctx context.Context, exec sqlx.ExtContext, shopID int64) (*Account, error) {
	var a Account
	sqlStr := "SELECT * FROM account WHERE role = 'admin' AND shop_id = ? ORDER BY id ASC LIMIT 1"
	if err := sqlx.GetContext(ctx, exec, &a, sqlStr, shopID); err != nil {
		return nil, err
	}
	return &a, nil
}
