package model

import (
	"context"
	"time"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"

	"bingo-server/common"
	"bingo-server/common/constant"
)

// WalletLedger 对应 wallet_ledger 表（追加式账本，落账后不可变）
// amount 为带符号金额（入账为正、出账为负），方向与 before/after 互为校验
// biz_type 取值见 constant 包（entry_fee/prize_payout/... 数值码与字符串双写）
// ref 指向来源：场次ID、请求ID 或对端账号
type WalletLedger struct {
	ID           int64           `db:"id"`
	AccountID    int64           `db:"account_id"`
	BizType      int             `db:"biz_type"`
	BizTypeStr   string          `db:"biz_type_str"`
	Amount       decimal.Decimal `db:"amount"`
	BeforeAmount decimal.Decimal `db:"before_amount"`
	AfterAmount  decimal.Decimal `db:"after_amount"`
	Ref          string          `db:"ref"`
	SessionID    string          `db:"session_id"`
	ShopID       int64           `db:"shop_id"`
	Remark       string          `db:"remark"`
	TraceID      string          `db:"trace_id"`
	CreatedAt    int64           `db:"created_at"`
}

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	if l.BizTypeStr == "" {
		l.BizTypeStr = constant.GetBalanceChangeTypeDesc(l.BizType)
	}

	sqlStr := "INSERT INTO wallet_ledger (account_id, biz_type, biz_type_str, amount, before_amount, after_amount, ref, session_id, shop_id, remark, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{l.AccountID, l.BizType, l.BizTypeStr, l.Amount, l.BeforeAmount, l.AfterAmount, l.Ref, l.SessionID, l.ShopID, l.Remark, l.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListLedgerByAccount 查询账号账本（新到旧，goqu 组装）
func ListLedgerByAccount(db *sqlx.DB, accountID int64, limit uint) ([]WalletLedger, error) {
	var list []WalletLedger
	err := common.SelectAll(&list, common.QueryArg{
		Db:     db,
		Table:  "wallet_ledger",
		Fields: common.EnumFields(WalletLedger{}),
		Ex:     []g.Expression{g.Ex{"account_id": accountID}},
		Order:  []exp.OrderedExpression{g.C("id").Desc()},
		Limit:  limit,
	})
	return list, err
}
