package model

import (
	"context"
	"time"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"

	"bingo-server/common"
)

// GameHistory 对应 game_history 表（结算时写入的不可变快照，供审计/报表）
// undistributed: 1=号池叫尽无赢家，奖金未派发（退费策略由上层决定）
// (session_id) 唯一键兼作结算防重的第二道保护
type GameHistory struct {
	ID                 int64           `db:"id"`
	SessionID          string          `db:"session_id"`
	ShopID             int64           `db:"shop_id"`
	EntryFee           decimal.Decimal `db:"entry_fee"`
	PlayerCount        int             `db:"player_count"`
	TotalCollected     decimal.Decimal `db:"total_collected"`
	PrizeAmount        decimal.Decimal `db:"prize_amount"`
	ShopShare          decimal.Decimal `db:"shop_share"`
	SuperCommission    decimal.Decimal `db:"super_commission"`
	AdminProfit        decimal.Decimal `db:"admin_profit"`
	ReferralCommission decimal.Decimal `db:"referral_commission"`
	WinnerAccount      int64           `db:"winner_account"`
	WinnerCartela      int64           `db:"winner_cartela"`
	WinPattern         string          `db:"win_pattern"`
	CalledCount        int             `db:"called_count"`
	Undistributed      int8            `db:"undistributed"`
	TraceID            string          `db:"trace_id"`
	CreatedAt          int64           `db:"created_at"`
}

// Insert 写入快照（唯一键冲突说明该场次已结算过）
func (h *GameHistory) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	h.CreatedAt = time.Now().UnixMilli()

	sqlStr := "INSERT INTO game_history (session_id, shop_id, entry_fee, player_count, total_collected, prize_amount, shop_share, super_commission, admin_profit, referral_commission, winner_account, winner_cartela, win_pattern, called_count, undistributed, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{h.SessionID, h.ShopID, h.EntryFee, h.PlayerCount, h.TotalCollected, h.PrizeAmount, h.ShopShare, h.SuperCommission, h.AdminProfit, h.ReferralCommission, h.WinnerAccount, h.WinnerCartela, h.WinPattern, h.CalledCount, h.Undistributed, h.TraceID, h.CreatedAt}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListGameHistory 店铺报表查询（新到旧，goqu 组装）
func ListGameHistory(db *sqlx.DB, shopID int64, limit uint) ([]GameHistory, error) {
	var list []GameHistory
	err := common.SelectAll(&list, common.QueryArg{
		Db:     db,
		Table:  "game_history",
		Fields: common.EnumFields(GameHistory{}),
		Ex:     []g.Expression{g.Ex{"shop_id": shopID}},
		Order:  []exp.OrderedExpression{g.C("id").Desc()},
		Limit:  limit,
	})
	return list, err
}
