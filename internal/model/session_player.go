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

// SessionPlayer 对应 session_player 表：一局内某张卡片的登记记录
// booked_by 为登记操作人（收银员/店员）的账号ID
type SessionPlayer struct {
	ID         int64           `db:"id"`
	SessionID  string          `db:"session_id"`
	CartelaID  int64           `db:"cartela_id"`
	CartelaNo  int             `db:"cartela_no"`
	BookedBy   int64           `db:"booked_by"`
	PlayerName string          `db:"player_name"`
	Fee        decimal.Decimal `db:"fee"`
	CreatedAt  int64           `db:"created_at"`
}

// Insert 登记一张卡片，(session_id, cartela_id) 唯一
func (p *SessionPlayer) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	p.CreatedAt = time.Now().UnixMilli()

	sqlStr := "INSERT INTO session_player (session_id, cartela_id, cartela_no, booked_by, player_name, fee, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{p.SessionID, p.CartelaID, p.CartelaNo, p.BookedBy, p.PlayerName, p.Fee, p.CreatedAt}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListSessionPlayers 查询一局的全部登记（goqu 组装）
func ListSessionPlayers(db *sqlx.DB, sessionID string) ([]SessionPlayer, error) {
	var list []SessionPlayer
	err := common.SelectAll(&list, common.QueryArg{
		Db:     db,
		Table:  "session_player",
		Fields: common.EnumFields(SessionPlayer{}),
		Ex:     []g.Expression{g.Ex{"session_id": sessionID}},
		Order:  []exp.OrderedExpression{g.C("id").Asc()},
	})
	return list, err
}
