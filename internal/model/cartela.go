package model

import (
	"context"
	"time"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"bingo-server/common"
	"bingo-server/common/constant"
)

// Cartela 对应 cartela 表（店铺内唯一编号的实体卡片）
// status: 1=free 2=booked；booked_by 为预订人账号ID（free 时为 0）
// card 为行优先序列化的 5x5 卡面，中心格为字面量 free
type Cartela struct {
	ID        int64  `db:"id"`
	ShopID    int64  `db:"shop_id"`
	CartelaNo int    `db:"cartela_no"`
	Card      string `db:"card"`
	Status    int8   `db:"status"`
	BookedBy  int64  `db:"booked_by"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// Insert 新增卡片，(shop_id, cartela_no) 唯一键冲突时由上层映射为 Conflict
func (c *Cartela) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO cartela (shop_id, cartela_no, card, status, booked_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{c.ShopID, c.CartelaNo, c.Card, constant.CartelaFree, 0, now, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetCartelaByID 按ID查询
func GetCartelaByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*Cartela, error) {
	var c Cartela
	sqlStr := "SELECT * FROM cartela WHERE id = ? LIMIT 1"
	if err := sqlx.GetContext(ctx, exec, &c, sqlStr, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCartelaForUpdate 事务内加行锁查询
func GetCartelaForUpdate(ctx context.Context, exec sqlx.ExtContext, id int64) (*Cartela, error) {
	var c Cartela
	sqlStr := "SELECT * FROM cartela WHERE id = ? LIMIT 1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &c, sqlStr, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCartelaByNo 按 (店铺, 编号) 查询
func GetCartelaByNo(ctx context.Context, exec sqlx.ExtContext, shopID int64, no int) (*Cartela, error) {
	var c Cartela
	sqlStr := "SELECT * FROM cartela WHERE shop_id = ? AND cartela_no = ? LIMIT 1"
	if err := sqlx.GetContext(ctx, exec, &c, sqlStr, shopID, no); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListAvailableCartelas 查询店铺内所有空闲卡片（goqu 组装）
func ListAvailableCartelas(db *sqlx.DB, shopID int64) ([]Cartela, error) {
	var list []Cartela
	err := common.SelectAll(&list, common.QueryArg{
		Db:     db,
		Table:  "cartela",
		Fields: common.EnumFields(Cartela{}),
		Ex:     []g.Expression{g.Ex{"shop_id": shopID, "status": constant.CartelaFree}},
		Order:  []exp.OrderedExpression{g.C("cartela_no").Asc()},
	})
	return list, err
}

// BookCartelaCAS 原子预订：仅当卡片处于 free 时成功（靠 WHERE 条件做 CAS）
// 返回受影响行数，0 表示卡片不存在或已被他人预订
func BookCartelaCAS(ctx context.Context, exec sqlx.ExtContext, id, bookedBy int64) (int64, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE cartela SET status = ?, booked_by = ?, updated_at = ? WHERE id = ? AND status = ?"
	res, err := exec.ExecContext(ctx, sqlStr, constant.CartelaBooked, bookedBy, now, id, constant.CartelaFree)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnbookCartela 释放预订；requestedBy>0 时要求是当前预订人（主管强制释放传 0）
func UnbookCartela(ctx context.Context, exec sqlx.ExtContext, id, requestedBy int64) (int64, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE cartela SET status = ?, booked_by = 0, updated_at = ? WHERE id = ? AND status = ?"
	args := []interface{}{constant.CartelaFree, now, id, constant.CartelaBooked}
	if requestedBy > 0 {
		sqlStr += " AND booked_by = ?"
		args = append(args, requestedBy)
	}

	res, err := exec.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetShopCartelas 店铺内全量回收为 free（不可逆）
func ResetShopCartelas(ctx context.Context, exec sqlx.ExtContext, shopID int64) (int64, error) {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE cartela SET status = ?, booked_by = 0, updated_at = ? WHERE shop_id = ? AND status = ?"
	res, err := exec.ExecContext(ctx, sqlStr, constant.CartelaFree, now, shopID, constant.CartelaBooked)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
