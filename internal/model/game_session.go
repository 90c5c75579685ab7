package model

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// GameSession 对应 game_session 表
// status: 1=created 2=waiting 3=active 4=completed 5=cancelled（数值码+冗余字符串双写）
// called_numbers 为逗号分隔的叫号序列（保序、无重复、<=75 个）
// is_settled: 0=未结算 1=已结算（防止重复结算）
// win_checked: 0=尚未发起过核验 1=已发起（此后禁止补位登记）
type GameSession struct {
	ID             int64           `db:"id"`
	SessionID      string          `db:"session_id"`
	ShopID         int64           `db:"shop_id"`
	OperatorID     int64           `db:"operator_id"`
	EntryFee       decimal.Decimal `db:"entry_fee"`
	Status         int8            `db:"status"`
	StatusStr      string          `db:"status_str"`
	CalledNumbers  string          `db:"called_numbers"`
	WinChecked     int8            `db:"win_checked"`
	WinnerCartela  int64           `db:"winner_cartela"`
	WinnerAccount  int64           `db:"winner_account"`
	WinPattern     string          `db:"win_pattern"`
	TotalCollected decimal.Decimal `db:"total_collected"`
	IsSettled      int8            `db:"is_settled"`
	TraceID        string          `db:"trace_id"`
	CreatedAt      int64           `db:"created_at"`
	StartedAt      int64           `db:"started_at"`
	EndedAt        int64           `db:"ended_at"`
	UpdatedAt      int64           `db:"updated_at"`
}

// Insert 新增场次
func (s *GameSession) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	s.CreatedAt = now
	s.UpdatedAt = now

	sqlStr := "INSERT INTO game_session (session_id, shop_id, operator_id, entry_fee, status, status_str, called_numbers, win_checked, winner_cartela, winner_account, win_pattern, total_collected, is_settled, trace_id, created_at, started_at, ended_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{s.SessionID, s.ShopID, s.OperatorID, s.EntryFee, s.Status, s.StatusStr, s.CalledNumbers, s.WinChecked, s.WinnerCartela, s.WinnerAccount, s.WinPattern, s.TotalCollected, s.IsSettled, s.TraceID, s.CreatedAt, s.StartedAt, s.EndedAt, s.UpdatedAt}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetSessionByID 按场次ID查询
func GetSessionByID(ctx context.Context, exec sqlx.ExtContext, sessionID string) (*GameSession, error) {
	var s GameSession
	sqlStr := "SELECT * FROM game_session WHERE session_id = ? LIMIT 1"
	if err := sqlx.GetContext(ctx, exec, &s, sqlStr, sessionID); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionForUpdate 在事务中按场次ID加锁查询（序列化同场次的并发变更）
func GetSessionForUpdate(ctx context.Context, exec sqlx.ExtContext, sessionID string) (*GameSession, error) {
	var s GameSession
	sqlStr := "SELECT * FROM game_session WHERE session_id = ? LIMIT 1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &s, sqlStr, sessionID); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update 整行更新（按 session_id）
func (s *GameSession) Update(ctx context.Context, exec sqlx.ExtContext) error {
	s.UpdatedAt = time.Now().UnixMilli()

	sqlStr := "UPDATE game_session SET status = ?, status_str = ?, called_numbers = ?, win_checked = ?, winner_cartela = ?, winner_account = ?, win_pattern = ?, total_collected = ?, is_settled = ?, started_at = ?, ended_at = ?, updated_at = ? WHERE session_id = ?"
	args := []interface{}{s.Status, s.StatusStr, s.CalledNumbers, s.WinChecked, s.WinnerCartela, s.WinnerAccount, s.WinPattern, s.TotalCollected, s.IsSettled, s.StartedAt, s.EndedAt, s.UpdatedAt, s.SessionID}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// EncodeCalls 叫号序列编码为逗号分隔字符串
func EncodeCalls(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	parts := make([]string, 0, len(nums))
	for _, n := range nums {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ",")
}

// DecodeCalls 解析叫号序列；空串返回空切片
func DecodeCalls(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}
