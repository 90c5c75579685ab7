package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// Outbox 对应 outbox 表（事务消息表）
// 状态流转：1=待发送 2=已发送 3=失败（重试耗尽）
// 结算与状态变更事件在业务事务内写入本表，由 worker 异步投递，
// 投递失败只重试、不回滚业务状态
type Outbox struct {
	ID         int64  `db:"id"`
	Topic      string `db:"topic"`       // 事件主题（cartela_booked/number_called/...）
	BizKey     string `db:"biz_key"`     // 业务键（去重/幂等用）
	Payload    string `db:"payload"`     // 消息体(JSON字符串)
	Status     int8   `db:"status"`      // 状态
	RetryCount int    `db:"retry_count"` // 重试次数
	LastError  string `db:"last_error"`  // 最后一次错误
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

// Insert 插入一条 Outbox 记录（状态默认 1）
func (o *Outbox) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO outbox (topic, biz_key, payload, status, retry_count, last_error, created_at, updated_at) VALUES (?, ?, ?, ?, 0, '', ?, ?)"
	args := []interface{}{o.Topic, o.BizKey, o.Payload, 1, now, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// CreateOutbox 便捷函数：序列化 payload 并落一条待发送记录
// 调用方应在业务事务内调用以保证与状态变更原子
func CreateOutbox(ctx context.Context, exec sqlx.ExtContext, topic, bizKey string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return (&Outbox{Topic: topic, BizKey: bizKey, Payload: string(b)}).Insert(ctx, exec)
}

// ListOutboxPending 查询待发送记录（status=1 且 retry_count < 10，避免无限重试）
func ListOutboxPending(ctx context.Context, exec sqlx.ExtContext, limit int) ([]Outbox, error) {
	sqlStr := "SELECT * FROM outbox WHERE status = 1 AND retry_count < 10 ORDER BY id ASC LIMIT ?"

	var list []Outbox
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkOutboxSent 标记一条 Outbox 为已发送
func MarkOutboxSent(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE outbox SET status = 2, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, now, id)
	return err
}

// MarkOutboxFailed 记录失败并自增重试计数；达到 10 次转为永久失败
func MarkOutboxFailed(ctx context.Context, exec sqlx.ExtContext, id int64, lastError string) error {
	now := time.Now().UnixMilli()

	sqlStr := "UPDATE outbox SET status = CASE WHEN retry_count >= 9 THEN 3 ELSE 1 END, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, lastError, now, id)
	return err
}
