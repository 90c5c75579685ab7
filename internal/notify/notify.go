// Package notify 负责向在线客户端广播场次事件。
// 通过 Redis PUBLISH 按场次频道分发，fire-and-forget：
// 广播失败只记日志，绝不影响主流程落库。
package notify

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bingo-server/common/logger"
	infraredis "bingo-server/internal/infra/redis"
)

// 事件类型
const (
	EventCartelaBooked   = "cartela_booked"
	EventCartelaUnbooked = "cartela_unbooked"
	EventShopReset       = "shop_reset"
	EventSessionCreated  = "session_created"
	EventPlayerJoined    = "player_joined"
	EventSessionStarted  = "session_started"
	EventNumberCalled    = "number_called"
	EventSessionPaused   = "session_paused"
	EventSessionResumed  = "session_resumed"
	EventWinnerDeclared  = "winner_declared"
	EventSessionDone     = "session_completed"
	EventSessionCanceled = "session_cancelled"
)

// Event 广播事件体
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	ShopID    int64  `json:"shop_id"`
	Payload   any    `json:"payload,omitempty"`
	Ts        int64  `json:"ts"`
}

// Notifier 场次事件广播器
type Notifier interface {
	// Publish 广播事件；sessionID 为空时按店铺频道广播
	Publish(ctx context.Context, ev Event)
	// CacheSnapshot 写入场次快照缓存，供客户端断线重连后拉取
	CacheSnapshot(ctx context.Context, sessionID string, snapshot any, ttl time.Duration)
	// DropSnapshot 场次进入终态后清理快照
	DropSnapshot(ctx context.Context, sessionID string)
}

type redisNotifier struct {
	rdb *goredis.Client
}

// New 构造 Redis 广播器；客户端未初始化时退化为 Noop。
func New() Notifier {
	rdb := infraredis.Client()
	if rdb == nil {
		return Noop{}
	}
	return &redisNotifier{rdb: rdb}
}

func (n *redisNotifier) Publish(ctx context.Context, ev Event) {
	if ev.Ts == 0 {
		ev.Ts = time.Now().UnixMilli()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorCtx(ctx, "notify: marshal event failed", zap.Error(err))
		return
	}
	ch := infraredis.SessionEventsChannel(ev.SessionID)
	if ev.SessionID == "" {
		ch = infraredis.ShopAvailableKey(ev.ShopID)
	}
	if err := n.rdb.Publish(ctx, ch, body).Err(); err != nil {
		logger.ErrorCtx(ctx, "notify: publish failed",
			zap.String("channel", ch), zap.String("type", ev.Type), zap.Error(err))
	}
}

func (n *redisNotifier) CacheSnapshot(ctx context.Context, sessionID string, snapshot any, ttl time.Duration) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		logger.ErrorCtx(ctx, "notify: marshal snapshot failed", zap.Error(err))
		return
	}
	if err := n.rdb.Set(ctx, infraredis.SessionSnapshotKey(sessionID), body, ttl).Err(); err != nil {
		logger.ErrorCtx(ctx, "notify: cache snapshot failed", zap.Error(err))
	}
}

func (n *redisNotifier) DropSnapshot(ctx context.Context, sessionID string) {
	if err := n.rdb.Del(ctx, infraredis.SessionSnapshotKey(sessionID)).Err(); err != nil {
		logger.ErrorCtx(ctx, "notify: drop snapshot failed", zap.Error(err))
	}
}

// Noop 空实现，Redis 未配置或单测环境使用
type Noop struct{}

func (Noop) Publish(context.Context, Event)                            {}
func (Noop) CacheSnapshot(context.Context, string, any, time.Duration) {}
func (Noop) DropSnapshot(context.Context, string)                      {}
