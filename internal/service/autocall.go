package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bingo-server/common/logger"
	"bingo-server/internal/config"
	"bingo-server/internal/metrics"
	"bingo-server/internal/notify"

	"go.uber.org/zap"
)

// 自动叫号：按固定间隔代替操作员调用 Call。
// 暂停只停止后续触发，不回退已叫号码；场次离开 active 时任务必须被取消。

const defaultAutoCallInterval = 5 * time.Second

type autoTask struct {
	cancel context.CancelFunc
	paused atomic.Bool
}

// AutoCaller 管理各场次的自动叫号任务
type AutoCaller struct {
	mu    sync.Mutex
	tasks map[string]*autoTask

	svc SessionService
	nt  notify.Notifier
}

func NewAutoCaller(svc SessionService, nt notify.Notifier) *AutoCaller {
	ac := &AutoCaller{
		tasks: make(map[string]*autoTask),
		svc:   svc,
		nt:    nt,
	}
	if s, ok := svc.(*sessionService); ok {
		s.BindAutoCaller(ac)
	}
	return ac
}

func autoCallInterval() time.Duration {
	if cfg := config.GetCurrent(); cfg != nil && cfg.Game.AutoCallIntervalSec > 0 {
		return time.Duration(cfg.Game.AutoCallIntervalSec) * time.Second
	}
	return defaultAutoCallInterval
}

// Start 为场次启动自动叫号；重复启动是幂等的
func (a *AutoCaller) Start(sessionID string, actorID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tasks[sessionID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &autoTask{cancel: cancel}
	a.tasks[sessionID] = t

	go a.run(ctx, sessionID, actorID, t)
	logger.Info("auto call started", zap.String("session_id", sessionID))
}

func (a *AutoCaller) run(ctx context.Context, sessionID string, actorID int64, t *autoTask) {
	ticker := time.NewTicker(autoCallInterval())
	defer ticker.Stop()
	defer a.remove(sessionID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.paused.Load() {
				continue
			}
			out, err := a.svc.Call(ctx, sessionID, actorID)
			if err != nil {
				// 场次离开 active（完成/取消/不存在）即自行退出
				switch err {
				case ErrInvalidState, ErrNumberExhausted, ErrSessionNotFound:
					logger.Info("auto call finished",
						zap.String("session_id", sessionID), zap.Error(err))
				default:
					logger.Error("auto call failed",
						zap.String("session_id", sessionID), zap.Error(err))
				}
				return
			}
			if out.Completed {
				return
			}
		}
	}
}

// Pause 暂停触发（已叫号码保留）
func (a *AutoCaller) Pause(ctx context.Context, sessionID string) bool {
	a.mu.Lock()
	t, ok := a.tasks[sessionID]
	a.mu.Unlock()
	if !ok {
		return false
	}
	t.paused.Store(true)
	metrics.RecordSessionOp("success", "pause", time.Now())
	a.nt.Publish(ctx, notify.Event{Type: notify.EventSessionPaused, SessionID: sessionID})
	return true
}

// Resume 恢复触发
func (a *AutoCaller) Resume(ctx context.Context, sessionID string) bool {
	a.mu.Lock()
	t, ok := a.tasks[sessionID]
	a.mu.Unlock()
	if !ok {
		return false
	}
	t.paused.Store(false)
	metrics.RecordSessionOp("success", "resume", time.Now())
	a.nt.Publish(ctx, notify.Event{Type: notify.EventSessionResumed, SessionID: sessionID})
	return true
}

// Stop 取消任务（场次完成/取消时调用）
func (a *AutoCaller) Stop(sessionID string) {
	a.mu.Lock()
	t, ok := a.tasks[sessionID]
	a.mu.Unlock()
	if ok {
		t.cancel()
	}
}

func (a *AutoCaller) remove(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tasks, sessionID)
}

// Running 是否存在未取消的任务
func (a *AutoCaller) Running(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.tasks[sessionID]
	return ok
}
