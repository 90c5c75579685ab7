package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"bingo-server/common/logger"
	infmq "bingo-server/internal/infra/rocketmq"
	"bingo-server/internal/store"

	"go.uber.org/zap"
)

// StartOutboxDispatcher 启动 Outbox 分发器，支持通过 ctx 优雅退出
// 仅当 MQ 已启用时运行。事件先随业务事务落 outbox 表，再由
// 本协程异步投递，保证结算落库与事件发布不会出现"发了未落库"。
func StartOutboxDispatcher(ctx context.Context, wg *sync.WaitGroup, st store.Store) {
	if !infmq.Enabled() {
		return
	}
	wg.Add(1)
	pub := infmq.PublisherInstance()
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer wg.Done()

		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c, cancel := context.WithTimeout(ctx, 2*time.Second)
				rows, err := st.ListOutboxPending(c, 100)
				cancel()
				if err != nil {
					logger.Warn("outbox: list pending failed", zap.Error(err))
					continue
				}
				for _, r := range rows {
					if err := pub.Publish(r.Topic, []byte(r.Payload)); err != nil {
						_ = st.MarkOutboxFailed(ctx, r.ID, truncateErr(err))
						continue
					}
					if err := st.MarkOutboxSent(ctx, r.ID); err != nil {
						logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
					}
				}
			}
		}
	}()
}

func truncateErr(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}
