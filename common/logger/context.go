package logger

import (
	"context"
)

type ctxKey string

const (
	traceIDKey ctxKey = "trace_id"
	actorIDKey ctxKey = "actor_id"
)

// 从 context 中获取 traceId
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// 将 traceId 注入到 context 中
func WithTraceID(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceId)
}

// GetActorID 从 context 中获取操作人账号ID，未注入返回 0
func GetActorID(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(actorIDKey).(int64); ok {
		return v
	}
	return 0
}

// WithActorID 将操作人账号ID注入到 context 中
func WithActorID(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}
