package middleware

import (
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"

	"bingo-server/common/logger"
)

// RequestIDFilter 为每个请求注入并回写 X-Request-Id。
// trace id 同时写入 beego Input 数据与 Request.Context()，
// 服务层经 logger.GetTraceID(ctx) 取回做链路关联。
func RequestIDFilter(ctx *context.Context) {
	id := ctx.Input.Header("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData("trace_id", id)
	ctx.Output.Header("X-Request-Id", id)
	ctx.Request = ctx.Request.WithContext(logger.WithTraceID(ctx.Request.Context(), id))
}
