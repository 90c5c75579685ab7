package api

import (
	"time"

	beego "github.com/beego/beego/v2/server/web"

	infmysql "bingo-server/internal/infra/mysql"
	infrds "bingo-server/internal/infra/redis"
)

// HealthController 提供 /healthz 与 /readyz 探针
type HealthController struct{ beego.Controller }

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：探测 MySQL 与 Redis 连通性；
// 未初始化的依赖（内存模式、Redis 未配置）视为就绪
func (c *HealthController) Readyz() {
	ctx := c.Ctx.Request.Context()

	if db := infmysql.SQLX(); db != nil {
		if err := db.PingContext(ctx); err != nil {
			c.Ctx.Output.SetStatus(503)
			_ = c.Ctx.Output.Body([]byte("mysql unavailable"))
			return
		}
	}
	if err := infrds.Ping(ctx, time.Second); err != nil {
		c.Ctx.Output.SetStatus(503)
		_ = c.Ctx.Output.Body([]byte("redis unavailable"))
		return
	}

	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ready"))
}
