package routers

import (
	"bingo-server/internal/auth"
	"bingo-server/internal/config"
	"bingo-server/internal/controller/api"
	"bingo-server/internal/metrics"
	"bingo-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// Register 注册HTTP路由与全局过滤器（须在配置加载完成后调用）
func Register() {
	cfg := config.Get()

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// 令牌生命周期（免认证：refresh 自带令牌，logout 自解析）
	beego.Router("/api/auth/refresh", &api.AccountController{}, "post:Refresh")
	beego.Router("/api/auth/logout", &api.AccountController{}, "post:Logout")

	// ========== 业务 API（JWT 认证 + 能力表鉴权） ==========

	beego.InsertFilter("/api/cartela/*", beego.BeforeExec, middleware.ActorAuthFilter)
	beego.InsertFilter("/api/session/*", beego.BeforeExec, middleware.ActorAuthFilter)
	beego.InsertFilter("/api/ledger/*", beego.BeforeExec, middleware.ActorAuthFilter)
	beego.InsertFilter("/api/account", beego.BeforeExec, middleware.ActorAuthFilter)
	beego.InsertFilter("/api/account/*", beego.BeforeExec, middleware.ActorAuthFilter)

	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/cartela/*", beego.BeforeExec, middleware.RateLimitFilter)
		beego.InsertFilter("/api/session/*", beego.BeforeExec, middleware.RateLimitFilter)
		beego.InsertFilter("/api/ledger/*", beego.BeforeExec, middleware.RateLimitFilter)
	}

	// 卡片预订
	beego.InsertFilter("/api/cartela/book", beego.BeforeExec, middleware.RequireCapability(auth.OpBookCartela))
	beego.InsertFilter("/api/cartela/unbook", beego.BeforeExec, middleware.RequireCapability(auth.OpUnbookCartela))
	beego.InsertFilter("/api/cartela/reset", beego.BeforeExec, middleware.RequireCapability(auth.OpResetShop))
	beego.InsertFilter("/api/cartela/import", beego.BeforeExec, middleware.RequireCapability(auth.OpImportCartelas))
	beego.InsertFilter("/api/cartela/available", beego.BeforeExec, middleware.RequireCapability(auth.OpListCartelas))
	beego.Router("/api/cartela/book", &api.CartelaController{}, "post:Book")
	beego.Router("/api/cartela/unbook", &api.CartelaController{}, "post:Unbook")
	beego.Router("/api/cartela/reset", &api.CartelaController{}, "post:Reset")
	beego.Router("/api/cartela/import", &api.CartelaController{}, "post:Import")
	beego.Router("/api/cartela/available", &api.CartelaController{}, "get:List")

	// 场次
	beego.InsertFilter("/api/session/create", beego.BeforeExec, middleware.RequireCapability(auth.OpCreateSession))
	beego.InsertFilter("/api/session/register", beego.BeforeExec, middleware.RequireCapability(auth.OpRegisterPlayer))
	beego.InsertFilter("/api/session/declare", beego.BeforeExec, middleware.RequireCapability(auth.OpDeclareWinner))
	beego.InsertFilter("/api/session/history", beego.BeforeExec, middleware.RequireCapability(auth.OpViewHistory))
	beego.InsertFilter("/api/session/:session_id/start", beego.BeforeExec, middleware.RequireCapability(auth.OpStartSession))
	beego.InsertFilter("/api/session/:session_id/call", beego.BeforeExec, middleware.RequireCapability(auth.OpCallNumber))
	beego.InsertFilter("/api/session/:session_id/auto/start", beego.BeforeExec, middleware.RequireCapability(auth.OpCallNumber))
	beego.InsertFilter("/api/session/:session_id/pause", beego.BeforeExec, middleware.RequireCapability(auth.OpPauseSession))
	beego.InsertFilter("/api/session/:session_id/resume", beego.BeforeExec, middleware.RequireCapability(auth.OpResumeSession))
	beego.InsertFilter("/api/session/:session_id/cancel", beego.BeforeExec, middleware.RequireCapability(auth.OpCancelSession))
	// 所有角色均持有 session.view，叠加到同层路径无副作用
	beego.InsertFilter("/api/session/:session_id", beego.BeforeExec, middleware.RequireCapability(auth.OpViewSession))
	beego.Router("/api/session/create", &api.SessionController{}, "post:Create")
	beego.Router("/api/session/register", &api.SessionController{}, "post:Register")
	beego.Router("/api/session/declare", &api.SessionController{}, "post:Declare")
	beego.Router("/api/session/history", &api.SessionController{}, "get:History")
	beego.Router("/api/session/:session_id/start", &api.SessionController{}, "post:Start")
	beego.Router("/api/session/:session_id/call", &api.SessionController{}, "post:Call")
	beego.Router("/api/session/:session_id/auto/start", &api.SessionController{}, "post:AutoStart")
	beego.Router("/api/session/:session_id/pause", &api.SessionController{}, "post:Pause")
	beego.Router("/api/session/:session_id/resume", &api.SessionController{}, "post:Resume")
	beego.Router("/api/session/:session_id/cancel", &api.SessionController{}, "post:Cancel")
	beego.Router("/api/session/:session_id", &api.SessionController{}, "get:Get")

	// 账号
	beego.InsertFilter("/api/account", beego.BeforeExec, middleware.RequireCapability(auth.OpCreateAccount))
	beego.Router("/api/account", &api.AccountController{}, "post:Create")
	beego.Router("/api/account/me", &api.AccountController{}, "get:Get")

	// 账务
	beego.InsertFilter("/api/ledger/transfer", beego.BeforeExec, middleware.RequireCapability(auth.OpTransferCredit))
	beego.InsertFilter("/api/ledger/credit-load/request", beego.BeforeExec, middleware.RequireCapability(auth.OpRequestCreditLoad))
	beego.InsertFilter("/api/ledger/credit-load/process", beego.BeforeExec, middleware.RequireCapability(auth.OpProcessCreditLoad))
	beego.InsertFilter("/api/ledger/withdrawal/request", beego.BeforeExec, middleware.RequireCapability(auth.OpRequestWithdrawal))
	beego.InsertFilter("/api/ledger/withdrawal/process", beego.BeforeExec, middleware.RequireCapability(auth.OpProcessWithdrawal))
	beego.InsertFilter("/api/ledger/commission/:id/convert", beego.BeforeExec, middleware.RequireCapability(auth.OpConvertCommission))
	beego.InsertFilter("/api/ledger/entries", beego.BeforeExec, middleware.RequireCapability(auth.OpViewLedger))
	beego.Router("/api/ledger/transfer", &api.LedgerController{}, "post:Transfer")
	beego.Router("/api/ledger/credit-load/request", &api.LedgerController{}, "post:RequestCreditLoad")
	beego.Router("/api/ledger/credit-load/process", &api.LedgerController{}, "post:ProcessCreditLoad")
	beego.Router("/api/ledger/withdrawal/request", &api.LedgerController{}, "post:RequestWithdrawal")
	beego.Router("/api/ledger/withdrawal/process", &api.LedgerController{}, "post:ProcessWithdrawal")
	beego.Router("/api/ledger/commission/:id/convert", &api.LedgerController{}, "post:ConvertCommission")
	beego.Router("/api/ledger/entries", &api.LedgerController{}, "get:Entries")
}
